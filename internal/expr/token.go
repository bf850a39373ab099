package expr

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL

	// Punctuation
	LPAREN    // "("
	RPAREN    // ")"
	LBRACKET  // "["
	RBRACKET  // "]"
	COMMA     // ","
	PERIOD    // "."
	SEMICOLON // ";"
	QUESTION  // "?"
	COLON     // ":"
	ELVIS     // "?:"

	// Operators
	PLUS
	MINUS
	MULT
	DIV
	MOD
	ASSIGN // "="
	EQ     // "=="
	NEQ    // "!="
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ
	AND   // "&&" or "and"
	OR    // "||" or "or"
	NOT   // "!" or "not"
	ARROW // "->"

	// Literals & identifiers
	IDENT
	STRING
	NUMBER
	TRUE
	FALSE
	NULL

	// Keywords
	VAR
)

var tokenNames = map[TokenType]string{
	EOF: "end of input", ILLEGAL: "illegal token",
	LPAREN: "'('", RPAREN: "')'", LBRACKET: "'['", RBRACKET: "']'",
	COMMA: "','", PERIOD: "'.'", SEMICOLON: "';'", QUESTION: "'?'", COLON: "':'", ELVIS: "'?:'",
	PLUS: "'+'", MINUS: "'-'", MULT: "'*'", DIV: "'/'", MOD: "'%'",
	ASSIGN: "'='", EQ: "'=='", NEQ: "'!='",
	LESS: "'<'", LESS_EQ: "'<='", GREATER: "'>'", GREATER_EQ: "'>='",
	AND: "'&&'", OR: "'||'", NOT: "'!'", ARROW: "'->'",
	IDENT: "identifier", STRING: "string", NUMBER: "number",
	TRUE: "true", FALSE: "false", NULL: "null", VAR: "var",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token is a lexical token.
type Token struct {
	Type   TokenType
	Lexeme string // raw text slice
	Text   string // decoded string literal
	Pos    int    // byte offset in the source
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"null":  NULL,
	"and":   AND,
	"or":    OR,
	"not":   NOT,
	"var":   VAR,
}
