// Package expr is the embedded expression language used inside pattern
// blocks.
//
// Expressions support literals (numbers, quoted strings, true, false,
// null, [arrays]), identifiers, the operators
//
//	c ? a : b   a ?: b   || && == != < <= > >= + - * / % ! -
//
// (and/or/not are accepted as words), member access x.name, method calls
// x.name(args), indexing x[i], function calls f(args) and lambdas
// x -> body or (a, b) -> body.
//
// Scripts ({= ...} blocks) are ';'-separated statements that may assign
// names with "name = expr" or "var name = expr"; the value of a script is
// the value of its last statement.
//
// Evaluation works directly on the value algebra. Member access resolves
// against a fixed method registry (see MethodNames) and calls against a
// fixed builtin registry (see BuiltinNames); there is no reflection.
// Unbound identifiers evaluate to null.
package expr
