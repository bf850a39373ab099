package template

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/epimorphics/dclib-sub000/internal/expr"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/rdf"
)

// Template document keys with a fixed meaning. Every other key of a
// mapping or hierarchy is a predicate.
const (
	keyID         = "@id"
	keyType       = "@type"
	keyName       = "name"
	keyRequired   = "required"
	keyOptional   = "optional"
	keyBind       = "bind"
	keyTemplate   = "template"
	keyTemplates  = "templates"
	keyOneOffs    = "one_offs"
	keyReferenced = "referenced"
	keyPrefixes   = "prefixes"
	keySources    = "sources"
	keyKind       = "type"
	keyParentLink = "parent-link"
	keyChildLink  = "child-link"
	keyTopLink    = "top-link"
	keyParent     = "parent"
	keyLevel      = "level"
	keyComment    = "comment"
)

var reservedKeys = map[string]bool{
	keyID: true, keyType: true, keyName: true, keyRequired: true,
	keyOptional: true, keyBind: true, keyTemplate: true, keyTemplates: true,
	keyOneOffs: true, keyReferenced: true, keyPrefixes: true, keySources: true,
	keyKind: true, keyParentLink: true, keyChildLink: true, keyTopLink: true,
	keyParent: true, keyLevel: true, keyComment: true,
}

// Variant names accepted by the "type" key.
const (
	KindMapping   = "mapping"
	KindComposite = "composite"
	KindLet       = "let"
	KindHierarchy = "hierarchy"
)

// Detect chooses the variant for a template object from its keys and its
// explicit "type", if any.
//
// Without a type: templates, one_offs or referenced make a composite;
// template together with bind makes a let; parent-link, child-link,
// parent or level make a hierarchy; anything else is a mapping.
func Detect(keys []string, typ string) (string, error) {
	switch typ {
	case KindMapping, KindComposite, KindLet, KindHierarchy:
		return typ, nil
	case "":
	default:
		return "", &LoadError{Code: ErrCodeUnknownType, Field: keyKind, Message: fmt.Sprintf("unknown template type %q", typ)}
	}

	has := make(map[string]bool, len(keys))
	for _, k := range keys {
		has[k] = true
	}
	switch {
	case has[keyTemplates] || has[keyOneOffs] || has[keyReferenced]:
		return KindComposite, nil
	case has[keyTemplate] && has[keyBind]:
		return KindLet, nil
	case has[keyTemplate]:
		return KindComposite, nil
	case has[keyParentLink] || has[keyChildLink] || has[keyParent] || has[keyLevel]:
		return KindHierarchy, nil
	default:
		return KindMapping, nil
	}
}

// Loader reads template documents (JSON, or CUE which is a superset of
// JSON) into a registry. Several documents may be loaded into one Loader;
// they share the registry, the prefixes and the list of lookup sources.
type Loader struct {
	ctx      *cue.Context
	registry *Registry
	prefixes *rdf.PrefixMap
	sources  []*SourceSpec
	logger   *slog.Logger
	cache    *expr.Cache
	dir      string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger for load warnings, including dropped pattern
// blocks.
func WithLogger(l *slog.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithCache compiles pattern blocks through cache instead of the default
// process-wide cache.
func WithCache(c *expr.Cache) LoaderOption {
	return func(ld *Loader) { ld.cache = c }
}

// WithPrefixes seeds the prefix map. Documents add their own prefixes to
// it.
func WithPrefixes(pm *rdf.PrefixMap) LoaderOption {
	return func(ld *Loader) { ld.prefixes = pm }
}

// NewLoader creates a loader with an empty registry and the default
// prefixes.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		ctx:      cuecontext.New(),
		registry: NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.prefixes == nil {
		l.prefixes = rdf.NewPrefixMap()
	}
	return l
}

// Registry returns the registry the loader fills.
func (l *Loader) Registry() *Registry { return l.registry }

// Prefixes returns the prefixes declared so far.
func (l *Loader) Prefixes() *rdf.PrefixMap { return l.prefixes }

// Sources returns the lookup sources declared so far, in order.
func (l *Loader) Sources() []*SourceSpec { return l.sources }

// LoadFile reads and loads the document at path. Relative paths inside
// the document, such as csv lookup sources, resolve against its directory.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	l.dir = filepath.Dir(path)
	defer func() { l.dir = "" }()
	return l.Load(path, data)
}

// Load parses one document. The top level is a template object or an
// array of them; each becomes a root candidate in load order.
func (l *Loader) Load(filename string, data []byte) error {
	v := l.ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}

	var tops []cue.Value
	switch v.IncompleteKind() {
	case cue.StructKind:
		tops = []cue.Value{v}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			tops = append(tops, iter.Value())
		}
	default:
		return &LoadError{Code: ErrCodeShape, Message: "document must be a template object or an array of templates", Pos: v.Pos()}
	}

	// Prefixes first: constant URI patterns are expanded while compiling.
	for _, top := range tops {
		if err := l.loadDocumentSettings(top); err != nil {
			return err
		}
	}
	for _, top := range tops {
		if settingsOnly(top) {
			continue
		}
		t, err := l.parse(top)
		if err != nil {
			return err
		}
		l.registry.AddRoot(t)
	}
	return nil
}

// settingsOnly reports whether v only declares prefixes or sources.
func settingsOnly(v cue.Value) bool {
	if v.IncompleteKind() != cue.StructKind {
		return false
	}
	iter, err := v.Fields()
	if err != nil {
		return false
	}
	n := 0
	for iter.Next() {
		switch iter.Selector().Unquoted() {
		case keyPrefixes, keySources, keyComment:
		default:
			return false
		}
		n++
	}
	return n > 0
}

func (l *Loader) loadDocumentSettings(v cue.Value) error {
	if v.IncompleteKind() != cue.StructKind {
		return nil
	}
	if pv := v.LookupPath(cue.MakePath(cue.Str(keyPrefixes))); pv.Exists() {
		pairs, err := stringMap(pv, keyPrefixes)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			l.prefixes.Set(p.key, p.value)
		}
	}
	if sv := v.LookupPath(cue.MakePath(cue.Str(keySources))); sv.Exists() {
		iter, err := sv.List()
		if err != nil {
			return shapeError(sv, keySources, "must be an array of source objects")
		}
		for iter.Next() {
			spec, err := l.parseSource(iter.Value())
			if err != nil {
				return err
			}
			for _, existing := range l.sources {
				if existing.Name == spec.Name {
					return &LoadError{Code: ErrCodeDuplicateName, Field: keySources, Message: fmt.Sprintf("source %q declared twice", spec.Name), Pos: iter.Value().Pos()}
				}
			}
			l.sources = append(l.sources, spec)
		}
	}
	return nil
}

// parse builds the template for a document value: a string is a
// reference, an array a composite, an object is detected by its keys.
func (l *Loader) parse(v cue.Value) (Template, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &Ref{Target: name}, nil
	case cue.ListKind:
		children, err := l.parseList(v, keyTemplates)
		if err != nil {
			return nil, err
		}
		return &Composite{Templates: children}, nil
	case cue.StructKind:
		return l.parseObject(v)
	default:
		return nil, shapeError(v, keyTemplate, "must be an object, an array or a template name")
	}
}

func (l *Loader) parseList(v cue.Value, field string) ([]Template, error) {
	if v.IncompleteKind() != cue.ListKind {
		t, err := l.parse(v)
		if err != nil {
			return nil, err
		}
		return []Template{t}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []Template
	for iter.Next() {
		t, err := l.parse(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, shapeError(v, field, "must not be empty")
	}
	return out, nil
}

type field struct {
	label string
	value cue.Value
}

func (l *Loader) parseObject(v cue.Value) (Template, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var fields []field
	byLabel := make(map[string]cue.Value)
	var labels []string
	for iter.Next() {
		f := field{label: iter.Selector().Unquoted(), value: iter.Value()}
		fields = append(fields, f)
		byLabel[f.label] = f.value
		labels = append(labels, f.label)
	}

	typ := ""
	if tv, ok := byLabel[keyKind]; ok {
		if typ, err = tv.String(); err != nil {
			return nil, shapeError(tv, keyKind, "must be a string")
		}
	}
	kind, err := Detect(labels, typ)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Pos = v.Pos()
		}
		return nil, err
	}

	hdr, err := parseHeader(byLabel)
	if err != nil {
		return nil, err
	}

	var t Template
	switch kind {
	case KindMapping:
		t, err = l.buildMapping(hdr, fields, byLabel)
	case KindComposite:
		t, err = l.buildComposite(hdr, byLabel)
	case KindLet:
		t, err = l.buildLet(hdr, v, byLabel)
	case KindHierarchy:
		t, err = l.buildHierarchy(hdr, v, fields, byLabel)
	}
	if err != nil {
		return nil, err
	}

	// bind on a mapping or hierarchy wraps it in a let.
	if bv, ok := byLabel[keyBind]; ok && (kind == KindMapping || kind == KindHierarchy) {
		sets, err := l.parseBindings(bv)
		if err != nil {
			return nil, err
		}
		inner := t.Head()
		t = &Let{Header: *inner, Bindings: sets, Body: t}
		*inner = Header{}
	}

	if hdr.Name != "" {
		if err := l.registry.Register(hdr.Name, t); err != nil {
			return nil, &LoadError{Code: ErrCodeDuplicateName, Field: keyName, Message: err.Error(), Pos: v.Pos()}
		}
	}
	for _, label := range labels {
		if !reservedKeys[label] && kind != KindMapping && kind != KindHierarchy {
			l.logger.Warn("ignoring unknown template key", "key", label, "template", Describe(t), "pos", byLabel[label].Pos().String())
		}
	}
	return t, nil
}

func parseHeader(byLabel map[string]cue.Value) (Header, error) {
	var h Header
	if nv, ok := byLabel[keyName]; ok {
		name, err := nv.String()
		if err != nil {
			return h, shapeError(nv, keyName, "must be a string")
		}
		h.Name = name
	}
	var err error
	if rv, ok := byLabel[keyRequired]; ok {
		if h.Required, err = stringList(rv, keyRequired); err != nil {
			return h, err
		}
	}
	if ov, ok := byLabel[keyOptional]; ok {
		if h.Optional, err = stringList(ov, keyOptional); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (l *Loader) buildMapping(hdr Header, fields []field, byLabel map[string]cue.Value) (*ResourceMap, error) {
	rm := &ResourceMap{Header: hdr}
	if iv, ok := byLabel[keyID]; ok {
		src, err := patternString(iv, keyID)
		if err != nil {
			return nil, err
		}
		rm.ID = l.compile(asURIPattern(src))
	}
	for _, f := range fields {
		switch {
		case f.label == keyType:
			srcs, err := patternList(f.value, keyType)
			if err != nil {
				return nil, err
			}
			prop := Property{Predicate: l.compile("<" + rdf.RDFType + ">")}
			for _, s := range srcs {
				prop.Values = append(prop.Values, l.compile(asURIPattern(s)))
			}
			rm.Properties = append(rm.Properties, prop)
		case reservedKeys[f.label]:
		default:
			srcs, err := patternList(f.value, f.label)
			if err != nil {
				return nil, err
			}
			prop := Property{Predicate: l.compile(asURIPattern(f.label))}
			for _, s := range srcs {
				prop.Values = append(prop.Values, l.compile(s))
			}
			rm.Properties = append(rm.Properties, prop)
		}
	}
	return rm, nil
}

func (l *Loader) buildComposite(hdr Header, byLabel map[string]cue.Value) (*Composite, error) {
	c := &Composite{Header: hdr}
	if tv, ok := byLabel[keyTemplates]; ok {
		children, err := l.parseList(tv, keyTemplates)
		if err != nil {
			return nil, err
		}
		c.Templates = append(c.Templates, children...)
	}
	if tv, ok := byLabel[keyTemplate]; ok {
		child, err := l.parse(tv)
		if err != nil {
			return nil, err
		}
		c.Templates = append(c.Templates, child)
	}
	if ov, ok := byLabel[keyOneOffs]; ok {
		oneOffs, err := l.parseList(ov, keyOneOffs)
		if err != nil {
			return nil, err
		}
		c.OneOffs = oneOffs
	}
	if rv, ok := byLabel[keyReferenced]; ok {
		refs, err := l.parseList(rv, keyReferenced)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			if r.Head().Name == "" {
				if _, isRef := r.(*Ref); !isRef {
					return nil, &LoadError{Code: ErrCodeMissingField, Field: keyReferenced, Message: "referenced templates must have a name", Pos: rv.Pos()}
				}
			}
		}
	}
	if bv, ok := byLabel[keyBind]; ok {
		sets, err := l.parseBindings(bv)
		if err != nil {
			return nil, err
		}
		c.Globals = sets
	}
	return c, nil
}

func (l *Loader) buildLet(hdr Header, v cue.Value, byLabel map[string]cue.Value) (*Let, error) {
	let := &Let{Header: hdr}
	if bv, ok := byLabel[keyBind]; ok {
		sets, err := l.parseBindings(bv)
		if err != nil {
			return nil, err
		}
		let.Bindings = sets
	}
	tv, ok := byLabel[keyTemplate]
	if !ok {
		tv, ok = byLabel[keyTemplates]
	}
	if !ok {
		return nil, &LoadError{Code: ErrCodeMissingField, Field: keyTemplate, Message: "let template needs a template to delegate to", Pos: v.Pos()}
	}
	body, err := l.parse(tv)
	if err != nil {
		return nil, err
	}
	let.Body = body
	return let, nil
}

func (l *Loader) buildHierarchy(hdr Header, v cue.Value, fields []field, byLabel map[string]cue.Value) (*Hierarchy, error) {
	node, err := l.buildMapping(Header{}, fields, byLabel)
	if err != nil {
		return nil, err
	}
	h := &Hierarchy{Header: hdr, Node: node}

	optionalURI := func(key string) (*pattern.Pattern, error) {
		pv, ok := byLabel[key]
		if !ok {
			return nil, nil
		}
		src, err := patternString(pv, key)
		if err != nil {
			return nil, err
		}
		return l.compile(asURIPattern(src)), nil
	}
	if h.ParentLink, err = optionalURI(keyParentLink); err != nil {
		return nil, err
	}
	if h.ChildLink, err = optionalURI(keyChildLink); err != nil {
		return nil, err
	}
	if h.TopLink, err = optionalURI(keyTopLink); err != nil {
		return nil, err
	}

	if lv, ok := byLabel[keyLevel]; ok {
		src, err := patternString(lv, keyLevel)
		if err != nil {
			return nil, err
		}
		h.Mode = LevelMode
		h.Level = l.compile(src)
		return h, nil
	}
	if h.Parent, err = optionalURI(keyParent); err != nil {
		return nil, err
	}
	h.Mode = ParentMode
	if h.Parent == nil {
		return nil, &LoadError{Code: ErrCodeMissingField, Field: keyParent, Message: "hierarchy needs a parent or a level pattern", Pos: v.Pos()}
	}
	return h, nil
}

// parseBindings reads a bind value: one name→pattern object, or an array
// of them applied in order.
func (l *Loader) parseBindings(v cue.Value) ([]BindingSet, error) {
	var objs []cue.Value
	switch v.IncompleteKind() {
	case cue.StructKind:
		objs = []cue.Value{v}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			objs = append(objs, iter.Value())
		}
	default:
		return nil, shapeError(v, keyBind, "must be an object or an array of objects")
	}

	var sets []BindingSet
	for _, obj := range objs {
		if obj.IncompleteKind() != cue.StructKind {
			return nil, shapeError(obj, keyBind, "must be an object of name to pattern")
		}
		iter, err := obj.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var set BindingSet
		for iter.Next() {
			name := iter.Selector().Unquoted()
			src, err := patternString(iter.Value(), keyBind+"."+name)
			if err != nil {
				return nil, err
			}
			set = append(set, Binding{Name: name, Pattern: l.compile(src)})
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func (l *Loader) compile(src string) *pattern.Pattern {
	opts := []pattern.Option{pattern.WithPrefixes(l.prefixes), pattern.WithLogger(l.logger)}
	if l.cache != nil {
		opts = append(opts, pattern.WithCache(l.cache))
	}
	return pattern.Compile(src, opts...)
}

// asURIPattern wraps src in <...> unless it already is a URI pattern.
func asURIPattern(src string) string {
	if len(src) >= 2 && (src[0] == '<' || (src[0] == '^' && src[1] == '<')) && src[len(src)-1] == '>' {
		return src
	}
	return "<" + src + ">"
}

func patternString(v cue.Value, field string) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind, cue.BoolKind:
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return "", formatCUEError(err)
		}
		return fmt.Sprint(v), nil
	default:
		return "", shapeError(v, field, "must be a pattern string")
	}
}

func patternList(v cue.Value, field string) ([]string, error) {
	if v.IncompleteKind() != cue.ListKind {
		s, err := patternString(v, field)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := patternString(iter.Value(), field)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, shapeError(v, field, "must be a string or an array of strings")
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, shapeError(iter.Value(), field, "must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

type pair struct {
	key   string
	value string
}

func stringMap(v cue.Value, field string) ([]pair, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, shapeError(v, field, "must be an object of strings")
	}
	var out []pair
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, shapeError(iter.Value(), field+"."+iter.Selector().Unquoted(), "must be a string")
		}
		out = append(out, pair{key: iter.Selector().Unquoted(), value: s})
	}
	return out, nil
}

func shapeError(v cue.Value, field, msg string) *LoadError {
	return &LoadError{Code: ErrCodeShape, Field: field, Message: msg, Pos: v.Pos()}
}

// formatCUEError converts a CUE error into a LoadError carrying the
// position of its first error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeParse, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: ErrCodeParse, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
