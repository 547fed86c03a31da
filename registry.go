package markdoll

import "github.com/0x57e11a/markdoll/spanner"

// ParseFunc is a tag definition's parse step. It receives the tag's already
// source-mapped argument spans, its body span (empty for a bodyless
// invocation), and the span of the invocation itself, and returns the
// opaque content to attach to the resulting Tag inline item. Returning
// ok=false suppresses the invocation entirely (used by e.g. comment and
// error tags) — the parser installs nothing in that case.
//
// The parser core never inspects content; only this same TagDefinition's
// registered emitters ever see it again.
type ParseFunc func(e *Engine, args []spanner.Span, body spanner.Span, tagSpan spanner.Span) (content any, ok bool)

// TagEmitFunc is a tag definition's emit step for one output type T. It
// receives back exactly the content its ParseFunc produced.
type TagEmitFunc[T any] func(e *Engine, content any, to *T, ctx any, tagSpan spanner.Span) bool

// TagDefinition is a named extension to the tag language: a parse step and a
// type-keyed table of emit steps, one per output type the tag knows how to
// render to.
type TagDefinition struct {
	Key      string
	Parse    ParseFunc
	Emitters *TypeMap
}

// NewTagDefinition returns a tag definition with an empty emitter table.
func NewTagDefinition(key string, parse ParseFunc) *TagDefinition {
	return &TagDefinition{Key: key, Parse: parse, Emitters: NewTypeMap()}
}

// RegisterTagEmitter installs def's emit function for output type T.
func RegisterTagEmitter[T any](def *TagDefinition, fn TagEmitFunc[T]) {
	Put(def.Emitters, fn)
}

// AddTag registers a tag definition, keyed by its Key. A later registration
// with the same key replaces the earlier one.
func (e *Engine) AddTag(def *TagDefinition) {
	e.tags[def.Key] = def
}

// AddTags registers every given tag definition.
func (e *Engine) AddTags(defs ...*TagDefinition) {
	for _, def := range defs {
		e.AddTag(def)
	}
}

// lookupTag returns the tag definition registered under key, if any.
func (e *Engine) lookupTag(key string) (*TagDefinition, bool) {
	def, ok := e.tags[key]
	return def, ok
}
