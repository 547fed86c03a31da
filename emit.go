package markdoll

import "github.com/0x57e11a/markdoll/spanner"

// BuiltInEmitters is the set of rendering functions the engine calls for the
// three built-in BlockItem/InlineItem shapes, for one output type T. A
// library embedding markdoll must register exactly one of these per output
// type it wants to emit to, via SetBuiltInEmitters, before calling Emit for
// that type — its absence is a fatal misconfiguration (panic), not a
// runtime diagnostic, per the spec.
type BuiltInEmitters[T any] struct {
	Inline  func(e *Engine, items []spanner.Spanned[InlineItem], to *T, ctx any) bool
	Section func(e *Engine, header []spanner.Spanned[InlineItem], level int, children AST, to *T, ctx any) bool
	List    func(e *Engine, ordered bool, items []AST, to *T, ctx any) bool
}

// SetBuiltInEmitters registers emitters for output type T.
func SetBuiltInEmitters[T any](e *Engine, emitters BuiltInEmitters[T]) {
	Put(e.builtins, emitters)
}

// Emit renders ast to output type T using the BuiltInEmitters registered for
// T (see SetBuiltInEmitters). It stashes and restores the engine's ok flag
// and diagnostic buffer around the call, per the concurrency model: a
// caller that nests Emit calls (a tag's emitter rendering an embedded tree)
// gets its own (ok, diagnostics) pair back without clobbering the outer
// call's bookkeeping.
func Emit[T any](e *Engine, ast AST, to *T, ctx any) (ok bool, diags []Diagnostic) {
	savedOK, savedDiags := e.ok, e.diagnostics
	e.ok, e.diagnostics = true, nil
	defer func() {
		ok, diags = e.ok, e.diagnostics
		e.ok, e.diagnostics = savedOK, savedDiags
	}()

	emitters, found := Get[BuiltInEmitters[T]](e.builtins)
	if !found {
		panic("markdoll: no BuiltInEmitters registered for this output type; call SetBuiltInEmitters first")
	}

	for _, item := range ast {
		emitBlockItem(e, emitters, item.Value, to, ctx)
	}

	return
}

func emitBlockItem[T any](e *Engine, emitters BuiltInEmitters[T], item BlockItem, to *T, ctx any) bool {
	switch v := item.(type) {
	case Inline:
		return emitters.Inline(e, v.Items, to, ctx)
	case Section:
		return emitters.Section(e, v.Header, v.Level, v.Children, to, ctx)
	case List:
		return emitters.List(e, v.Ordered, v.Items, to, ctx)
	default:
		panic("markdoll: unknown BlockItem variant")
	}
}

// EmitTag looks up inv.Tag's registered emit function for output type T and
// invokes it with the content inv's ParseFunc produced. If no such function
// was registered, it records a TagCannotEmitTo diagnostic and returns false
// — emit handlers own all rendering decisions; the core enforces nothing
// about the produced output beyond this dispatch.
//
// Built-in Inline emitters call this for every Tag item they encounter; a
// caller supplying a custom Inline emitter must do the same.
func EmitTag[T any](e *Engine, inv *TagInvocation, to *T, ctx any) bool {
	fn, found := Get[TagEmitFunc[T]](inv.Tag.Emitters)
	if !found {
		e.diag(Diagnostic{
			Severity: SeverityError,
			Category: CategoryEmit,
			Code:     CodeTagCannotEmitTo,
			Primary:  LabeledSpan{Span: inv.TagSpan, Label: "cannot emit this tag to the requested output"},
			Help:     "registered output types: " + joinTypeNames(inv.Tag.Emitters.TypeNames()),
		})
		return false
	}
	return fn(e, inv.Content, to, ctx, inv.TagSpan)
}

func joinTypeNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
