package markdoll

import (
	"fmt"

	"github.com/0x57e11a/markdoll/spanner"
)

// Severity classifies how serious a Diagnostic is. Only Error severity
// falses the engine's ok flag.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Category buckets a diagnostic by where it originated.
type Category int

const (
	// CategoryLang is a parser-level lexical or structural problem.
	CategoryLang Category = iota
	// CategoryEmit is a missing emit handler for a requested output type.
	CategoryEmit
	// CategoryTagInput is a missing/invalid tag argument or property.
	CategoryTagInput
	// CategoryTag is an opaque diagnostic raised by a tag implementation.
	CategoryTag
)

// Code is a stable, documented diagnostic identifier.
type Code string

const (
	CodeUnexpected              Code = "markdoll::lang::unexpected"
	CodeCarriageReturn          Code = "markdoll::lang::crlf_explode"
	CodeMisalignedClosingBrace  Code = "markdoll::tag::misaligned_closing_brace"
	CodeMisalignedList          Code = "markdoll::tag::misaligned_list"
	CodeMisalignedContent       Code = "markdoll::tag::misaligned_content"
	CodeCannotEscape            Code = "markdoll::tag::cannot_escape"
	CodeCannotEscapeHere        Code = "markdoll::tag::cannot_escape_here"
	CodeUndefinedTag            Code = "markdoll::tag::undefined_tag"
	CodeSuspiciousWhitespace    Code = "markdoll::sus_spaces"
	CodeTagCannotEmitTo         Code = "markdoll::emit::tag_cannot_emit_to"
	CodeTagDoesNotSupportInput  Code = "markdoll::tag::no_content_support"
)

// LabeledSpan is a span annotated with a human-readable label, used both for
// a diagnostic's secondary context spans and for resolve_span's "referenced
// by"/"from here" trail.
type LabeledSpan struct {
	Span  spanner.Span
	Label string
}

// Diagnostic is the uniform shape every parser/emit/tag-reported problem
// takes. Diagnostics accumulate into the engine's current buffer; they are
// never returned as a Go error from Parse/Emit (Error implements the error
// interface purely as a convenience for callers that want to log one).
type Diagnostic struct {
	Severity  Severity
	Category  Category
	Code      Code
	Primary   LabeledSpan
	Secondary []LabeledSpan
	Help      string
}

// Error satisfies the error interface so a Diagnostic can be logged or
// wrapped with %w without forcing callers through ResolveSpan first.
func (d Diagnostic) Error() string {
	if d.Help != "" {
		return fmt.Sprintf("%s [%s]: %s", d.Code, d.Severity, d.Help)
	}
	return fmt.Sprintf("%s [%s]", d.Code, d.Severity)
}

// SourceSpan is a span resolved all the way to the file that ultimately
// contains it, alongside that file's name.
type SourceSpan struct {
	File string
	Span spanner.Span
}

// ResolveSpan walks a span up through the source-map graph until it reaches
// a root file (one with no referenced_from), collapsing verbatim/block hops
// and retaining "from here"/"referenced by" labels for transformed hops.
//
// It is idempotent: resolving the returned outer span again yields the same
// outer span, since a root File buffer's metadata has ReferencedFrom == nil
// and the loop below stops immediately.
func (e *Engine) ResolveSpan(span spanner.Span) (outer SourceSpan, contexts []LabeledSpan) {
	sp := e.spanner
	init := span
	cur := span
	var labels []LabeledSpan
	var fileName string

	for {
		buf := sp.LookupBuf(cur.Start)

		switch meta := buf.Metadata.(type) {
		case FileSource:
			fileName = meta.Name
			if meta.ReferencedFrom == nil {
				goto done
			}
			labels = append(labels, LabeledSpan{Span: *meta.ReferencedFrom, Label: "referenced by"})
			cur = *meta.ReferencedFrom

		case LineTagSource:
			cur, init, labels = resolveVerbatimStep(cur, init, labels, buf.Base, meta.From, meta.Verbatim)

		case TagArgumentSource:
			cur, init, labels = resolveVerbatimStep(cur, init, labels, buf.Base, meta.From, meta.Verbatim)

		case BlockTagSource:
			parent := meta.Translation.ToParent(sp, cur)
			if len(labels) > 0 {
				labels[len(labels)-1].Span = parent
			} else {
				init = parent
			}
			cur = parent
		}
	}

done:
	return SourceSpan{File: fileName, Span: init}, labels
}

// resolveVerbatimStep implements the LineTag/TagArgument case of
// resolve_span's walk: a verbatim hop rewrites the current position in
// place (it adds no information beyond an offset), a non-verbatim hop keeps
// an explicit "from here" label and jumps to the source span.
func resolveVerbatimStep(
	cur, init spanner.Span,
	labels []LabeledSpan,
	bufBase spanner.Loc,
	from spanner.Span,
	verbatim bool,
) (newCur, newInit spanner.Span, newLabels []LabeledSpan) {
	if verbatim {
		childOffset := cur.Start - bufBase
		final := spanner.Span{
			Start: from.Start + childOffset,
			End:   from.Start + childOffset + spanner.Loc(cur.Len()),
		}
		if len(labels) > 0 {
			labels[len(labels)-1].Span = final
		} else {
			init = final
		}
		return final, init, labels
	}

	labels = append(labels, LabeledSpan{Span: from, Label: "from here"})
	return from, init, labels
}
