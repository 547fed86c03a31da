// Package markdoll implements an indentation-structured markup engine: a
// tag-invocation model over a recursive-descent/state-machine parser, with
// nested source-mapping diagnostics and a type-keyed emitter dispatch layer.
//
// The engine itself knows nothing about any particular tag or output
// format — callers register TagDefinitions and BuiltInEmitters[T] for
// whichever output type(s) they render to.
package markdoll

import (
	"strings"

	"go.uber.org/zap"

	"github.com/0x57e11a/markdoll/spanner"
)

// Engine is the façade over the spanner, tag registry, built-in emitters,
// and the accumulated diagnostic/ok bookkeeping for the document(s) it
// parses and emits.
type Engine struct {
	spanner  *spanner.Spanner[SourceMetadata]
	tags     map[string]*TagDefinition
	builtins *TypeMap

	ok          bool
	diagnostics []Diagnostic

	// blockIndents tracks the indent depth of every BlockTag body whose
	// embedded parse is currently in progress, outermost first — the stack
	// findParentIndent folds over so the placeholder section opened for
	// unexpected indentation inside nested tag content reports a level
	// consistent with the full nesting, not just its own embedded parse's
	// local depth.
	blockIndents []int

	log *zap.SugaredLogger
}

// findParentIndent folds the currently-open BlockTag indents into a single
// offset for the placeholder-section level computed in parser.go's openFrame,
// mirroring the original's find_parent_indent.
func (e *Engine) findParentIndent() int {
	indent := 1
	for i := len(e.blockIndents) - 1; i >= 0; i-- {
		indent += e.blockIndents[i]
		if indent > 0 {
			indent--
		}
	}
	return indent
}

// Option configures an Engine at construction time. All configuration lives
// on the engine instance — there is no on-disk config format in scope.
type Option func(*Engine)

// New returns a ready-to-use Engine with no tags registered.
func New(options ...Option) *Engine {
	e := &Engine{
		spanner:  spanner.New[SourceMetadata](),
		tags:     make(map[string]*TagDefinition),
		builtins: NewTypeMap(),
		ok:       true,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// diag records a diagnostic into the engine's current buffer, falsing ok if
// it's Error severity.
func (e *Engine) diag(d Diagnostic) {
	if d.Severity == SeverityError {
		e.ok = false
	}
	e.diagnostics = append(e.diagnostics, d)
	e.log.Debugw("diagnostic", "code", d.Code, "severity", d.Severity.String())
}

// ParseDocument adds text as a new file buffer (optionally referenced from
// an including span, for transitively-included files) and parses it.
//
// Its (ok, diagnostics) pair is stashed and restored around the call per
// the concurrency model, so nested ParseEmbedded/Emit calls a tag's parse
// function makes do not clobber this call's own bookkeeping.
func (e *Engine) ParseDocument(filename string, text string, referencedFrom *spanner.Span) (ok bool, diags []Diagnostic, frontmatter *string, ast AST) {
	savedOK, savedDiags := e.ok, e.diagnostics
	e.ok, e.diagnostics = true, nil
	defer func() {
		ok, diags = e.ok, e.diagnostics
		e.ok, e.diagnostics = savedOK, savedDiags
	}()

	handle := e.spanner.Add(FileSource{Name: filename, ReferencedFrom: referencedFrom}, text)
	body, fm := e.probeFrontmatter(handle.Span())
	ast = e.parse(body)
	frontmatter = fm
	return
}

// ParseEmbedded runs the full parser over span, which must already be
// present in the spanner (typically the body of a LineTag, TagArgument, or
// BlockTag buffer). Unlike ParseDocument, it does not stash/restore ok or
// the diagnostic buffer — diagnostics accumulate uniformly into whatever
// call is currently in progress, per spec §4.7.
func (e *Engine) ParseEmbedded(span spanner.Span) AST {
	return e.parse(span)
}

// Finish exposes the engine's spanner so a caller can pretty-print
// diagnostics (resolve spans to file coordinates, render source snippets,
// etc.) after parsing/emitting is complete.
func (e *Engine) Finish() *spanner.Spanner[SourceMetadata] {
	return e.spanner
}

// probeFrontmatter implements the optional `---\n...\n---` frontmatter
// probe (spec §4.5): only recognized at position 0, returned verbatim. A
// `---` closer line followed by trailing non-newline characters is
// reported but the frontmatter still closes there; a missing closer cancels
// the probe entirely (the leading `---` is then just ordinary text).
func (e *Engine) probeFrontmatter(full spanner.Span) (body spanner.Span, frontmatter *string) {
	text := []rune(e.spanner.LookupSpan(full))
	if len(text) < 4 || string(text[0:4]) != "---\n" {
		return full, nil
	}

	i := 4
	for {
		lineStart := i
		lineEnd := lineStart
		for lineEnd < len(text) && text[lineEnd] != '\n' {
			lineEnd++
		}
		line := string(text[lineStart:lineEnd])

		if line == "---" {
			closerEnd := lineEnd
			if closerEnd < len(text) {
				closerEnd++ // consume the newline
			}
			fm := string(text[4:lineStart])
			return spanner.Span{Start: full.Start + spanner.Loc(closerEnd), End: full.End}, &fm
		}

		if strings.HasPrefix(line, "---") {
			e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryLang,
				Code:     CodeUnexpected,
				Primary: LabeledSpan{
					Span:  spanner.Span{Start: full.Start + spanner.Loc(lineStart), End: full.Start + spanner.Loc(lineEnd)},
					Label: "expected a lone '---' to close the frontmatter block",
				},
			})
			closerEnd := lineEnd
			if closerEnd < len(text) {
				closerEnd++ // consume the newline
			}
			fm := string(text[4:lineStart])
			return spanner.Span{Start: full.Start + spanner.Loc(closerEnd), End: full.End}, &fm
		}

		if lineEnd >= len(text) {
			return full, nil // no closer found: cancel the probe entirely
		}
		i = lineEnd + 1
	}
}
