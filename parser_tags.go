package markdoll

import (
	"strings"

	"github.com/0x57e11a/markdoll/spanner"
)

// parseTagInvocation is called right after the inline lexer consumes the
// opening `[` of a tag. It lexes the name and any parenthesized arguments,
// then branches on what follows: `:` + body + `]` (line tag), `::` + `\n`
// (block tag), or `]` alone (empty body). It reports stopLine=true only for
// the block-tag path, since a block tag's body is always captured from
// fresh physical lines — by the time it closes, the stream sits at the
// start of a new line that the outer per-line loop must process from
// scratch, not a continuation of the line that opened it.
func (ctx *parseCtx) parseTagInvocation(append_ func(spanner.Spanned[InlineItem])) (stopLine bool) {
	tagStart := ctx.s.loc() - 1 // the '[' was already consumed by the caller

	nameStart := ctx.s.loc()
	var nameRunes []rune
	for {
		c, ok := ctx.s.peekAt(0)
		if !ok || c == '(' || c == ':' || c == ']' || c == '\n' {
			break
		}
		ctx.s.next()
		nameRunes = append(nameRunes, c)
	}
	nameSpan := spanner.Span{Start: nameStart, End: ctx.s.loc()}
	name := string(nameRunes)

	var args []spanner.Span
	for {
		c, ok := ctx.s.peekAt(0)
		if !ok || c != '(' {
			break
		}
		ctx.s.next()
		if argSpan, ok2 := ctx.readArgument(); ok2 {
			args = append(args, argSpan)
		}
	}

	c, ok := ctx.s.peekAt(0)
	switch {
	case ok && c == ':':
		ctx.s.next()
		if c2, ok2 := ctx.s.peekAt(0); ok2 && c2 == ':' {
			ctx.s.next()
			if c3, ok3 := ctx.s.peekAt(0); ok3 && c3 == '\n' {
				ctx.s.next()
				ctx.openBlockTag(name, nameSpan, args, tagStart, append_)
				return true
			}
			// "::" not followed by a newline is malformed; fall through and
			// treat the rest as a line-tag body for best-effort recovery.
		}

		bodyStart := ctx.s.loc()
		resolved, verbatim, closed := ctx.readLineTagBody()
		if !closed {
			return false
		}
		bodyFrom := spanner.Span{Start: bodyStart, End: ctx.s.loc() - 1}
		handle := ctx.e.spanner.Add(LineTagSource{From: bodyFrom, Verbatim: verbatim}, resolved)
		tagSpan := spanner.Span{Start: tagStart, End: ctx.s.loc()}
		ctx.installTag(name, nameSpan, args, handle.Span(), tagSpan, append_)
		return false

	case ok && c == ']':
		ctx.s.next()
		tagSpan := spanner.Span{Start: tagStart, End: ctx.s.loc()}
		bodySpan := spanner.Span{Start: ctx.s.loc(), End: ctx.s.loc()}
		ctx.installTag(name, nameSpan, args, bodySpan, tagSpan, append_)
		return false

	default:
		ctx.e.diag(Diagnostic{
			Severity: SeverityError,
			Category: CategoryLang,
			Code:     CodeUnexpected,
			Primary:  LabeledSpan{Span: nameSpan, Label: "malformed tag invocation"},
		})
		return false
	}
}

// readLineTagBody scans a `:`-introduced inline body up to its balanced,
// unescaped closing `]`, resolving `\X` escapes into their literal character
// as it goes (so the stored buffer text matches what a tag's parse function
// should actually see, not the raw source with backslashes still present).
// It reports the resolved text, whether any escape fired (verbatim=false,
// meaning resolve_span can no longer do plain offset arithmetic against the
// source and must hop to the parent span instead), and whether it closed
// properly.
func (ctx *parseCtx) readLineTagBody() (text string, verbatim bool, closed bool) {
	verbatim = true
	depth := 1
	start := ctx.s.pos
	var out []rune

	for {
		c, nextOk := ctx.s.next()
		if !nextOk {
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryLang,
				Code:     CodeUnexpected,
				Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.base + spanner.Loc(start), End: ctx.s.loc()}, Label: "unexpected end of input inside tag body"},
			})
			return string(out), verbatim, false
		}

		switch c {
		case '[':
			depth++
			out = append(out, c)
		case ']':
			depth--
			if depth == 0 {
				return string(out), verbatim, true
			}
			out = append(out, c)
		case '\n':
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryLang,
				Code:     CodeUnexpected,
				Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc() - 1, End: ctx.s.loc()}, Label: "unexpected newline in tag body"},
			})
			ctx.s.unget()
			return string(out), verbatim, false
		case '\\':
			verbatim = false
			esc, escOk := ctx.s.next()
			if !escOk {
				return string(out), verbatim, false
			}
			if esc == '\n' || esc == '\t' {
				ctx.e.diag(Diagnostic{
					Severity: SeverityError,
					Category: CategoryTag,
					Code:     CodeCannotEscapeHere,
					Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc() - 2, End: ctx.s.loc()}, Label: "cannot escape here"},
				})
			} else {
				out = append(out, esc)
			}
		default:
			out = append(out, c)
		}
	}
}

// readArgument reads one parenthesized argument — the '(' has already been
// consumed by the caller — up to its balanced closing ')', installing the
// result as a new TagArgumentSource buffer.
func (ctx *parseCtx) readArgument() (spanner.Span, bool) {
	start := ctx.s.loc()
	depth := 1
	var out []rune
	verbatim := true

	for {
		c, ok := ctx.s.next()
		if !ok {
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryTagInput,
				Code:     CodeUnexpected,
				Primary:  LabeledSpan{Span: spanner.Span{Start: start, End: ctx.s.loc()}, Label: "unexpected end of input in tag argument"},
			})
			return spanner.Span{}, false
		}

		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				from := spanner.Span{Start: start, End: ctx.s.loc() - 1}
				handle := ctx.e.spanner.Add(TagArgumentSource{From: from, Verbatim: verbatim}, string(out))
				return handle.Span(), true
			}
			out = append(out, c)
		case '\n', '\t':
			verbatim = false
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryTagInput,
				Code:     CodeCannotEscapeHere,
				Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc() - 1, End: ctx.s.loc()}, Label: "unexpected whitespace in tag argument"},
			})
		case '\\':
			verbatim = false
			esc, escOk := ctx.s.next()
			if !escOk {
				return spanner.Span{}, false
			}
			if esc == '\n' || esc == '\t' {
				ctx.e.diag(Diagnostic{
					Severity: SeverityError,
					Category: CategoryTagInput,
					Code:     CodeCannotEscapeHere,
					Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc() - 2, End: ctx.s.loc()}, Label: "cannot escape here"},
				})
			} else {
				out = append(out, esc)
			}
		default:
			out = append(out, c)
		}
	}
}

// tryConsumeIndentTokens greedily consumes up to n indent tokens (the same
// `\t` | `-`trailing | `=`trailing grammar readIndentTokens uses), stopping
// as soon as the next characters don't form one, and reports how many it
// actually consumed.
func (ctx *parseCtx) tryConsumeIndentTokens(n int) int {
	count := 0
	for count < n {
		c, ok := ctx.s.peekAt(0)
		if !ok {
			break
		}
		switch c {
		case '\t':
			ctx.s.next()
			count++
		case '-', '=':
			next, hasNext := ctx.s.peekAt(1)
			if !hasNext || next == '\t' || next == '\n' {
				ctx.s.next() // the bullet mark
				if hasNext && next == '\t' {
					ctx.s.next() // its required separator, part of the same token
				}
				count++
			} else {
				return count
			}
		default:
			return count
		}
	}
	return count
}

// openBlockTag captures a `::`-introduced block tag's body: every
// subsequent line indented to requiredIndent belongs to it verbatim (beyond
// the structural prefix); it closes on a line whose first content character
// is `]` at requiredIndent-1, or by de-indentation past the tag (reported
// as MisalignedContent, then force-closed), or by EOF (reported as
// Unexpected end of input).
func (ctx *parseCtx) openBlockTag(name string, nameSpan spanner.Span, args []spanner.Span, tagStart spanner.Loc, append_ func(spanner.Spanned[InlineItem])) {
	requiredIndent := ctx.stack[len(ctx.stack)-1].frameDepth() + 1
	parentSpan := spanner.Span{Start: ctx.s.loc(), End: ctx.s.base + spanner.Loc(len(ctx.s.text))}
	ctx.e.trace("open block tag", "name", name, "requiredIndent", requiredIndent)

	bodyRunes, closedProperly := ctx.captureBlockTagBody(requiredIndent, tagStart)
	ctx.e.trace("close block tag", "name", name, "closedProperly", closedProperly)
	if !closedProperly {
		ctx.e.diag(Diagnostic{
			Severity: SeverityWarning,
			Category: CategoryLang,
			Code:     CodeMisalignedContent,
			Primary:  LabeledSpan{Span: spanner.Span{Start: tagStart, End: tagStart + 1}, Label: "block tag closed by de-indentation"},
		})
	}

	text := strings.TrimSuffix(string(bodyRunes), "\n")

	translation := &TagDiagnosticTranslation{ParentSpan: parentSpan, Indent: requiredIndent}
	handle := ctx.e.spanner.Add(BlockTagSource{Translation: translation}, text)
	tagSpan := spanner.Span{Start: tagStart, End: ctx.s.loc()}

	ctx.installTag(name, nameSpan, args, handle.Span(), tagSpan, append_)
}

// captureBlockTagBody reads raw lines from the stream until either a closing
// `]` line or a de-indentation below requiredIndent, whichever comes first,
// returning the body text (including the final line's trailing newline,
// which the caller strips) and whether the closure was a proper `]` (vs a
// de-indent or EOF force-close).
//
// A closing `]` is recognized at requiredIndent-1 or at any shallower depth
// (mirroring the original's `indent_level + 2 <= stack.len()`): the bracket
// still closes the tag either way, but anything shallower than the exact
// boundary is reported as MisalignedClosingBrace, tagged against the
// invoking tagStart rather than the bracket's own position.
func (ctx *parseCtx) captureBlockTagBody(requiredIndent int, tagStart spanner.Loc) (text []rune, closedProperly bool) {
	for {
		if ctx.s.eof() {
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryLang,
				Code:     CodeUnexpected,
				Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc(), End: ctx.s.loc()}, Label: "unexpected end of input inside block tag"},
			})
			return text, false
		}

		lineStart := ctx.s.pos

		closerTokens := ctx.tryConsumeIndentTokens(requiredIndent - 1)
		if c, ok := ctx.s.peekAt(0); ok && c == ']' {
			ctx.s.next()
			if closerTokens < requiredIndent-1 {
				ctx.e.diag(Diagnostic{
					Severity: SeverityError,
					Category: CategoryTag,
					Code:     CodeMisalignedClosingBrace,
					Primary:  LabeledSpan{Span: spanner.Span{Start: tagStart, End: tagStart + 1}, Label: "misaligned closing bracket for this tag"},
				})
			}
			ctx.consumeToEndOfLineLenient()
			return text, true
		}

		ctx.s.pos = lineStart
		bodyTokens := ctx.tryConsumeIndentTokens(requiredIndent)
		if bodyTokens < requiredIndent {
			ctx.s.pos = lineStart
			return text, false
		}

		for {
			c, ok := ctx.s.next()
			if !ok {
				break // the outer loop reports the unexpected end of input
			}
			if c == '\r' {
				ctx.s.unget()
				ctx.handleCR()
				return text, false
			}
			text = append(text, c)
			if c == '\n' {
				break
			}
		}
	}
}

// consumeToEndOfLineLenient discards the remainder of the closing `]`
// line; any non-whitespace before its newline is reported as
// MisalignedContent (the tag still closes).
func (ctx *parseCtx) consumeToEndOfLineLenient() {
	c, ok := ctx.s.peekAt(0)
	if !ok {
		return
	}
	if c == '\n' {
		ctx.s.next()
		return
	}

	start := ctx.s.loc()
	for {
		c2, ok2 := ctx.s.next()
		if !ok2 || c2 == '\n' {
			break
		}
	}
	ctx.e.diag(Diagnostic{
		Severity: SeverityWarning,
		Category: CategoryLang,
		Code:     CodeMisalignedContent,
		Primary:  LabeledSpan{Span: spanner.Span{Start: start, End: ctx.s.loc()}, Label: "extraneous content after block tag closing bracket"},
	})
}

// installTag looks up the tag by name and, if found, invokes its parse
// function; a parse result with ok=false suppresses the invocation entirely,
// matching the spec's comment/error-tag use case (nil content with ok=true
// is still installed).
func (ctx *parseCtx) installTag(
	name string,
	nameSpan spanner.Span,
	args []spanner.Span,
	bodySpan spanner.Span,
	tagSpan spanner.Span,
	append_ func(spanner.Spanned[InlineItem]),
) {
	def, found := ctx.e.lookupTag(name)
	if !found {
		ctx.e.diag(Diagnostic{
			Severity: SeverityError,
			Category: CategoryTag,
			Code:     CodeUndefinedTag,
			Primary:  LabeledSpan{Span: nameSpan, Label: "tag not defined"},
		})
		return
	}
	if def.Parse == nil {
		return
	}

	content, produced := def.Parse(ctx.e, args, bodySpan, tagSpan)
	if !produced {
		return
	}

	append_(spanner.Spanned[InlineItem]{
		Span: tagSpan,
		Value: Tag{Invocation: &TagInvocation{
			Tag:     def,
			Name:    nameSpan,
			Args:    args,
			TagSpan: tagSpan,
			Content: content,
		}},
	})
}
