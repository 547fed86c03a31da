package markdoll

import (
	"fmt"

	"github.com/0x57e11a/markdoll/spanner"
)

// stream is a random-access rune cursor over one buffer's text. The spec
// only requires 1-character unget and arbitrary lookahead-by-N from the
// parser's point of view; internally this type allows seeking freely, which
// is how captureBlockTagBody rewinds to reprocess a dedent line without
// needing a second stream type — the externally observable behavior is
// unchanged since nothing but the parser itself ever touches a stream.
type stream struct {
	text []rune
	pos  int
	base spanner.Loc
}

func newStream(text []rune, base spanner.Loc) *stream {
	return &stream{text: text, base: base}
}

func (s *stream) loc() spanner.Loc { return s.base + spanner.Loc(s.pos) }

func (s *stream) eof() bool { return s.pos >= len(s.text) }

func (s *stream) next() (rune, bool) {
	if s.eof() {
		return 0, false
	}
	r := s.text[s.pos]
	s.pos++
	return r, true
}

func (s *stream) unget() {
	if s.pos > 0 {
		s.pos--
	}
}

// peekAt looks ahead n characters (0 = the next character to be read by
// next) without consuming anything.
func (s *stream) peekAt(n int) (rune, bool) {
	idx := s.pos + n
	if idx < 0 || idx >= len(s.text) {
		return 0, false
	}
	return s.text[idx], true
}

// indentKind classifies one indent token read at the start of a logical
// line.
type indentKind int

const (
	indentStandard indentKind = iota
	indentUnordered
	indentOrdered
)

// blockAccum accumulates the inline items of the paragraph currently being
// built, plus the finished block-item children of whatever frame owns it.
// Root, Section and each List item share this shape.
type blockAccum struct {
	children    []spanner.Spanned[BlockItem]
	inline      []spanner.Spanned[InlineItem]
	inlineStart spanner.Loc
	hasInline   bool
}

func (b *blockAccum) appendInline(item spanner.Spanned[InlineItem]) {
	if !b.hasInline {
		b.inlineStart = item.Span.Start
		b.hasInline = true
	}
	b.inline = append(b.inline, item)
}

func (b *blockAccum) lastInlineIsBreakLike() bool {
	if len(b.inline) == 0 {
		return true
	}
	switch b.inline[len(b.inline)-1].Value.(type) {
	case Split, Break:
		return true
	default:
		return false
	}
}

// flush closes the in-progress paragraph (if any) into a finished Inline
// block item.
func (b *blockAccum) flush() {
	if b.hasInline && len(b.inline) > 0 {
		end := b.inline[len(b.inline)-1].Span.End
		b.children = append(b.children, spanner.Spanned[BlockItem]{
			Span:  spanner.Span{Start: b.inlineStart, End: end},
			Value: Inline{Items: b.inline},
		})
	}
	b.inline = nil
	b.hasInline = false
}

func (b *blockAccum) appendChild(item spanner.Spanned[BlockItem]) {
	b.children = append(b.children, item)
}

// frame is one entry of the parser's structural stack. depth is the
// indent-token count required for a line to belong to this frame's body
// (everything except Root and SectionHeader contributes a level, per the
// spec's "indent depth of the stack" definition).
type frame interface {
	frameDepth() int
}

type rootFrame struct {
	accum blockAccum
}

func (*rootFrame) frameDepth() int { return 0 }

type sectionHeaderFrame struct {
	depth     int
	headerPos spanner.Loc
	header    []spanner.Spanned[InlineItem]
}

func (f *sectionHeaderFrame) frameDepth() int { return f.depth }

type sectionFrame struct {
	depth     int
	headerPos spanner.Loc
	header    []spanner.Spanned[InlineItem]
	level     int
	accum     blockAccum
}

func (f *sectionFrame) frameDepth() int { return f.depth }

type listFrame struct {
	depth    int
	ordered  bool
	startPos spanner.Loc
	items    []AST
	current  blockAccum
	started  bool
}

func (f *listFrame) frameDepth() int { return f.depth }

func (f *listFrame) newItem() {
	f.current.flush()
	f.items = append(f.items, f.current.children)
	f.current = blockAccum{}
	f.started = true
}

// containerFrame is implemented by every frame that owns a blockAccum that
// inline content and child block items can be appended into.
type containerFrame interface {
	frame
	accumOf() *blockAccum
}

func (f *rootFrame) accumOf() *blockAccum { return &f.accum }
func (f *sectionFrame) accumOf() *blockAccum { return &f.accum }
func (f *listFrame) accumOf() *blockAccum { return &f.current }

// parseCtx carries the state threaded through one top-level parse call.
type parseCtx struct {
	e        *Engine
	s        *stream
	stack    []frame
	crSeen   bool
	warnedCR bool

	// lastSignificant records whether the most recently completed line
	// emitted any non-whitespace inline content (spec's "significant
	// line"). matchFrame reads it to decide whether a same-kind bullet at
	// an existing list's depth starts a new item or, for an insignificant
	// line, flushes the (possibly empty) current list and starts a fresh
	// one instead of growing it with an empty item.
	lastSignificant bool
}

// parse is the entry point shared by ParseDocument and ParseEmbedded: it
// runs the full indentation/tag state machine over body (a span already
// present in the spanner) and returns the resulting AST.
//
// If body lies within a BlockTag's derived buffer, its indent is pushed onto
// e.blockIndents for the duration of this call, so a placeholder section
// opened for unexpected indentation while parsing it (directly, or
// transitively through a tag that itself embeds a parse) reports a level
// consistent with the full enclosing nesting via findParentIndent. Ordinary
// sections take their level from this parse's own stack depth.
func (e *Engine) parse(body spanner.Span) AST {
	if meta, ok := e.spanner.Metadata(body.Start).(BlockTagSource); ok {
		e.blockIndents = append(e.blockIndents, meta.Translation.Indent)
		defer func() { e.blockIndents = e.blockIndents[:len(e.blockIndents)-1] }()
	}

	text := []rune(e.spanner.LookupSpan(body))
	ctx := &parseCtx{
		e:     e,
		s:     newStream(text, body.Start),
		stack: []frame{&rootFrame{}},
	}

	ctx.run()

	return ctx.finish()
}

// run drives the per-line protocol described in spec §4.5 until EOF or a
// CarriageReturn abort.
func (ctx *parseCtx) run() {
	for !ctx.s.eof() && !ctx.crSeen {
		ctx.stepLine()
	}
}

// stepLine processes exactly one logical (post-indent) line: reading its
// indent tokens, squashing/opening/matching frames to the resulting target
// depth, then dispatching the remainder of the line to whatever frame ends
// up on top.
func (ctx *parseCtx) stepLine() {
	tokens, sawSuspiciousSpace := ctx.readIndentTokens()
	if ctx.crSeen {
		return
	}
	targetDepth := len(tokens)

	blank := ctx.atLineEnd()
	ctx.e.trace("line", "targetDepth", targetDepth, "blank", blank)

	ctx.squashTo(targetDepth)

	if sawSuspiciousSpace {
		ctx.e.diag(Diagnostic{
			Severity: SeverityWarning,
			Category: CategoryLang,
			Code:     CodeSuspiciousWhitespace,
			Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc(), End: ctx.s.loc()}, Label: "spaces are not indentation"},
		})
	}

	top := ctx.stack[len(ctx.stack)-1]
	curDepth := top.frameDepth()

	if targetDepth > curDepth {
		ctx.openFrame(tokens[curDepth])
	} else if targetDepth > 0 {
		ctx.matchFrame(tokens[targetDepth-1])
	}

	if blank {
		if cf, ok := ctx.stack[len(ctx.stack)-1].(containerFrame); ok {
			ctx.e.trace("flush insignificant")
			cf.accumOf().flush()
		}
		ctx.consumeRestOfLine()
		ctx.lastSignificant = false
		return
	}

	ctx.dispatchLine()
	ctx.lastSignificant = true
}

// readIndentTokens consumes the IND* prefix of the current line:
// IND := '\t' | ('-' ('\t' | '\n' | EOF)) | ('=' ('\t' | '\n' | EOF)).
// It has no BlockTag case: BlockTag bodies are consumed entirely by
// captureBlockTagBody before control returns to the per-line loop, so this
// stops at the first character that is not part of an indent token (or at
// a CR).
func (ctx *parseCtx) readIndentTokens() (tokens []indentKind, sawSuspiciousSpace bool) {
	for {
		c, ok := ctx.s.peekAt(0)
		if !ok {
			return tokens, sawSuspiciousSpace
		}
		switch c {
		case '\t':
			ctx.s.next()
			tokens = append(tokens, indentStandard)
			continue
		case '-', '=':
			next, hasNext := ctx.s.peekAt(1)
			if !hasNext || next == '\t' || next == '\n' {
				ctx.s.next() // the bullet mark
				if hasNext && next == '\t' {
					ctx.s.next() // its required separator, part of the same token
				}
				if c == '-' {
					tokens = append(tokens, indentUnordered)
				} else {
					tokens = append(tokens, indentOrdered)
				}
				continue
			}
			return tokens, sawSuspiciousSpace
		case ' ':
			ctx.s.next()
			sawSuspiciousSpace = true
			continue
		case '\r':
			ctx.handleCR()
			return tokens, sawSuspiciousSpace
		default:
			return tokens, sawSuspiciousSpace
		}
	}
}

func (ctx *parseCtx) atLineEnd() bool {
	c, ok := ctx.s.peekAt(0)
	return !ok || c == '\n'
}

func (ctx *parseCtx) consumeRestOfLine() {
	for {
		c, ok := ctx.s.next()
		if !ok {
			return
		}
		if c == '\n' {
			return
		}
		if c == '\r' {
			ctx.s.unget()
			ctx.handleCR()
			return
		}
	}
}

// handleCR implements the spec's CR policy: surfaced once, then the stream
// aborts the rest of the file.
func (ctx *parseCtx) handleCR() {
	ctx.crSeen = true
	if ctx.warnedCR {
		return
	}
	ctx.warnedCR = true
	at := ctx.s.loc()
	ctx.e.diag(Diagnostic{
		Severity: SeverityError,
		Category: CategoryLang,
		Code:     CodeCarriageReturn,
		Primary:  LabeledSpan{Span: spanner.Span{Start: at, End: at + 1}, Label: "carriage return is not supported; use LF line endings"},
	})
}

// squashTo terminates every frame deeper than targetDepth, gracefully
// (flushing into its parent) except for a BlockTag frame, which this outer
// loop never holds (see captureBlockTagBody) — so squash here only ever deals
// with graceful frames.
func (ctx *parseCtx) squashTo(targetDepth int) {
	for len(ctx.stack) > 1 && ctx.stack[len(ctx.stack)-1].frameDepth() > targetDepth {
		ctx.terminateTop()
	}
}

// terminateTop pops the top frame and folds its finished BlockItem into the
// new top's accumulator.
func (ctx *parseCtx) terminateTop() {
	top := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	parent := ctx.stack[len(ctx.stack)-1].(containerFrame)
	ctx.e.trace("terminate", "frame", fmt.Sprintf("%T", top), "depth", top.frameDepth())

	switch f := top.(type) {
	case *sectionHeaderFrame:
		parent.accumOf().appendChild(spanner.Spanned[BlockItem]{
			Span:  spanner.Span{Start: f.headerPos, End: ctx.s.loc()},
			Value: Section{Header: f.header, Level: f.depth + 1, Children: nil},
		})
	case *sectionFrame:
		f.accum.flush()
		parent.accumOf().appendChild(spanner.Spanned[BlockItem]{
			Span:  spanner.Span{Start: f.headerPos, End: ctx.s.loc()},
			Value: Section{Header: f.header, Level: f.level, Children: f.accum.children},
		})
	case *listFrame:
		f.newItem() // flush whatever item was in progress
		parent.accumOf().appendChild(spanner.Spanned[BlockItem]{
			Span:  spanner.Span{Start: f.startPos, End: ctx.s.loc()},
			Value: List{Ordered: f.ordered, Items: f.items},
		})
	}
}

// openFrame opens exactly one new level in response to the first new indent
// token beyond the current depth, per spec §4.5 step 1.
func (ctx *parseCtx) openFrame(kind indentKind) {
	top := ctx.stack[len(ctx.stack)-1]
	newDepth := top.frameDepth() + 1
	ctx.e.trace("open frame", "kind", kind, "newDepth", newDepth)

	switch kind {
	case indentStandard:
		if header, ok := top.(*sectionHeaderFrame); ok {
			ctx.stack[len(ctx.stack)-1] = &sectionFrame{
				depth:     newDepth,
				headerPos: header.headerPos,
				header:    header.header,
				level:     newDepth,
			}
			return
		}
		ctx.e.diag(Diagnostic{
			Severity: SeverityError,
			Category: CategoryLang,
			Code:     CodeUnexpected,
			Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc(), End: ctx.s.loc()}, Label: "unexpected indentation"},
		})
		// the level this placeholder reports accounts for any enclosing
		// block-tag content's own indent, per findParentIndent, matching how
		// the original resolves an invalid-indentation section's level.
		ctx.stack = append(ctx.stack, &sectionFrame{
			depth:     newDepth,
			headerPos: ctx.s.loc(),
			level:     newDepth + ctx.e.findParentIndent() - 1,
		})
	case indentUnordered, indentOrdered:
		ctx.stack = append(ctx.stack, &listFrame{
			depth:    newDepth,
			ordered:  kind == indentOrdered,
			startPos: ctx.s.loc(),
		})
	}
}

// matchFrame handles a line whose indent tokens land exactly on an existing
// frame's depth: list-item boundaries, list/section transitions, per spec
// §4.5 step 1's "else" branch.
func (ctx *parseCtx) matchFrame(lastToken indentKind) {
	top := ctx.stack[len(ctx.stack)-1]

	switch f := top.(type) {
	case *listFrame:
		newOrdered := lastToken == indentOrdered
		if lastToken == indentStandard {
			return // continuing inside the current item
		}
		if newOrdered == f.ordered && ctx.lastSignificant {
			ctx.e.trace("new list item")
			f.newItem()
			return
		}
		// either the bullet kind changed, or the previous line was
		// insignificant (empty) — either way the current list is flushed
		// as-is (its last item may itself be empty) and a fresh list
		// starts here, rather than growing the existing list with an
		// empty item.
		if newOrdered != f.ordered {
			ctx.e.diag(Diagnostic{
				Severity: SeverityError,
				Category: CategoryLang,
				Code:     CodeMisalignedList,
				Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc(), End: ctx.s.loc()}, Label: "list bullet kind changed"},
			})
		}
		ctx.terminateTop()
		ctx.stack = append(ctx.stack, &listFrame{
			depth:    f.depth,
			ordered:  newOrdered,
			startPos: ctx.s.loc(),
		})
	case *sectionFrame:
		if lastToken != indentStandard {
			ctx.terminateTop()
			ctx.stack = append(ctx.stack, &listFrame{
				depth:    f.depth,
				ordered:  lastToken == indentOrdered,
				startPos: ctx.s.loc(),
			})
		}
	}
}

// dispatchLine parses the remainder of the physical line per spec §4.5 step
// 3: `&` opens a section header, otherwise the rest of the line is lexed as
// inline content (text/escapes/tags).
func (ctx *parseCtx) dispatchLine() {
	top := ctx.stack[len(ctx.stack)-1]

	if c, ok := ctx.s.peekAt(0); ok && c == '&' {
		if header, isHeader := top.(*sectionHeaderFrame); isHeader {
			// a '&' line at the open header's own depth (a deeper line would
			// have promoted it in openFrame) continues that header: the '&'
			// is consumed and the rest of the line is appended to it.
			ctx.s.next()
			ctx.lexInlineLineInto(func(item spanner.Spanned[InlineItem]) {
				header.header = append(header.header, item)
			}, func() bool {
				if len(header.header) == 0 {
					return true
				}
				switch header.header[len(header.header)-1].Value.(type) {
				case Split, Break:
					return true
				default:
					return false
				}
			})
			return
		}

		ctx.s.next()
		hf := &sectionHeaderFrame{depth: top.frameDepth(), headerPos: ctx.s.loc()}
		ctx.stack = append(ctx.stack, hf)
		ctx.lexInlineLineInto(func(item spanner.Spanned[InlineItem]) {
			hf.header = append(hf.header, item)
		}, func() bool {
			if len(hf.header) == 0 {
				return true
			}
			switch hf.header[len(hf.header)-1].Value.(type) {
			case Split, Break:
				return true
			default:
				return false
			}
		})
		return
	}

	cf, ok := top.(containerFrame)
	if !ok {
		// Only a SectionHeader is not a container. A line at the header's
		// own depth (a deeper one would have promoted it in openFrame, and
		// squashTo only pops deeper frames) continues the header's inline
		// content.
		if header, isHeader := top.(*sectionHeaderFrame); isHeader {
			acc := blockAccum{inline: header.header}
			ctx.lexInlineLineInto(acc.appendInline, acc.lastInlineIsBreakLike)
			header.header = acc.inline
			return
		}
		ctx.consumeRestOfLine()
		return
	}

	accum := cf.accumOf()
	ctx.lexInlineLineInto(accum.appendInline, accum.lastInlineIsBreakLike)
}

// lexInlineLineInto lexes one physical line's worth of inline content —
// text runs, escapes, and tag invocations — consuming through the
// terminating `\n` (or EOF). append adds a finished inline item to whatever
// sequence the caller is building; lastIsBreakLike reports whether the most
// recently appended item there is already a Split/Break, so the trailing
// Split this function adds at end-of-line can be suppressed per spec
// ("unless the previous inline was also Split/Break").
func (ctx *parseCtx) lexInlineLineInto(append_ func(spanner.Spanned[InlineItem]), lastIsBreakLike func() bool) {
	var textStart spanner.Loc
	var text []rune
	hasText := false

	flushText := func() {
		if hasText {
			append_(spanner.Spanned[InlineItem]{
				Span:  spanner.Span{Start: textStart, End: ctx.s.loc()},
				Value: Text{Value: string(text)},
			})
		}
		text = nil
		hasText = false
	}

	appendLiteral := func(r rune) {
		if !hasText {
			textStart = ctx.s.loc() - 1
			hasText = true
		}
		text = append(text, r)
	}

	for {
		c, ok := ctx.s.next()
		if !ok {
			flushText()
			return
		}

		switch c {
		case '\n':
			flushText()
			if !lastIsBreakLike() {
				append_(spanner.Spanned[InlineItem]{
					Span:  spanner.Span{Start: ctx.s.loc() - 1, End: ctx.s.loc()},
					Value: Split{},
				})
			}
			return

		case '\r':
			flushText()
			ctx.s.unget()
			ctx.handleCR()
			return

		case '\\':
			flushText()
			esc, ok := ctx.s.next()
			if !ok {
				return
			}
			switch esc {
			case '\n':
				append_(spanner.Spanned[InlineItem]{
					Span:  spanner.Span{Start: ctx.s.loc() - 2, End: ctx.s.loc()},
					Value: Break{},
				})
			case '\t':
				ctx.e.diag(Diagnostic{
					Severity: SeverityError,
					Category: CategoryLang,
					Code:     CodeCannotEscape,
					Primary:  LabeledSpan{Span: spanner.Span{Start: ctx.s.loc() - 2, End: ctx.s.loc()}, Label: "cannot escape indentation"},
					Help:     "indentation",
				})
			default:
				appendLiteral(esc)
			}

		case '[':
			flushText()
			if ctx.parseTagInvocation(append_) {
				return
			}

		default:
			appendLiteral(c)
		}
	}
}

// finish performs the EOF reconciliation pass: every remaining frame is
// terminated (graceful frames flush cleanly; this outer stack never holds
// an unterminated BlockTag, since those are captured by the recursive
// captureBlockTagBody and always closed before control returns here).
func (ctx *parseCtx) finish() AST {
	for len(ctx.stack) > 1 {
		ctx.terminateTop()
	}
	root := ctx.stack[0].(*rootFrame)
	root.accum.flush()
	return root.accum.children
}
