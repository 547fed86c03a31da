package markdoll

import "github.com/0x57e11a/markdoll/spanner"

// AST is the parsed form of a document: a sequence of spanned block items.
type AST []spanner.Spanned[BlockItem]

// BlockItem is the sealed sum type of top-level tree nodes: a paragraph of
// inline content, a section with a heading and nested children, or a list.
type BlockItem interface {
	isBlockItem()
}

// Inline is a run of inline items forming one logical paragraph.
type Inline struct {
	Items []spanner.Spanned[InlineItem]
}

func (Inline) isBlockItem() {}

// Section is a `&`-headed block and everything nested under it. Level is the
// stack depth at which the section was opened; the core places no upper
// bound on it (see design notes — the HTML target folds levels above 6 into
// an ARIA heading, but that is the target's business, not the parser's).
type Section struct {
	Header   []spanner.Spanned[InlineItem]
	Level    int
	Children AST
}

func (Section) isBlockItem() {}

// List is either an ordered or unordered list; each item is itself a
// sequence of block items (so list items can contain paragraphs, nested
// lists, even nested sections).
type List struct {
	Ordered bool
	Items   []AST
}

func (List) isBlockItem() {}

// InlineItem is the sealed sum type of items inside one logical paragraph
// line: literal text, a soft line join (`Split`), a forced line break
// (`Break`), or a tag invocation.
type InlineItem interface {
	isInlineItem()
}

// Text is a run of literal characters (escapes already resolved).
type Text struct {
	Value string
}

func (Text) isInlineItem() {}

// Split separates two lines of the same paragraph that were not joined by a
// `\<newline>` escape.
type Split struct{}

func (Split) isInlineItem() {}

// Break is a forced line break, produced by a `\<newline>` escape.
type Break struct{}

func (Break) isInlineItem() {}

// Tag wraps one tag invocation appearing inline.
type Tag struct {
	Invocation *TagInvocation
}

func (Tag) isInlineItem() {}

// TagInvocation is the result of a tag's parse function accepting an
// occurrence of `[name(...)...]`. Content is opaque to everything but the
// tag definition that produced it — the parser core never inspects it, and
// emit dispatch only ever hands it back to that same definition's emitters.
type TagInvocation struct {
	Tag     *TagDefinition
	Name    spanner.Span
	Args    []spanner.Span
	TagSpan spanner.Span
	Content any
}
