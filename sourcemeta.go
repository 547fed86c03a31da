package markdoll

import (
	"strings"
	"sync"

	"github.com/0x57e11a/markdoll/spanner"
)

// SourceMetadata is the sealed sum type attached to every spanner buffer,
// recording how that buffer's text came to exist.
type SourceMetadata interface {
	isSourceMetadata()
}

// FileSource marks a buffer as a root or transitively-included file.
// ReferencedFrom is nil for the root document.
type FileSource struct {
	Name           string
	ReferencedFrom *spanner.Span
}

func (FileSource) isSourceMetadata() {}

// LineTagSource marks a buffer as the body of a tag whose content was
// supplied inline on one line (inside `[tag:...]`). Verbatim is true iff the
// derived buffer is character-for-character equal to the source slice From
// — i.e. no escape was resolved while building it.
type LineTagSource struct {
	From     spanner.Span
	Verbatim bool
}

func (LineTagSource) isSourceMetadata() {}

// TagArgumentSource marks a buffer as one parenthesized argument of a tag,
// with the same verbatim convention as LineTagSource.
type TagArgumentSource struct {
	From     spanner.Span
	Verbatim bool
}

func (TagArgumentSource) isSourceMetadata() {}

// BlockTagSource marks a buffer as the body of a tag whose content spans
// multiple lines (after `[tag::` through the matching dedent/`]`).
type BlockTagSource struct {
	Translation *TagDiagnosticTranslation
}

func (BlockTagSource) isSourceMetadata() {}

// TagDiagnosticTranslation carries what's needed to translate a span inside
// a BlockTag's derived buffer back to a span in its parent buffer: the
// parent span it was sliced from, the indentation depth that was stripped
// from each line, and a lazily-computed table of per-child-line starting
// Locs in the parent. The table is built once (sync.Once is this port's
// write-once cell, matching the Mutex<Option<...>> the original uses) since
// diagnostic resolution may happen long after parsing, possibly off the
// parsing goroutine.
type TagDiagnosticTranslation struct {
	ParentSpan spanner.Span
	Indent     int

	once       sync.Once
	lineStarts []spanner.Loc
}

// ToParent resolves span — which must lie within the BlockTag buffer this
// translation was installed for — to the equivalent span in ParentSpan's
// buffer.
func (t *TagDiagnosticTranslation) ToParent(sp *spanner.Spanner[SourceMetadata], span spanner.Span) spanner.Span {
	t.once.Do(func() {
		childBuf := sp.LookupBuf(span.Start)
		childLines := strings.Count(childBuf.Text, "\n") + 1
		t.lineStarts = buildParentLineStarts(sp, t.ParentSpan, t.Indent, childLines)
	})

	startLine, startCol := sp.LineCol(span.Start)
	endLine, endCol := sp.LineCol(span.End)

	start := t.lineStarts[clampLine(startLine, len(t.lineStarts))] + spanner.Loc(startCol)
	end := t.lineStarts[clampLine(endLine, len(t.lineStarts))] + spanner.Loc(endCol)

	return spanner.Span{Start: start, End: end}
}

func clampLine(line, n int) int {
	if n == 0 {
		return 0
	}
	if line >= n {
		return n - 1
	}
	return line
}

// buildParentLineStarts walks the parent span's text line by line (up to
// childLines lines) and, for each line, skips `indent` leading tokens — each
// either `\t` (1 char) or `-`/`=` (2 chars each) — recording the Loc where
// the remainder of that line begins. A parent line shorter than the
// expected prefix is handled permissively: once the line runs out, no
// further tokens are consumed and no offset is contributed for them.
func buildParentLineStarts(sp *spanner.Spanner[SourceMetadata], parentSpan spanner.Span, indent int, childLines int) []spanner.Loc {
	parentText := sp.LookupSpan(parentSpan)
	lines := strings.Split(parentText, "\n")

	starts := make([]spanner.Loc, 0, childLines)
	loc := parentSpan.Start

	for i := 0; i < childLines; i++ {
		var lineRunes []rune
		if i < len(lines) {
			lineRunes = []rune(lines[i])
		}

		pos := 0
	tokens:
		for tok := 0; tok < indent; tok++ {
			if pos >= len(lineRunes) {
				break
			}
			switch lineRunes[pos] {
			case '\t':
				pos++
			case '-', '=':
				pos += 2
			default:
				break tokens
			}
		}

		starts = append(starts, loc+spanner.Loc(pos))

		if i < len(lines) {
			loc += spanner.Loc(len(lineRunes)) + 1 // +1 for the consumed '\n'
		}
	}

	return starts
}
