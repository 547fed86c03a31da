// Package spanner implements an append-only arena of named source buffers.
//
// A Spanner issues opaque, process-global character offsets (Loc) as
// buffers are added, and resolves a Loc back to the buffer that owns it (and
// to a line/column within that buffer) in O(log N) time, N being the number
// of buffers. It never moves or mutates a buffer once added.
package spanner

import "sort"

// Loc is a 32-bit global character offset into the spanner's virtual
// concatenation of all buffers, in insertion order. A Loc never moves once
// issued.
type Loc uint32

// Span is a half-open [Start, End) range of Locs, always within a single
// buffer.
type Span struct {
	Start Loc
	End   Loc
}

// Len reports the number of characters covered by the span.
func (s Span) Len() uint32 {
	return uint32(s.End - s.Start)
}

// Contains reports whether loc falls within the half-open span.
func (s Span) Contains(loc Loc) bool {
	return loc >= s.Start && loc < s.End
}

// Spanned pairs a Span with an arbitrary payload.
type Spanned[T any] struct {
	Span  Span
	Value T
}

// buffer is one append-only entry in the arena.
type buffer[M any] struct {
	base     Loc
	text     []rune
	metadata M
}

// Spanner is an append-only arena of buffers, generic over the metadata type
// attached to each buffer (see the SourceMetadata sum type in the markdoll
// package for the concrete instantiation this module uses).
type Spanner[M any] struct {
	buffers []buffer[M]
	next    Loc
}

// New returns an empty Spanner.
func New[M any]() *Spanner[M] {
	return &Spanner[M]{}
}

// Handle identifies one buffer previously returned by Add.
type Handle struct {
	index int
	span  Span
}

// Span covers the handle's entire buffer text.
func (h Handle) Span() Span {
	return h.span
}

// Add assigns a contiguous Loc range to text, stores metadata alongside it,
// and returns a Handle exposing the span covering the whole buffer.
//
// Buffers are appended in strictly increasing Loc order; this is what lets
// LookupBuf binary-search on base offsets.
func (s *Spanner[M]) Add(metadata M, text string) Handle {
	runes := []rune(text)
	base := s.next
	end := base + Loc(len(runes))

	s.buffers = append(s.buffers, buffer[M]{
		base:     base,
		text:     runes,
		metadata: metadata,
	})
	s.next = end

	return Handle{index: len(s.buffers) - 1, span: Span{Start: base, End: end}}
}

// BufferView is the information returned for the buffer owning a given Loc.
type BufferView[M any] struct {
	Base     Loc
	Text     string
	Metadata M
}

// Span covers the entire buffer this view describes.
func (v BufferView[M]) Span() Span {
	return Span{Start: v.Base, End: v.Base + Loc(len([]rune(v.Text)))}
}

// LookupBuf returns the buffer containing loc, with its base Loc, text and
// metadata. Panics if the Spanner holds no buffers; a loc at or past the
// last buffer's end resolves to that last buffer — callers only ever pass
// Locs obtained from spans this Spanner itself issued.
func (s *Spanner[M]) LookupBuf(loc Loc) BufferView[M] {
	idx := s.bufferIndex(loc)
	b := s.buffers[idx]
	return BufferView[M]{Base: b.base, Text: string(b.text), Metadata: b.metadata}
}

// bufferIndex finds the buffer owning loc via binary search over monotonic
// base offsets — O(log N) in buffer count, per the Spanner invariant.
func (s *Spanner[M]) bufferIndex(loc Loc) int {
	// sort.Search finds the first buffer whose base is > loc; the owning
	// buffer is the one immediately before it.
	i := sort.Search(len(s.buffers), func(i int) bool {
		return s.buffers[i].base > loc
	})
	if i == 0 {
		panic("spanner: loc out of range")
	}
	return i - 1
}

// LookupSpan returns the text slice covered by span. Both endpoints must lie
// within the same buffer; this is never checked across buffer boundaries
// because the parser never holds a span that straddles one.
func (s *Spanner[M]) LookupSpan(span Span) string {
	idx := s.bufferIndex(span.Start)
	b := s.buffers[idx]
	lo := int(span.Start - b.base)
	hi := int(span.End - b.base)
	if lo < 0 {
		lo = 0
	}
	if hi > len(b.text) {
		hi = len(b.text)
	}
	if hi < lo {
		hi = lo
	}
	return string(b.text[lo:hi])
}

// Metadata returns the metadata of the buffer owning loc.
func (s *Spanner[M]) Metadata(loc Loc) M {
	return s.buffers[s.bufferIndex(loc)].metadata
}

// LineCol returns the 0-based (line, col) of loc within its owning buffer.
func (s *Spanner[M]) LineCol(loc Loc) (line, col int) {
	idx := s.bufferIndex(loc)
	b := s.buffers[idx]
	offset := int(loc - b.base)
	if offset > len(b.text) {
		offset = len(b.text)
	}
	for i := 0; i < offset; i++ {
		if b.text[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}

// LookupLinearIndex returns the buffer-local rune offset for loc, used by
// the diagnostic surface to index into a buffer's text directly rather than
// repeating a global-to-local subtraction at every call site.
func (s *Spanner[M]) LookupLinearIndex(loc Loc) int {
	idx := s.bufferIndex(loc)
	return int(loc - s.buffers[idx].base)
}
