package spanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x57e11a/markdoll/spanner"
)

type meta struct {
	name string
}

func TestAddAssignsDisjointMonotonicRanges(t *testing.T) {
	s := spanner.New[meta]()

	h1 := s.Add(meta{name: "a"}, "hello")
	h2 := s.Add(meta{name: "b"}, "world!!")

	assert.Equal(t, spanner.Loc(0), h1.Span().Start)
	assert.Equal(t, spanner.Loc(5), h1.Span().End)
	assert.Equal(t, h1.Span().End, h2.Span().Start)
	assert.Equal(t, spanner.Loc(12), h2.Span().End)
}

func TestLookupBufReturnsOwningBuffer(t *testing.T) {
	s := spanner.New[meta]()
	s.Add(meta{name: "a"}, "0123")
	s.Add(meta{name: "b"}, "4567")

	view := s.LookupBuf(5)
	assert.Equal(t, "b", view.Metadata.name)
	assert.Equal(t, "4567", view.Text)
	assert.Equal(t, spanner.Loc(4), view.Base)
}

func TestLookupSpanSlicesWithinOneBuffer(t *testing.T) {
	s := spanner.New[meta]()
	s.Add(meta{name: "a"}, "abcdefgh")

	text := s.LookupSpan(spanner.Span{Start: 2, End: 5})
	require.Equal(t, "cde", text)
}

func TestLineColIsZeroBased(t *testing.T) {
	s := spanner.New[meta]()
	h := s.Add(meta{name: "a"}, "ab\ncd\nef")

	line, col := s.LineCol(h.Span().Start)
	assert.Equal(t, 0, line)
	assert.Equal(t, 0, col)

	// 'c' is right after the first newline.
	line, col = s.LineCol(h.Span().Start + 3)
	assert.Equal(t, 1, line)
	assert.Equal(t, 0, col)

	// 'f' is the last char, on line 2, col 1.
	line, col = s.LineCol(h.Span().Start + 7)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)
}

func TestLocNeverMovesAcrossAdds(t *testing.T) {
	s := spanner.New[meta]()
	h1 := s.Add(meta{name: "a"}, "xx")
	before := h1.Span()
	s.Add(meta{name: "b"}, "yy")
	s.Add(meta{name: "c"}, "zz")

	assert.Equal(t, before, h1.Span())
}
