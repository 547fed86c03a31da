package markdoll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x57e11a/markdoll"
)

// Boundary scenario 4 (spec.md §8): "[code:x]" with the code tag registered
// as identity-over-body -> Inline{[Tag(code, body="x")]}; emit with an HTML
// target produces "<code>x</code>".
func TestCodeTagRendersIdentityBody(t *testing.T) {
	e := newHTMLEngine()

	ok, diags, _, ast := e.ParseDocument("doc.doll", "[code:x]", nil)
	require.True(t, ok)
	assert.Empty(t, diags)

	var out htmlDoc
	ok, diags = markdoll.Emit(e, ast, &out, nil)
	require.True(t, ok)
	assert.Empty(t, diags)
	assert.Equal(t, "<code>x</code>", out.buf.String())
}

// Boundary scenario 5: "[em(b):hi]" -> emitted HTML contains a <strong>
// wrapper (bold set, italic off) rather than the default <em>.
func TestEmTagHonorsBoldArgument(t *testing.T) {
	e := newHTMLEngine()

	ok, _, _, ast := e.ParseDocument("doc.doll", "[em(b):hi]", nil)
	require.True(t, ok)

	var out htmlDoc
	ok, _ = markdoll.Emit(e, ast, &out, nil)
	require.True(t, ok)
	assert.Contains(t, out.buf.String(), "<strong>hi</strong>")
}

func TestEmTagDefaultsToItalic(t *testing.T) {
	e := newHTMLEngine()

	ok, _, _, ast := e.ParseDocument("doc.doll", "[em:hi]", nil)
	require.True(t, ok)

	var out htmlDoc
	markdoll.Emit(e, ast, &out, nil)
	assert.Contains(t, out.buf.String(), "<em>hi</em>")
}

// Boundary scenario 7: a reference to an undefined tag fails the parse and
// installs nothing.
func TestUndefinedTagProducesDiagnosticAndNoInlineItem(t *testing.T) {
	e := newHTMLEngine()

	ok, diags, _, ast := e.ParseDocument("doc.doll", "[oops]", nil)
	assert.False(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, markdoll.CodeUndefinedTag, diags[0].Code)

	require.Len(t, ast, 1)
	inline := ast[0].Value.(markdoll.Inline)
	for _, item := range inline.Items {
		_, isTag := item.Value.(markdoll.Tag)
		assert.False(t, isTag)
	}
}

// commentTag's parse always returns ok=false: the invocation is dropped
// entirely, same as an undefined tag would be for AST shape purposes, but
// without any diagnostic.
func TestCommentTagSuppressesInvocation(t *testing.T) {
	e := newHTMLEngine()

	ok, diags, _, ast := e.ParseDocument("doc.doll", "[comment:ignored]", nil)
	assert.True(t, ok)
	assert.Empty(t, diags)
	require.Len(t, ast, 1)

	inline := ast[0].Value.(markdoll.Inline)
	for _, item := range inline.Items {
		_, isTag := item.Value.(markdoll.Tag)
		assert.False(t, isTag)
	}
}

// Invariant 3 (spec.md §8): resolve_span is idempotent under composition.
func TestResolveSpanIsIdempotent(t *testing.T) {
	e := markdoll.New()
	_, _, _, ast := e.ParseDocument("doc.doll", "hello world", nil)
	require.Len(t, ast, 1)

	span := ast[0].Span
	outer1, _ := e.ResolveSpan(span)
	outer2, _ := e.ResolveSpan(outer1.Span)

	assert.Equal(t, outer1, outer2)
}

// Boundary scenario 8: a CR aborts the parse and reports exactly the
// mandated diagnostic.
func TestCarriageReturnAbortsParse(t *testing.T) {
	e := markdoll.New()
	ok, diags, _, _ := e.ParseDocument("doc.doll", "a\r\nb", nil)

	assert.False(t, ok)
	require.NotEmpty(t, diags)
	assert.Equal(t, markdoll.CodeCarriageReturn, diags[0].Code)
}
