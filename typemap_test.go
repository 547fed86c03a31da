package markdoll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x57e11a/markdoll"
)

func TestTypeMapPutGetRoundTrips(t *testing.T) {
	m := markdoll.NewTypeMap()

	markdoll.Put(m, 42)
	markdoll.Put(m, "hello")

	n, ok := markdoll.Get[int](m)
	require.True(t, ok)
	assert.Equal(t, 42, n)

	s, ok := markdoll.Get[string](m)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestTypeMapGetMissingReturnsZeroValue(t *testing.T) {
	m := markdoll.NewTypeMap()

	n, ok := markdoll.Get[int](m)
	assert.False(t, ok)
	assert.Equal(t, 0, n)
}

func TestTypeMapPutReplacesExistingValueOfSameType(t *testing.T) {
	m := markdoll.NewTypeMap()

	markdoll.Put(m, 1)
	markdoll.Put(m, 2)

	n, ok := markdoll.Get[int](m)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Len())
}

func TestTypeMapDistinguishesDistinctNamedTypes(t *testing.T) {
	type A struct{ V int }
	type B struct{ V int }

	m := markdoll.NewTypeMap()
	markdoll.Put(m, A{V: 1})
	markdoll.Put(m, B{V: 2})

	a, ok := markdoll.Get[A](m)
	require.True(t, ok)
	assert.Equal(t, 1, a.V)

	b, ok := markdoll.Get[B](m)
	require.True(t, ok)
	assert.Equal(t, 2, b.V)
}

func TestTypeMapRemove(t *testing.T) {
	m := markdoll.NewTypeMap()
	markdoll.Put(m, 7)
	markdoll.Remove[int](m)

	_, ok := markdoll.Get[int](m)
	assert.False(t, ok)
	assert.True(t, m.IsEmpty())
}

func TestTypeMapTypeNamesSorted(t *testing.T) {
	m := markdoll.NewTypeMap()
	markdoll.Put(m, "x")
	markdoll.Put(m, 1)
	markdoll.Put(m, 1.5)

	names := m.TypeNames()
	require.Len(t, names, 3)
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
