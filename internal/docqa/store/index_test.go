package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_Search(t *testing.T) {
	idx, err := NewMemoryIndex([]Entry{
		{Text: "east", Source: "a.pdf", Vector: []float32{10, 0}},
		{Text: "north", Source: "a.pdf", Vector: []float32{0, 1}},
		{Text: "north-east", Source: "b.pdf", Vector: []float32{1, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 2, idx.Dim())

	res := idx.Search([]float32{2, 0.1}, 2)
	require.Len(t, res, 2)
	assert.Equal(t, "east", res[0].Text)
	assert.Equal(t, "north-east", res[1].Text)
	assert.Equal(t, "b.pdf", res[1].Source)
	assert.InDelta(t, 0.998, res[0].Score, 0.01)

	assert.Len(t, idx.Search([]float32{1, 0}, 10), 3, "k 超过记录数时返回全部")
	assert.Empty(t, idx.Search([]float32{1, 0, 0}, 1), "维度不符")
	assert.Empty(t, idx.Search([]float32{1, 0}, 0))
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, idx.Sources())
}

func TestMemoryIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := NewMemoryIndex([]Entry{
		{Text: "first", Vector: []float32{1, 0}},
		{Text: "second", Vector: []float32{2, 0}},
	})
	require.NoError(t, err)

	res := idx.Search([]float32{1, 0}, 2)
	assert.Equal(t, "first", res[0].Text)
	assert.Equal(t, "second", res[1].Text)
}

func TestMemoryIndex_Immutable(t *testing.T) {
	entries := []Entry{{Text: "x", Vector: []float32{1, 0}}}
	idx, err := NewMemoryIndex(entries)
	require.NoError(t, err)

	entries[0].Text = "mutated"
	entries[0].Vector[0] = -1

	res := idx.Search([]float32{1, 0}, 1)
	require.Len(t, res, 1)
	assert.Equal(t, "x", res[0].Text)
	assert.Greater(t, res[0].Score, float32(0.99))
}

func TestNewMemoryIndex_Invalid(t *testing.T) {
	_, err := NewMemoryIndex([]Entry{{Vector: []float32{1}}, {Vector: []float32{1, 2}}})
	assert.Error(t, err)

	_, err = NewMemoryIndex([]Entry{{Vector: nil}})
	assert.Error(t, err)
}

func TestMemoryIndex_NilAndEmpty(t *testing.T) {
	var idx *MemoryIndex
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Search([]float32{1}, 3))

	empty, err := NewMemoryIndex(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Search([]float32{1}, 3))
}
