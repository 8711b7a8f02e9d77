package biz

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustChunker(t *testing.T, size, overlap int) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(size, overlap)
	require.NoError(t, err)
	return c
}

// sampleText 生成没有重复词的多段文本。
func sampleText(paragraphs, sentences int) string {
	var sb strings.Builder
	n := 0
	for p := 0; p < paragraphs; p++ {
		for s := 0; s < sentences; s++ {
			for w := 0; w < 9; w++ {
				fmt.Fprintf(&sb, "w%d ", n)
				n++
			}
			fmt.Fprintf(&sb, "w%d. ", n)
			n++
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestNewRecursiveChunker_Invalid(t *testing.T) {
	_, err := NewRecursiveChunker(0, 0)
	assert.Error(t, err)
	_, err = NewRecursiveChunker(100, 100)
	assert.Error(t, err)
	_, err = NewRecursiveChunker(100, -1)
	assert.Error(t, err)
}

func TestSplit_EmptyAndWhitespace(t *testing.T) {
	c := mustChunker(t, 500, 100)
	for _, in := range []string{"", "   ", "\n\n\t "} {
		got := c.Split(in)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	c := mustChunker(t, 500, 100)
	assert.Equal(t, []string{"Hello world."}, c.Split("  Hello world.\n"))
}

func TestSplit_Deterministic(t *testing.T) {
	c := mustChunker(t, 500, 100)
	text := sampleText(6, 8)
	assert.Equal(t, c.Split(text), c.Split(text))
	assert.Equal(t, c.Split(text), mustChunker(t, 500, 100).Split(text))
}

func TestSplit_ParagraphsWithOverlap(t *testing.T) {
	text := "aaaa\n\nbbbb\n\ncccc"

	assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, mustChunker(t, 12, 0).Split(text))
	assert.Equal(t, []string{"aaaa\n\nbbbb", "bbbb\n\ncccc"}, mustChunker(t, 12, 6).Split(text))
}

func TestSplit_HardCut(t *testing.T) {
	c := mustChunker(t, 5, 2)
	assert.Equal(t, []string{"abcde", "defgh", "ghij"}, c.Split("abcdefghij"))
}

func TestSplit_CountsRunes(t *testing.T) {
	c := mustChunker(t, 4, 1)
	got := c.Split("文档问答系统测试")
	assert.Equal(t, []string{"文档问答", "答系统测", "测试"}, got)
	for _, chunk := range got {
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestSplit_SizeBound(t *testing.T) {
	for _, cfg := range [][2]int{{500, 100}, {120, 30}, {40, 0}} {
		c := mustChunker(t, cfg[0], cfg[1])
		for _, chunk := range c.Split(sampleText(5, 7)) {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), cfg[0])
		}
	}
}

// 按顺序在原文中定位每个分块：起点严格递增，块间只允许空白空隙，
// 去掉重叠后拼接即可还原原文的全部非空白内容。
func TestSplit_ReconstructsContentOrder(t *testing.T) {
	for _, cfg := range [][2]int{{500, 100}, {120, 30}, {60, 0}} {
		c := mustChunker(t, cfg[0], cfg[1])
		text := sampleText(4, 6)
		chunks := c.Split(text)
		require.Greater(t, len(chunks), 1)

		from, prevEnd := 0, 0
		var rebuilt strings.Builder
		for i, chunk := range chunks {
			idx := strings.Index(text[from:], chunk)
			require.GreaterOrEqual(t, idx, 0, "chunk %d not found in order", i)
			start := from + idx

			if start > prevEnd {
				assert.Empty(t, strings.TrimSpace(text[prevEnd:start]), "gap before chunk %d", i)
				rebuilt.WriteString(text[prevEnd:start])
				rebuilt.WriteString(chunk)
			} else if start+len(chunk) > prevEnd {
				// 去掉与前一块的重叠
				rebuilt.WriteString(text[prevEnd : start+len(chunk)])
			}
			prevEnd = max(prevEnd, start+len(chunk))
			from = start + 1
		}
		assert.Empty(t, strings.TrimSpace(text[prevEnd:]))
		assert.Equal(t, strings.TrimSpace(text), strings.TrimSpace(rebuilt.String()))
	}
}

func TestChunkDocument(t *testing.T) {
	c := mustChunker(t, 12, 0)
	chunks := ChunkDocument(c, "doc1.pdf", "aaaa\n\nbbbb\n\ncccc")
	require.Len(t, chunks, 2)
	assert.Equal(t, Chunk{Document: "doc1.pdf", Seq: 1, Text: "cccc"}, chunks[1])
}
