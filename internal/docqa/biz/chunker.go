package biz

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators 递归分块使用的分隔符，按优先级排列，"" 表示按字符硬切。
var DefaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// Chunk 是某个文档文本中的一个有序片段。
type Chunk struct {
	Document string `json:"document"`
	Seq      int    `json:"seq"`
	Text     string `json:"text"`
}

// Chunker 将文本切分为有重叠的片段。
type Chunker interface {
	Split(text string) []string
}

// RecursiveChunker 递归字符分块器，长度按 rune 计。
//
// 先用第一个出现在文本中的分隔符切分（分隔符保留在前一段末尾），
// 再把小段合并成不超过 Size 的窗口，窗口之间携带不超过 Overlap 的尾部；
// 仍然过长的段用下一个分隔符递归处理。
type RecursiveChunker struct {
	Size       int
	Overlap    int
	Separators []string
}

var _ Chunker = (*RecursiveChunker)(nil)

// NewRecursiveChunker 创建分块器。
func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &RecursiveChunker{Size: size, Overlap: overlap, Separators: DefaultSeparators}, nil
}

// Split 切分文本。空白文本返回空切片，结果只依赖输入。
func (c *RecursiveChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	seps := c.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}

	var out []string
	for _, chunk := range c.split(text, seps) {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func (c *RecursiveChunker) split(text string, seps []string) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	if sep == "" {
		return c.hardCut(text)
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) <= c.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, c.hardCut(piece)...)
		} else {
			out = append(out, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge 把小段按顺序合并成窗口，新窗口从上一窗口不超过 Overlap 的尾部开始。
func (c *RecursiveChunker) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.Size && len(current) > 0 {
			out = append(out, strings.Join(current, ""))
			for total > c.Overlap || (total+n > c.Size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, ""))
	}
	return out
}

// hardCut 按 Size 个 rune 切窗口，步长 Size-Overlap。
func (c *RecursiveChunker) hardCut(text string) []string {
	runes := []rune(text)
	step := c.Size - c.Overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitKeep 按 sep 切分，sep 保留在前一段末尾。
func splitKeep(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// ChunkDocument 切分一个文档的文本并编号。
func ChunkDocument(c Chunker, document, text string) []Chunk {
	texts := c.Split(text)
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Document: document, Seq: i, Text: t}
	}
	return chunks
}
