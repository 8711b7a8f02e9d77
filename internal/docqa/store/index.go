package store

import (
	"fmt"
	"math"
	"sort"
)

// Entry 是索引中的一条记录。
type Entry struct {
	// Text 分块文本。
	Text string
	// Source 来源文档名。
	Source string
	// Vector 嵌入向量，构建时归一化。
	Vector []float32
}

// SearchResult 表示检索结果。
type SearchResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

// VectorIndex 定义只读向量索引接口。
type VectorIndex interface {
	// Search 返回与 query 余弦相似度最高的 k 条记录，分数降序。
	Search(query []float32, k int) []SearchResult
	// Len 返回记录数。
	Len() int
	// Dim 返回向量维度，空索引为 0。
	Dim() int
}

// MemoryIndex 是暴力检索的内存索引。构建后不可变，可被并发读取。
type MemoryIndex struct {
	entries []Entry
	dim     int
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex 构建索引。所有向量维度必须一致且非空。
// 传入的 entries 会被复制，调用方可继续修改原切片。
func NewMemoryIndex(entries []Entry) (*MemoryIndex, error) {
	idx := &MemoryIndex{entries: make([]Entry, len(entries))}
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("entry %d: empty vector", i)
		}
		if idx.dim == 0 {
			idx.dim = len(e.Vector)
		} else if len(e.Vector) != idx.dim {
			return nil, fmt.Errorf("entry %d: dimension %d, want %d", i, len(e.Vector), idx.dim)
		}
		idx.entries[i] = Entry{Text: e.Text, Source: e.Source, Vector: normalize(e.Vector)}
	}
	return idx, nil
}

// Len 返回记录数。
func (m *MemoryIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Dim 返回向量维度。
func (m *MemoryIndex) Dim() int {
	if m == nil {
		return 0
	}
	return m.dim
}

// Sources 返回去重后的来源文档名，保持首次出现顺序。
func (m *MemoryIndex) Sources() []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, e := range m.entries {
		if _, ok := seen[e.Source]; ok {
			continue
		}
		seen[e.Source] = struct{}{}
		out = append(out, e.Source)
	}
	return out
}

// Search 余弦相似度 top-k。分数相同按插入顺序，维度不符时返回空。
func (m *MemoryIndex) Search(query []float32, k int) []SearchResult {
	if m == nil || k <= 0 || len(m.entries) == 0 || len(query) != m.dim {
		return nil
	}

	q := normalize(query)
	type scored struct {
		i     int
		score float32
	}
	all := make([]scored, len(m.entries))
	for i, e := range m.entries {
		all[i] = scored{i: i, score: dot(q, e.Vector)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	if k > len(all) {
		k = len(all)
	}
	out := make([]SearchResult, k)
	for j := 0; j < k; j++ {
		e := m.entries[all[j].i]
		out[j] = SearchResult{Text: e.Text, Source: e.Source, Score: all[j].score}
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// normalize 返回单位向量副本；零向量原样复制。
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
