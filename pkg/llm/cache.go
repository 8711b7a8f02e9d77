package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kart-io/logger"
)

// CachedEmbeddingProvider 在 Embedding 供应商前加一层有界 LRU 缓存。
// 键为文本的 SHA-256，未变化的分块在重建时不会再次请求服务。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	cache    *lru.Cache[[sha256.Size]byte, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats Embedding 缓存统计。
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider 创建容量为 size 的缓存包装器。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, size int) (*CachedEmbeddingProvider, error) {
	cache, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("创建 embedding 缓存失败: %w", err)
	}
	return &CachedEmbeddingProvider{provider: provider, cache: cache}, nil
}

// Embed 批量生成 Embedding，只为未命中的文本调用底层供应商。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	keys := make([][sha256.Size]byte, len(texts))

	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		keys[i] = sha256.Sum256([]byte(text))
		if vec, ok := c.cache.Get(keys[i]); ok {
			embeddings[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	c.hits.Add(int64(len(texts) - len(missTexts)))
	c.misses.Add(int64(len(missTexts)))

	if len(missTexts) == 0 {
		logger.Debugw("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding 数量不匹配: 期望 %d, 实际 %d", len(missTexts), len(fresh))
	}

	for j, i := range missIdx {
		embeddings[i] = fresh[j]
		c.cache.Add(keys[i], fresh[j])
	}

	logger.Debugw("embedding cache miss (batch)", "total", len(texts), "uncached", len(missTexts))
	return embeddings, nil
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// Stats 返回缓存统计。
func (c *CachedEmbeddingProvider) Stats() CacheStats {
	return CacheStats{
		Size:   c.cache.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Purge 清空缓存。
func (c *CachedEmbeddingProvider) Purge() {
	c.cache.Purge()
}
