package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	docerrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm"
)

// IndexBuilderConfig 索引构建配置。
type IndexBuilderConfig struct {
	// BatchSize 单次 Embedding 请求的文本数。
	BatchSize int
	// Timeout 单个批次的超时。
	Timeout time.Duration
}

// IndexBuilder 将全部分块嵌入并构建新的内存索引。
type IndexBuilder struct {
	embedder llm.EmbeddingProvider
	config   IndexBuilderConfig
}

// NewIndexBuilder 创建索引构建器。
func NewIndexBuilder(embedder llm.EmbeddingProvider, config IndexBuilderConfig) *IndexBuilder {
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	return &IndexBuilder{embedder: embedder, config: config}
}

// Build 为 chunks 构建索引。没有分块时返回 ErrEmptyCorpus；
// 任一批次失败、超时或向量数不符时返回外部服务错误且不产出索引。
func (b *IndexBuilder) Build(ctx context.Context, chunks []Chunk) (*store.MemoryIndex, error) {
	if len(chunks) == 0 {
		return nil, docerrors.ErrEmptyCorpus
	}

	start := time.Now()
	entries := make([]store.Entry, len(chunks))
	for lo := 0; lo < len(chunks); lo += b.config.BatchSize {
		hi := min(lo+b.config.BatchSize, len(chunks))

		texts := make([]string, hi-lo)
		for i := lo; i < hi; i++ {
			texts[i-lo] = chunks[i].Text
		}

		vectors, err := b.embedBatch(ctx, texts)
		if err != nil {
			logger.Warnw("embedding batch failed", "from", lo, "to", hi, "error", err.Error())
			return nil, err
		}
		for i := lo; i < hi; i++ {
			entries[i] = store.Entry{Text: chunks[i].Text, Source: chunks[i].Document, Vector: vectors[i-lo]}
		}
	}

	idx, err := store.NewMemoryIndex(entries)
	if err != nil {
		return nil, docerrors.ErrExternalService.WithCause(err)
	}

	logger.Infow("index built",
		"chunks", idx.Len(),
		"dim", idx.Dim(),
		"elapsed", time.Since(start).String(),
	)
	return idx, nil
}

func (b *IndexBuilder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := withTimeout(ctx, b.config.Timeout)
	defer cancel()

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, externalError(err)
	}
	if len(vectors) != len(texts) {
		return nil, docerrors.ErrExternalService.WithCause(
			fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts)))
	}
	return vectors, nil
}

// externalError 将外部调用错误归类为超时或一般失败。
func externalError(err error) error {
	if docerrors.IsExternalFailure(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return docerrors.ErrExternalTimeout.WithCause(err)
	}
	return docerrors.ErrExternalService.WithCause(err)
}
