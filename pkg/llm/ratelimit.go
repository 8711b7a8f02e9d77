package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbeddingProvider 按固定速率放行 Embedding 请求。
// 等待受调用方 ctx 约束，不做任何重试。
type RateLimitedEmbeddingProvider struct {
	provider EmbeddingProvider
	limiter  *rate.Limiter
}

var _ EmbeddingProvider = (*RateLimitedEmbeddingProvider)(nil)

// NewRateLimitedEmbeddingProvider 创建限流包装器，rps 为每秒请求数。
func NewRateLimitedEmbeddingProvider(provider EmbeddingProvider, rps float64, burst int) *RateLimitedEmbeddingProvider {
	return &RateLimitedEmbeddingProvider{
		provider: provider,
		limiter:  newLimiter(rps, burst),
	}
}

// Embed 等待令牌后调用底层供应商。
func (r *RateLimitedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := wait(ctx, r.limiter); err != nil {
		return nil, err
	}
	return r.provider.Embed(ctx, texts)
}

// EmbedSingle 等待令牌后调用底层供应商。
func (r *RateLimitedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := wait(ctx, r.limiter); err != nil {
		return nil, err
	}
	return r.provider.EmbedSingle(ctx, text)
}

// Name 返回底层供应商名称。
func (r *RateLimitedEmbeddingProvider) Name() string { return r.provider.Name() }

// RateLimitedChatProvider 按固定速率放行生成请求。
type RateLimitedChatProvider struct {
	provider ChatProvider
	limiter  *rate.Limiter
}

var _ ChatProvider = (*RateLimitedChatProvider)(nil)

// NewRateLimitedChatProvider 创建限流包装器，rps 为每秒请求数。
func NewRateLimitedChatProvider(provider ChatProvider, rps float64, burst int) *RateLimitedChatProvider {
	return &RateLimitedChatProvider{
		provider: provider,
		limiter:  newLimiter(rps, burst),
	}
}

// Generate 等待令牌后调用底层供应商。
func (r *RateLimitedChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if err := wait(ctx, r.limiter); err != nil {
		return "", err
	}
	return r.provider.Generate(ctx, prompt, systemPrompt)
}

// Name 返回底层供应商名称。
func (r *RateLimitedChatProvider) Name() string { return r.provider.Name() }

func newLimiter(rps float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		// Wait 在截止时间不足时直接返回非 ctx 错误，这里统一为 DeadlineExceeded
		if ctx.Err() == nil {
			if _, ok := ctx.Deadline(); ok {
				return fmt.Errorf("限流等待超出截止时间: %w", context.DeadlineExceeded)
			}
		}
		return fmt.Errorf("限流等待失败: %w", err)
	}
	return nil
}
