package biz

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	docerrors "github.com/kart-io/docqa/pkg/errors"
)

const embedDim = 64

// embedText 词袋哈希向量，相同文本得到相同向量，词重叠越多越相似。
func embedText(text string) []float32 {
	v := make([]float32, embedDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%embedDim]++
	}
	// 空文本也要有非零向量
	v[embedDim-1] += 0.01
	return v
}

type fakeEmbedder struct {
	calls       atomic.Int32
	singleCalls atomic.Int32
	embedded    atomic.Int32

	// failAfter > 0 时，第 failAfter 次之后的 Embed 调用失败
	failAfter int32
	fail     atomic.Bool
	delay    time.Duration
	dropLast bool
}

func newFakeEmbedder() *fakeEmbedder { return &fakeEmbedder{} }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() || (f.failAfter > 0 && n > f.failAfter) {
		return nil, errors.New("embedding service unavailable")
	}
	f.embedded.Add(int32(len(texts)))

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, embedText(t))
	}
	if f.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.singleCalls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("embedding service unavailable")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return embedText(text), nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

type fakeChat struct {
	mu      sync.Mutex
	prompts []string

	err   error
	delay time.Duration
	// reply 为空时回显 "reply:" 加提示词
	reply func(prompt string) string
}

func (f *fakeChat) Generate(ctx context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.reply != nil {
		return f.reply(prompt), nil
	}
	return "  reply:" + prompt + "\n", nil
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// fakePDF 构造测试用文档：%PDF- 头加正文。
func fakePDF(body string) []byte {
	return []byte("%PDF-1.4\n" + body)
}

// countingExtractor 把 fakePDF 的正文当作提取结果；正文以 BROKEN 开头时提取失败。
// 正文以 STALL 开头时忽略 ctx，阻塞 stall 后才返回。
type countingExtractor struct {
	calls    atomic.Int32
	finished atomic.Int32
	delay    time.Duration
	stall    time.Duration
}

func (e *countingExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	e.calls.Add(1)
	defer e.finished.Add(1)
	if e.stall > 0 && bytes.HasPrefix(data, []byte("%PDF-1.4\nSTALL")) {
		time.Sleep(e.stall)
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", docerrors.ErrExtractionFailed.WithCause(ctx.Err())
		}
	}
	body := strings.TrimSpace(string(bytes.TrimPrefix(data, []byte("%PDF-1.4\n"))))
	if body == "" || strings.HasPrefix(body, "BROKEN") {
		return "", docerrors.ErrExtractionFailed.WithMessage("no extractable text")
	}
	return body, nil
}

// failingStoreCache 查询总是未命中，写入总是失败。
type failingStoreCache struct {
	stores atomic.Int32
}

func (c *failingStoreCache) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (c *failingStoreCache) Store(context.Context, string, string) error {
	c.stores.Add(1)
	return errors.New("disk full")
}
