// Package pipeline provides document ingestion and query pipeline options.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSummarizePrompt 摘要阶段的提示模板。
	DefaultSummarizePrompt = "Summarize concisely: {{context}}"

	// DefaultAnswerPrompt 生成阶段的提示模板。
	DefaultAnswerPrompt = "Question: {{question}}\nContext: {{context}}\nAnswer:"

	// DefaultRewritePrompt 查询改写提示模板，仅在开启 query-rewrite 时使用。
	DefaultRewritePrompt = "Rewrite the following question so it is self-contained and suited for document search. Reply with the rewritten question only.\nQuestion: {{question}}"
)

// Options contains pipeline configuration.
type Options struct {
	// DataDir 上传文档存放目录。
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// CacheDir 文本缓存目录，为空时使用 <data-dir>/cache。
	CacheDir string `json:"cache-dir" mapstructure:"cache-dir"`

	// ChunkSize 分块大小（字符数）。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap 相邻分块重叠字符数。
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK 检索返回的分块数。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// EmbedBatchSize 单次 Embedding 请求的文本数。
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// ExtractWorkers 文本抽取并发数。
	ExtractWorkers int `json:"extract-workers" mapstructure:"extract-workers"`

	// ExtractTimeout 单个文档抽取超时。
	ExtractTimeout time.Duration `json:"extract-timeout" mapstructure:"extract-timeout"`

	// EmbedTimeout 单次 Embedding 调用超时。
	EmbedTimeout time.Duration `json:"embed-timeout" mapstructure:"embed-timeout"`

	// LLMTimeout 单次生成调用超时。
	LLMTimeout time.Duration `json:"llm-timeout" mapstructure:"llm-timeout"`

	// QueryRewrite 是否用 LLM 改写问题。
	QueryRewrite bool `json:"query-rewrite" mapstructure:"query-rewrite"`

	SummarizePrompt string `json:"summarize-prompt" mapstructure:"summarize-prompt"`
	AnswerPrompt    string `json:"answer-prompt" mapstructure:"answer-prompt"`
	RewritePrompt   string `json:"rewrite-prompt" mapstructure:"rewrite-prompt"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		DataDir:         "uploads",
		ChunkSize:       500,
		ChunkOverlap:    100,
		TopK:            3,
		EmbedBatchSize:  64,
		ExtractWorkers:  4,
		ExtractTimeout:  2 * time.Minute,
		EmbedTimeout:    60 * time.Second,
		LLMTimeout:      60 * time.Second,
		SummarizePrompt: DefaultSummarizePrompt,
		AnswerPrompt:    DefaultAnswerPrompt,
		RewritePrompt:   DefaultRewritePrompt,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.DataDir, p+"pipeline.data-dir", o.DataDir, "Directory holding uploaded documents.")
	fs.StringVar(&o.CacheDir, p+"pipeline.cache-dir", o.CacheDir, "Directory holding extracted text records (default <data-dir>/cache).")
	fs.IntVar(&o.ChunkSize, p+"pipeline.chunk-size", o.ChunkSize, "Maximum chunk length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"pipeline.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in characters.")
	fs.IntVar(&o.TopK, p+"pipeline.top-k", o.TopK, "Number of chunks retrieved per question.")
	fs.IntVar(&o.EmbedBatchSize, p+"pipeline.embed-batch-size", o.EmbedBatchSize, "Texts per embedding request.")
	fs.IntVar(&o.ExtractWorkers, p+"pipeline.extract-workers", o.ExtractWorkers, "Concurrent text extractions.")
	fs.DurationVar(&o.ExtractTimeout, p+"pipeline.extract-timeout", o.ExtractTimeout, "Timeout for extracting one document.")
	fs.DurationVar(&o.EmbedTimeout, p+"pipeline.embed-timeout", o.EmbedTimeout, "Timeout for one embedding call.")
	fs.DurationVar(&o.LLMTimeout, p+"pipeline.llm-timeout", o.LLMTimeout, "Timeout for one generation call.")
	fs.BoolVar(&o.QueryRewrite, p+"pipeline.query-rewrite", o.QueryRewrite, "Rewrite questions with the chat model before retrieval.")
	fs.StringVar(&o.SummarizePrompt, p+"pipeline.summarize-prompt", o.SummarizePrompt, "Summarize prompt template ({{context}}).")
	fs.StringVar(&o.AnswerPrompt, p+"pipeline.answer-prompt", o.AnswerPrompt, "Answer prompt template ({{question}}, {{context}}).")
	fs.StringVar(&o.RewritePrompt, p+"pipeline.rewrite-prompt", o.RewritePrompt, "Query rewrite prompt template ({{question}}).")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("pipeline.data-dir is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("pipeline.chunk-overlap must be in [0, chunk-size), got %d", o.ChunkOverlap))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.top-k must be positive"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.embed-batch-size must be positive"))
	}
	if o.ExtractWorkers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.extract-workers must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"extract-timeout": o.ExtractTimeout,
		"embed-timeout":   o.EmbedTimeout,
		"llm-timeout":     o.LLMTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("pipeline.%s must be positive", name))
		}
	}
	if !strings.Contains(o.SummarizePrompt, "{{context}}") {
		errs = append(errs, fmt.Errorf("pipeline.summarize-prompt must contain {{context}}"))
	}
	if !strings.Contains(o.AnswerPrompt, "{{question}}") || !strings.Contains(o.AnswerPrompt, "{{context}}") {
		errs = append(errs, fmt.Errorf("pipeline.answer-prompt must contain {{question}} and {{context}}"))
	}
	return errs
}

// Complete completes the pipeline options with defaults.
func (o *Options) Complete() error {
	if o.CacheDir == "" {
		o.CacheDir = filepath.Join(o.DataDir, "cache")
	}
	if o.RewritePrompt == "" {
		o.RewritePrompt = DefaultRewritePrompt
	}
	return nil
}
