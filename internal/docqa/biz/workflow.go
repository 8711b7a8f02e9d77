package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/store"
	docerrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/options/pipeline"
)

const (
	// NoContextSummary 没有检索结果时的摘要。
	NoContextSummary = "No context available."
	// NoContextAnswer 没有检索结果时的回答。
	NoContextAnswer = "No relevant context is available to answer this question."
)

// WorkflowConfig 查询流程配置。
type WorkflowConfig struct {
	TopK            int
	SummarizePrompt string
	AnswerPrompt    string
	RewritePrompt   string
	// QueryRewrite 开启后 expand 阶段调用 LLM 改写问题。
	QueryRewrite bool
	EmbedTimeout time.Duration
	LLMTimeout   time.Duration
}

// DefaultWorkflowConfig 返回默认配置。
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		TopK:            3,
		SummarizePrompt: pipeline.DefaultSummarizePrompt,
		AnswerPrompt:    pipeline.DefaultAnswerPrompt,
		RewritePrompt:   pipeline.DefaultRewritePrompt,
		EmbedTimeout:    60 * time.Second,
		LLMTimeout:      60 * time.Second,
	}
}

// WorkflowState 单次问答在各阶段间传递的状态。
type WorkflowState struct {
	Question         string
	ExpandedQuery    string
	Retrieved        []store.SearchResult
	RetrievedContext string
	Summary          string
	Answer           string
}

// StageEnv 阶段运行所需的依赖，对一次 Run 不变。
type StageEnv struct {
	Embedder llm.EmbeddingProvider
	Chat     llm.ChatProvider
	Index    store.VectorIndex
	Config   WorkflowConfig
}

// Stage 是流程中的一个命名步骤。
type Stage struct {
	Name string
	Run  func(ctx context.Context, env *StageEnv, state *WorkflowState) error
}

// Workflow 按固定顺序执行 expand -> search -> summarize -> generate。
type Workflow struct {
	stages   []Stage
	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	config   WorkflowConfig
}

// NewWorkflow 创建查询流程。
func NewWorkflow(embedder llm.EmbeddingProvider, chat llm.ChatProvider, config WorkflowConfig) *Workflow {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.SummarizePrompt == "" {
		config.SummarizePrompt = pipeline.DefaultSummarizePrompt
	}
	if config.AnswerPrompt == "" {
		config.AnswerPrompt = pipeline.DefaultAnswerPrompt
	}
	if config.RewritePrompt == "" {
		config.RewritePrompt = pipeline.DefaultRewritePrompt
	}

	expand := Stage{Name: "expand", Run: expandIdentity}
	if config.QueryRewrite {
		expand = Stage{Name: "expand", Run: expandRewrite}
	}

	return &Workflow{
		stages: []Stage{
			expand,
			{Name: "search", Run: searchStage},
			{Name: "summarize", Run: summarizeStage},
			{Name: "generate", Run: generateStage},
		},
		embedder: embedder,
		chat:     chat,
		config:   config,
	}
}

// StageNames 返回阶段名，按执行顺序。
func (w *Workflow) StageNames() []string {
	names := make([]string, len(w.stages))
	for i, s := range w.stages {
		names[i] = s.Name
	}
	return names
}

// Run 对 index 执行一次问答。任一阶段失败时返回错误且不返回部分结果。
func (w *Workflow) Run(ctx context.Context, index store.VectorIndex, question string) (*WorkflowState, error) {
	env := &StageEnv{
		Embedder: w.embedder,
		Chat:     w.chat,
		Index:    index,
		Config:   w.config,
	}
	state := &WorkflowState{Question: question}

	total := time.Now()
	for _, stage := range w.stages {
		start := time.Now()
		if err := stage.Run(ctx, env, state); err != nil {
			logger.Warnw("workflow stage failed",
				"stage", stage.Name,
				"elapsed", time.Since(start).String(),
				"error", err.Error(),
			)
			return nil, err
		}
		logger.Debugw("workflow stage done",
			"stage", stage.Name,
			"elapsed", time.Since(start).String(),
		)
	}
	logger.Debugw("workflow finished",
		"retrieved", len(state.Retrieved),
		"elapsed", time.Since(total).String(),
	)
	return state, nil
}

func expandIdentity(_ context.Context, _ *StageEnv, state *WorkflowState) error {
	state.ExpandedQuery = state.Question
	return nil
}

// expandRewrite 用 LLM 改写问题，空回复时退回原问题。
func expandRewrite(ctx context.Context, env *StageEnv, state *WorkflowState) error {
	prompt := render(env.Config.RewritePrompt, state.Question, "")
	reply, err := env.generate(ctx, prompt)
	if err != nil {
		return err
	}
	state.ExpandedQuery = reply
	if state.ExpandedQuery == "" {
		state.ExpandedQuery = state.Question
	}
	return nil
}

func searchStage(ctx context.Context, env *StageEnv, state *WorkflowState) error {
	state.Retrieved = nil
	if env.Index == nil || env.Index.Len() == 0 {
		return nil
	}

	embedCtx, cancel := withTimeout(ctx, env.Config.EmbedTimeout)
	defer cancel()
	vector, err := env.Embedder.EmbedSingle(embedCtx, state.ExpandedQuery)
	if err != nil {
		return externalError(err)
	}
	// 嵌入模型与建索引时不一致
	if len(vector) != env.Index.Dim() {
		return docerrors.ErrExternalService.WithMessagef(
			"query embedding has dimension %d, index expects %d", len(vector), env.Index.Dim())
	}

	state.Retrieved = env.Index.Search(vector, env.Config.TopK)
	return nil
}

func summarizeStage(ctx context.Context, env *StageEnv, state *WorkflowState) error {
	if len(state.Retrieved) == 0 {
		state.Summary = NoContextSummary
		return nil
	}

	prompt := render(env.Config.SummarizePrompt, state.Question, joinTexts(state.Retrieved, "\n"))
	summary, err := env.generate(ctx, prompt)
	if err != nil {
		return err
	}
	state.Summary = summary
	return nil
}

// generateStage 以原始检索文本作为上下文，不使用摘要。
func generateStage(ctx context.Context, env *StageEnv, state *WorkflowState) error {
	if len(state.Retrieved) == 0 {
		state.RetrievedContext = ""
		state.Answer = NoContextAnswer
		return nil
	}

	state.RetrievedContext = joinTexts(state.Retrieved, " ")
	prompt := render(env.Config.AnswerPrompt, state.Question, state.RetrievedContext)
	answer, err := env.generate(ctx, prompt)
	if err != nil {
		return err
	}
	state.Answer = answer
	return nil
}

func (env *StageEnv) generate(ctx context.Context, prompt string) (string, error) {
	llmCtx, cancel := withTimeout(ctx, env.Config.LLMTimeout)
	defer cancel()

	reply, err := env.Chat.Generate(llmCtx, prompt, "")
	if err != nil {
		return "", externalError(err)
	}
	return strings.TrimSpace(reply), nil
}

// render 单次替换占位符，问题或文档中的 {{...}} 不会被再次展开。
func render(template, question, contextText string) string {
	return strings.NewReplacer("{{question}}", question, "{{context}}", contextText).Replace(template)
}

func joinTexts(results []store.SearchResult, sep string) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, sep)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
