// Package docqa provides the document QA service server implementation.
package docqa

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/infra/app"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/infra/server"
	"github.com/kart-io/docqa/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/gemini"
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	_ "github.com/kart-io/docqa/pkg/llm/openai"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	pipelineopts "github.com/kart-io/docqa/pkg/options/pipeline"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
	textcacheopts "github.com/kart-io/docqa/pkg/options/textcache"
	watchopts "github.com/kart-io/docqa/pkg/options/watch"
)

// Name is the name of the application.
const Name = "docqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *pipelineopts.Options
	TextCacheOptions *textcacheopts.Options
	PoolOptions      *poolopts.Options
	WatchOptions     *watchopts.Options
	ShutdownTimeout  time.Duration
}

// Server represents the document QA server.
type Server struct {
	srv          *server.Manager
	orchestrator *biz.Orchestrator
	closers      []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting docqa service...")

	s := &Server{}

	// 2. 初始化文档目录
	docs, err := store.NewDocumentStore(cfg.PipelineOptions.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}
	logger.Infow("Document store initialized", "dir", docs.Dir())

	// 3. 初始化文本缓存
	textCache, err := s.newTextCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 4. 初始化 LLM 供应商
	embedder, chat, err := newProviders(cfg.EmbeddingOptions, cfg.ChatOptions)
	if err != nil {
		return nil, err
	}

	// 5. 初始化抽取工作池
	extractPool, err := pool.NewPool("extract", &pool.Config{
		Capacity:         cfg.PipelineOptions.ExtractWorkers,
		ExpiryDuration:   cfg.PoolOptions.ExpiryDuration,
		PreAlloc:         cfg.PoolOptions.PreAlloc,
		MaxBlockingTasks: cfg.PoolOptions.MaxBlockingTasks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	releaseTimeout := cfg.PoolOptions.ReleaseTimeout
	s.closers = append(s.closers, func() { _ = extractPool.Release(releaseTimeout) })

	// 6. 初始化 Biz 层
	p := cfg.PipelineOptions
	chunker, err := biz.NewRecursiveChunker(p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}
	orchestrator, err := biz.NewOrchestrator(biz.OrchestratorOptions{
		Documents: docs,
		Cache:     textCache,
		Extractor: biz.PDFExtractor{},
		Chunker:   chunker,
		Indexer: biz.NewIndexBuilder(embedder, biz.IndexBuilderConfig{
			BatchSize: p.EmbedBatchSize,
			Timeout:   p.EmbedTimeout,
		}),
		Workflow: biz.NewWorkflow(embedder, chat, biz.WorkflowConfig{
			TopK:            p.TopK,
			SummarizePrompt: p.SummarizePrompt,
			AnswerPrompt:    p.AnswerPrompt,
			RewritePrompt:   p.RewritePrompt,
			QueryRewrite:    p.QueryRewrite,
			EmbedTimeout:    p.EmbedTimeout,
			LLMTimeout:      p.LLMTimeout,
		}),
		Pool:           extractPool,
		Metrics:        metrics.Default(),
		ExtractTimeout: p.ExtractTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	s.orchestrator = orchestrator
	logger.Infow("Pipeline initialized",
		"chunk_size", p.ChunkSize,
		"chunk_overlap", p.ChunkOverlap,
		"top_k", p.TopK,
		"query_rewrite", p.QueryRewrite,
		"extract_workers", p.ExtractWorkers,
	)

	// 7. 初始化服务器并注册路由
	s.srv = server.NewManager(
		server.WithHTTPOptions(cfg.HTTPOptions),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	docqaHandler := handler.NewDocQAHandler(orchestrator, metrics.Default(), cfg.HTTPOptions.MaxUploadSize)
	router.Register(s.srv.HTTPServer().Engine(), docqaHandler)

	// 8. 目录监听
	if cfg.WatchOptions.Enabled {
		s.srv.AddServer(NewWatcher(docs.Dir(), cfg.WatchOptions.Debounce, orchestrator))
	}

	logger.Info("docqa service is ready")
	return s, nil
}

// newTextCache 创建文本缓存。Redis 不可用时回退到本地文件缓存。
func (s *Server) newTextCache(ctx context.Context, cfg *Config) (biz.TextCache, error) {
	opts := cfg.TextCacheOptions
	if opts.Backend == textcacheopts.BackendRedis {
		client := opts.Redis.NewClient()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, falling back to file text cache",
				"addr", opts.Redis.Addr(),
				"error", err.Error(),
			)
			_ = client.Close()
		} else {
			s.closers = append(s.closers, closeRedis(client))
			logger.Infow("Redis text cache initialized", "addr", opts.Redis.Addr(), "prefix", opts.KeyPrefix)
			return biz.NewRedisTextCache(client, opts.KeyPrefix), nil
		}
	}

	cache, err := biz.NewFileTextCache(cfg.PipelineOptions.CacheDir, opts.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize text cache: %w", err)
	}
	logger.Infow("File text cache initialized", "dir", cfg.PipelineOptions.CacheDir, "memo_size", opts.MemoSize)
	return cache, nil
}

func closeRedis(client *goredis.Client) func() {
	return func() { _ = client.Close() }
}

// newProviders 创建 Embedding 与 Chat 供应商，并按配置叠加限流与缓存。
func newProviders(embedOpts, chatOpts *llmopts.ProviderOptions) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	embedder, err := llm.NewEmbeddingProvider(embedOpts.Provider, embedOpts.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if embedOpts.RateLimit > 0 {
		embedder = llm.NewRateLimitedEmbeddingProvider(embedder, embedOpts.RateLimit, embedOpts.Burst)
	}
	if embedOpts.CacheSize > 0 {
		cached, err := llm.NewCachedEmbeddingProvider(embedder, embedOpts.CacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		embedder = cached
	}
	logger.Infow("Embedding provider initialized",
		"provider", embedOpts.Provider,
		"model", embedOpts.Model,
		"rate_limit", embedOpts.RateLimit,
		"cache_size", embedOpts.CacheSize,
	)

	chat, err := llm.NewChatProvider(chatOpts.Provider, chatOpts.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	if chatOpts.RateLimit > 0 {
		chat = llm.NewRateLimitedChatProvider(chat, chatOpts.RateLimit, chatOpts.Burst)
	}
	logger.Infow("Chat provider initialized",
		"provider", chatOpts.Provider,
		"model", chatOpts.Model,
		"rate_limit", chatOpts.RateLimit,
	)
	return embedder, chat, nil
}

// Run builds the initial index, then serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	}()

	s.orchestrator.Init(ctx)
	return s.srv.Run(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Data dir: %s\n", cfg.PipelineOptions.DataDir)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Text cache: %s\n", cfg.TextCacheOptions.Backend)
}
