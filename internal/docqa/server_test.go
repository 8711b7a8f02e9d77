package docqa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	pipelineopts "github.com/kart-io/docqa/pkg/options/pipeline"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
	textcacheopts "github.com/kart-io/docqa/pkg/options/textcache"
	watchopts "github.com/kart-io/docqa/pkg/options/watch"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	pipeline := pipelineopts.NewOptions()
	pipeline.DataDir = filepath.Join(dir, "uploads")
	require.NoError(t, pipeline.Complete())

	httpOpts := httpopts.NewOptions()
	httpOpts.Addr = "127.0.0.1:0"

	return &Config{
		HTTPOptions:      httpOpts,
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		PipelineOptions:  pipeline,
		TextCacheOptions: textcacheopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
		WatchOptions:     watchopts.NewOptions(),
		ShutdownTimeout:  time.Second,
	}
}

func TestNewServer_WiresRoutes(t *testing.T) {
	cfg := testConfig(t)
	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, c := range s.closers {
			c()
		}
	})

	assert.DirExists(t, cfg.PipelineOptions.DataDir)
	assert.DirExists(t, cfg.PipelineOptions.CacheDir)

	engine := s.srv.HTTPServer().Engine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":false`)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"what?"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewServer_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChatOptions.Provider = "nope"

	_, err := cfg.NewServer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat provider")
}

func TestNewServer_RedisFallsBackToFileCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.TextCacheOptions.Backend = textcacheopts.BackendRedis
	cfg.TextCacheOptions.Redis.Port = 1
	cfg.TextCacheOptions.Redis.DialTimeout = 200 * time.Millisecond

	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, c := range s.closers {
			c()
		}
	})

	_, err = os.Stat(cfg.PipelineOptions.CacheDir)
	assert.NoError(t, err, "file cache directory is created on fallback")
}

func TestNewServer_WatcherRegistered(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchOptions.Enabled = true
	cfg.WatchOptions.Debounce = 50 * time.Millisecond

	s, err := cfg.NewServer(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.srv.HTTPServer().Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
