package options

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/infra/app"
	textcacheopts "github.com/kart-io/docqa/pkg/options/textcache"
)

func TestServerOptions_Defaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	assert.Equal(t, ":8000", o.HTTPOptions.Addr)
	assert.Equal(t, "uploads", o.PipelineOptions.DataDir)
	assert.Equal(t, filepath.Join("uploads", "cache"), o.PipelineOptions.CacheDir)
	assert.Equal(t, 500, o.PipelineOptions.ChunkSize)
	assert.Equal(t, 100, o.PipelineOptions.ChunkOverlap)
	assert.Equal(t, 3, o.PipelineOptions.TopK)
	assert.Equal(t, textcacheopts.BackendFile, o.TextCacheOptions.Backend)
	assert.False(t, o.WatchOptions.Enabled)
}

func TestServerOptions_Flags(t *testing.T) {
	fss := NewServerOptions().Flags()

	for section, flag := range map[string]string{
		"http":       "http.addr",
		"log":        "log.level",
		"embedding":  "embedding.provider",
		"chat":       "chat.model",
		"pipeline":   "pipeline.chunk-size",
		"text-cache": "text-cache.redis.host",
		"pool":       "pool.expiry-duration",
		"watch":      "watch.enabled",
		"misc":       "shutdown-timeout",
	} {
		fs, ok := fss.FlagSets[section]
		require.True(t, ok, section)
		assert.NotNil(t, fs.Lookup(flag), flag)
	}
}

func TestServerOptions_ValidateAggregates(t *testing.T) {
	o := NewServerOptions()
	o.PipelineOptions.ChunkOverlap = o.PipelineOptions.ChunkSize
	o.ChatOptions.Provider = "gemini"
	o.ShutdownTimeout = 0

	err := o.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "pipeline.chunk-overlap")
	assert.Contains(t, msg, "chat.api-key is required for gemini provider")
	assert.Contains(t, msg, "shutdown-timeout")
	assert.NotContains(t, msg, "embedding.")
}

func TestServerOptions_Config(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)

	assert.Same(t, o.HTTPOptions, cfg.HTTPOptions)
	assert.Same(t, o.PipelineOptions, cfg.PipelineOptions)
	assert.Same(t, o.TextCacheOptions, cfg.TextCacheOptions)
	assert.Same(t, o.WatchOptions, cfg.WatchOptions)
	assert.Equal(t, o.ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestServerOptions_LoadFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
pipeline:
  data-dir: /tmp/docqa-test
  top-k: 5
text-cache:
  backend: redis
  redis:
    port: 6380
watch:
  enabled: true
  debounce: 1s
shutdown-timeout: 10s
`), 0o600))

	o := NewServerOptions()
	a := app.NewApp(
		app.WithName("docqa"),
		app.WithNoVersion(),
		app.WithOptions(o),
		app.WithRunFunc(func() error { return nil }),
	)
	a.SetArgs([]string{"--config", path, "--pipeline.top-k", "7"})
	a.SetOutput(&bytes.Buffer{})
	require.NoError(t, a.Execute())

	assert.Equal(t, ":9000", o.HTTPOptions.Addr)
	assert.Equal(t, "/tmp/docqa-test", o.PipelineOptions.DataDir)
	assert.Equal(t, filepath.Join("/tmp/docqa-test", "cache"), o.PipelineOptions.CacheDir)
	assert.Equal(t, 7, o.PipelineOptions.TopK, "explicit flag wins over the config file")
	assert.Equal(t, textcacheopts.BackendRedis, o.TextCacheOptions.Backend)
	assert.Equal(t, 6380, o.TextCacheOptions.Redis.Port)
	assert.Equal(t, "127.0.0.1", o.TextCacheOptions.Redis.Host)
	assert.True(t, o.WatchOptions.Enabled)
	assert.Equal(t, time.Second, o.WatchOptions.Debounce)
	assert.Equal(t, 10*time.Second, o.ShutdownTimeout)
}
