package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type sampleOptions struct {
	Pipeline struct {
		ChunkSize int           `mapstructure:"chunk-size"`
		Timeout   time.Duration `mapstructure:"timeout"`
		DataDir   string        `mapstructure:"data-dir"`
	} `mapstructure:"pipeline"`

	completed bool
}

func newSampleOptions() *sampleOptions {
	o := &sampleOptions{}
	o.Pipeline.ChunkSize = 500
	o.Pipeline.Timeout = time.Second
	o.Pipeline.DataDir = "uploads"
	return o
}

func (o *sampleOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("pipeline")
	fs.IntVar(&o.Pipeline.ChunkSize, "pipeline.chunk-size", o.Pipeline.ChunkSize, "")
	fs.DurationVar(&o.Pipeline.Timeout, "pipeline.timeout", o.Pipeline.Timeout, "")
	fs.StringVar(&o.Pipeline.DataDir, "pipeline.data-dir", o.Pipeline.DataDir, "")
	return fss
}

func (o *sampleOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *sampleOptions) Validate() error {
	if o.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runSample(t *testing.T, opts *sampleOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp(
		WithName("sample"),
		WithNoVersion(),
		WithOptions(opts),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	a.SetArgs(args)
	a.SetOutput(&bytes.Buffer{})
	err := a.Execute()
	if err == nil {
		assert.True(t, ran)
	}
	return err
}

func TestApp_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := newSampleOptions()
	require.NoError(t, runSample(t, opts))
	assert.Equal(t, 500, opts.Pipeline.ChunkSize)
	assert.True(t, opts.completed)
}

func TestApp_ConfigFileThenFlags(t *testing.T) {
	cfg := writeConfig(t, "pipeline:\n  chunk-size: 800\n  timeout: 3s\n  data-dir: /srv/docs\n")

	opts := newSampleOptions()
	require.NoError(t, runSample(t, opts, "-c", cfg, "--pipeline.chunk-size=900"))

	// 显式 flag 覆盖配置文件
	assert.Equal(t, 900, opts.Pipeline.ChunkSize)
	assert.Equal(t, 3*time.Second, opts.Pipeline.Timeout)
	assert.Equal(t, "/srv/docs", opts.Pipeline.DataDir)
}

func TestApp_EnvOverridesFile(t *testing.T) {
	cfg := writeConfig(t, "pipeline:\n  chunk-size: 800\n")
	t.Setenv("SAMPLE_PIPELINE_CHUNK_SIZE", "1200")

	opts := newSampleOptions()
	require.NoError(t, runSample(t, opts, "-c", cfg))
	assert.Equal(t, 1200, opts.Pipeline.ChunkSize)
}

func TestApp_ExpandsEnvVarsInConfig(t *testing.T) {
	t.Setenv("DOCS_ROOT", "/data/pdf")
	cfg := writeConfig(t, "pipeline:\n  data-dir: ${DOCS_ROOT}/uploads\n")

	opts := newSampleOptions()
	require.NoError(t, runSample(t, opts, "-c", cfg))
	assert.Equal(t, "/data/pdf/uploads", opts.Pipeline.DataDir)
}

func TestApp_ValidationError(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := newSampleOptions()
	err := runSample(t, opts, "--pipeline.chunk-size=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk-size")
}

func TestApp_MissingConfigFile(t *testing.T) {
	opts := newSampleOptions()
	err := runSample(t, opts, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	a := NewApp(WithName("x"), WithNoVersion())
	a.v.Set("k", "$NOT_SET_ANYWHERE_123")
	expandEnvVars(a.v)
	assert.Equal(t, "$NOT_SET_ANYWHERE_123", a.v.GetString("k"))
}
