// Package textcache provides extracted-text cache options.
package textcache

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

const (
	// BackendFile 本地文件后端。
	BackendFile = "file"
	// BackendRedis Redis 后端。
	BackendRedis = "redis"
)

// Options 文本缓存配置。
type Options struct {
	// Backend 缓存后端（file, redis）。
	Backend string `json:"backend" mapstructure:"backend"`

	// MemoSize 进程内 LRU 容量。
	MemoSize int `json:"memo-size" mapstructure:"memo-size"`

	// KeyPrefix Redis 键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis 连接配置，仅在 backend=redis 时使用。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认文本缓存配置。
func NewOptions() *Options {
	return &Options{
		Backend:   BackendFile,
		MemoSize:  10,
		KeyPrefix: "docqa:text:",
		Redis:     redisopts.NewOptions(),
	}
}

// AddFlags adds flags for text cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "text-cache."
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Extracted text cache backend (file, redis).")
	fs.IntVar(&o.MemoSize, p+"memo-size", o.MemoSize, "In-process LRU capacity in front of the cache backend.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Key prefix for the redis backend.")
	o.Redis.AddFlags(fs, append(prefixes, "text-cache")...)
}

// Validate validates the text cache options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Backend {
	case BackendFile:
	case BackendRedis:
		errs = append(errs, o.Redis.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("text-cache.backend must be %q or %q, got %q", BackendFile, BackendRedis, o.Backend))
	}
	if o.MemoSize < 0 {
		errs = append(errs, fmt.Errorf("text-cache.memo-size must not be negative"))
	}
	return errs
}

// Complete completes the text cache options.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
