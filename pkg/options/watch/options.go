// Package watch provides data directory watcher options.
package watch

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 文档目录监听配置。
type Options struct {
	// Enabled 是否监听数据目录，目录中的 PDF 变化后自动重建索引。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Debounce 最后一次变化后等待多久再重建。
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
}

// NewOptions 创建默认监听配置（默认关闭）。
func NewOptions() *Options {
	return &Options{
		Debounce: 2 * time.Second,
	}
}

// AddFlags adds flags for watch options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"watch.enabled", o.Enabled, "Rebuild the index when PDFs change in the data directory.")
	fs.DurationVar(&o.Debounce, p+"watch.debounce", o.Debounce, "Quiet period after the last change before rebuilding.")
}

// Validate validates the watch options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	if o.Debounce <= 0 {
		return []error{fmt.Errorf("watch.debounce must be positive")}
	}
	return nil
}

// Complete completes the watch options.
func (o *Options) Complete() error { return nil }
