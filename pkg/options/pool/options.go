// Package pool provides worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 工作池配置。池容量由 pipeline.extract-workers 决定。
type Options struct {
	// ExpiryDuration 空闲 goroutine 过期时间。
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`

	// PreAlloc 是否预分配。
	PreAlloc bool `json:"pre-alloc" mapstructure:"pre-alloc"`

	// MaxBlockingTasks 最大排队任务数，0 表示不限制。
	MaxBlockingTasks int `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`

	// ReleaseTimeout 关闭时等待任务完成的时间。
	ReleaseTimeout time.Duration `json:"release-timeout" mapstructure:"release-timeout"`
}

// NewOptions 创建默认工作池配置。
func NewOptions() *Options {
	return &Options{
		ExpiryDuration: 10 * time.Second,
		ReleaseTimeout: 10 * time.Second,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.DurationVar(&o.ExpiryDuration, p+"pool.expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.PreAlloc, p+"pool.pre-alloc", o.PreAlloc, "Pre-allocate the worker queue.")
	fs.IntVar(&o.MaxBlockingTasks, p+"pool.max-blocking-tasks", o.MaxBlockingTasks, "Maximum queued tasks (0 means unlimited).")
	fs.DurationVar(&o.ReleaseTimeout, p+"pool.release-timeout", o.ReleaseTimeout, "Time to wait for running tasks on shutdown.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.ExpiryDuration <= 0 {
		errs = append(errs, fmt.Errorf("pool.expiry-duration must be positive"))
	}
	if o.MaxBlockingTasks < 0 {
		errs = append(errs, fmt.Errorf("pool.max-blocking-tasks must not be negative"))
	}
	return errs
}

// Complete completes the pool options.
func (o *Options) Complete() error { return nil }
