package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 池满时 Submit 直接返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks 阻塞模式下最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(any)
}

// DefaultConfig 返回默认池配置
func DefaultConfig() *Config {
	return &Config{
		Capacity:       4,
		ExpiryDuration: 10 * time.Second,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	pool   *ants.Pool
	config *Config
	stats  statsCounter

	closeOnce sync.Once
	closed    atomic.Bool
}

type statsCounter struct {
	submitted   atomic.Int64
	completed   atomic.Int64
	rejected    atomic.Int64
	panics      atomic.Int64
	waitTotalNs atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Capacity       int   `json:"capacity"`
	Running        int   `json:"running"`
	Waiting        int   `json:"waiting"`
	SubmittedTasks int64 `json:"submitted_tasks"` // 已提交任务数
	CompletedTasks int64 `json:"completed_tasks"` // 已完成任务数
	RejectedTasks  int64 `json:"rejected_tasks"`  // 拒绝任务数
	PanicRecovered int64 `json:"panic_recovered"` // 恢复的 panic 数
	TotalWaitNs    int64 `json:"total_wait_ns"`   // 排队总耗时
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidPoolConfig, config.Capacity)
	}

	p := &Pool{name: name, config: config}

	panicHandler := config.PanicHandler
	if panicHandler == nil {
		panicHandler = func(r any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}
	}

	pool, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r any) {
			p.stats.panics.Add(1)
			panicHandler(r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"capacity", config.Capacity,
		"preAlloc", config.PreAlloc,
	)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string { return p.name }

// Cap 返回池容量
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int { return p.pool.Running() }

// Submit 提交任务到池中执行。阻塞模式下池满时等待空闲 worker。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	queued := time.Now()
	err := p.pool.Submit(func() {
		p.stats.waitTotalNs.Add(int64(time.Since(queued)))
		task()
		p.stats.completed.Add(1)
	})
	if err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// SubmitWithContext 提交带上下文的任务。
// 任务开始执行前上下文已取消时，以 ctx.Err() 调用 onCancel 而不执行 task。
func (p *Pool) SubmitWithContext(ctx context.Context, task func(), onCancel func(error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if err := ctx.Err(); err != nil {
			if onCancel != nil {
				onCancel(err)
			}
			return
		}
		task()
	})
}

// Tune 动态调整池容量
func (p *Pool) Tune(size int) {
	p.pool.Tune(size)
	logger.Infow("Worker pool tuned", "name", p.name, "new_capacity", size)
}

// Release 关闭池，最多等待 timeout 让运行中的任务结束。
func (p *Pool) Release(timeout time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if timeout > 0 {
			err = p.pool.ReleaseTimeout(timeout)
		} else {
			p.pool.Release()
		}
		logger.Infow("Worker pool released", "name", p.name)
	})
	return err
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Capacity:       p.pool.Cap(),
		Running:        p.pool.Running(),
		Waiting:        p.pool.Waiting(),
		SubmittedTasks: p.stats.submitted.Load(),
		CompletedTasks: p.stats.completed.Load(),
		RejectedTasks:  p.stats.rejected.Load(),
		PanicRecovered: p.stats.panics.Load(),
		TotalWaitNs:    p.stats.waitTotalNs.Load(),
	}
}
