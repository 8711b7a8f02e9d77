package docqa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/store"
)

// Rebuilder rebuilds the index over the whole document directory.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*biz.RebuildReport, error)
}

// Watcher 监听数据目录，PDF 新增、修改或删除后在静默期结束时重建索引。
// 实现 server.Runnable，由服务管理器统一启停。
type Watcher struct {
	dir       string
	debounce  time.Duration
	rebuilder Rebuilder

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, debounce time.Duration, rebuilder Rebuilder) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{dir: dir, debounce: debounce, rebuilder: rebuilder}
}

// Name returns the runnable name.
func (w *Watcher) Name() string { return "document-watcher" }

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return errors.New("watcher already started")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	// 不继承调用方的取消，由 Stop 控制退出
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(loopCtx, fw, w.done)

	logger.Infow("watching document directory", "dir", w.dir, "debounce", w.debounce.String())
	return nil
}

// Stop stops watching and waits for an in-flight rebuild to return.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	fw, cancel, done := w.watcher, w.cancel, w.done
	w.watcher = nil
	w.mu.Unlock()
	if fw == nil {
		return nil
	}

	cancel()
	err := fw.Close()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			logger.Debugw("document directory changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warnw("document watcher error", "dir", w.dir, "error", err.Error())
		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context) {
	report, err := w.rebuilder.Rebuild(ctx)
	if err != nil {
		logger.Warnw("rebuild after directory change failed", "dir", w.dir, "error", err.Error())
		return
	}
	logger.Infow("index rebuilt after directory change",
		"documents", len(report.Snapshot.Documents),
		"chunks", report.Snapshot.Chunks,
		"version", report.Snapshot.Version,
		"warnings", len(report.Warnings),
	)
}

// relevant 只关心 PDF 文件的增删改，忽略临时文件与 chmod。
func relevant(event fsnotify.Event) bool {
	if !store.IsPDFName(filepath.Base(event.Name)) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
