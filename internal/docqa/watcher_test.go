package docqa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/docqa/biz"
)

type countingRebuilder struct {
	calls atomic.Int32
	err   error
}

func (r *countingRebuilder) Rebuild(context.Context) (*biz.RebuildReport, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &biz.RebuildReport{Snapshot: &biz.Snapshot{Version: "v"}}, nil
}

func startWatcher(t *testing.T, dir string, r Rebuilder) *Watcher {
	t.Helper()
	w := NewWatcher(dir, 50*time.Millisecond, r)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
	return w
}

func TestWatcher_RebuildsOnPDFChanges(t *testing.T) {
	dir := t.TempDir()
	r := &countingRebuilder{}
	startWatcher(t, dir, r)

	// 连续写入在静默期内合并为一次重建
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4"), 0o644))
	}
	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())

	require.NoError(t, os.Remove(filepath.Join(dir, "a.pdf")))
	require.Eventually(t, func() bool { return r.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := &countingRebuilder{}
	startWatcher(t, dir, r)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.pdf.123.tmp"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, r.calls.Load())
}

func TestWatcher_RebuildFailureKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	r := &countingRebuilder{err: errors.New("embedding down")}
	startWatcher(t, dir, r)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4"), 0o644))
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("%PDF-1.4"), 0o644))
	require.Eventually(t, func() bool { return r.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 0, &countingRebuilder{})
	assert.Equal(t, "document-watcher", w.Name())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))

	missing := NewWatcher(filepath.Join(dir, "missing"), time.Second, &countingRebuilder{})
	assert.Error(t, missing.Start(context.Background()))
}
