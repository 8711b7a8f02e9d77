// Package metrics 提供文档问答服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 文档问答业务指标。
type Metrics struct {
	// 上传指标
	uploadsTotal    atomic.Uint64
	uploadsRejected atomic.Uint64 // 输入校验失败
	uploadsFailed   atomic.Uint64 // 重建失败

	// 问答指标
	questionsTotal  atomic.Uint64
	questionsErrors atomic.Uint64
	questionsNoCtx  atomic.Uint64 // 检索结果为空

	// 提取指标
	extractionsTotal  atomic.Uint64
	extractionsFailed atomic.Uint64
	textCacheHits     atomic.Uint64
	textCacheMisses   atomic.Uint64
	textCacheErrors   atomic.Uint64 // 读写失败，均为非致命

	// 索引指标
	rebuildsTotal  atomic.Uint64
	rebuildsFailed atomic.Uint64
	chunksIndexed  atomic.Uint64 // 最近一次成功重建的分块数
	docsIndexed    atomic.Uint64 // 最近一次成功重建的文档数

	durationMu       sync.Mutex
	rebuildDuration  float64 // 秒
	questionDuration float64 // 秒

	startTime time.Time
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default 返回全局指标实例。
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New 创建独立的指标实例。
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordUpload 记录上传。rejected 表示输入不合法。
func (m *Metrics) RecordUpload(rejected bool, err error) {
	m.uploadsTotal.Add(1)
	switch {
	case rejected:
		m.uploadsRejected.Add(1)
	case err != nil:
		m.uploadsFailed.Add(1)
	}
}

// RecordQuestion 记录一次问答。
func (m *Metrics) RecordQuestion(d time.Duration, retrieved int, err error) {
	m.questionsTotal.Add(1)
	if err != nil {
		m.questionsErrors.Add(1)
		return
	}
	if retrieved == 0 {
		m.questionsNoCtx.Add(1)
	}
	m.durationMu.Lock()
	m.questionDuration += d.Seconds()
	m.durationMu.Unlock()
}

// RecordExtraction 记录一次文本提取。
func (m *Metrics) RecordExtraction(err error) {
	m.extractionsTotal.Add(1)
	if err != nil {
		m.extractionsFailed.Add(1)
	}
}

// RecordTextCache 记录文本缓存查询结果。
func (m *Metrics) RecordTextCache(hit bool) {
	if hit {
		m.textCacheHits.Add(1)
	} else {
		m.textCacheMisses.Add(1)
	}
}

// RecordTextCacheError 记录文本缓存读写失败。
func (m *Metrics) RecordTextCacheError() {
	m.textCacheErrors.Add(1)
}

// RecordRebuild 记录一次索引重建。
func (m *Metrics) RecordRebuild(d time.Duration, documents, chunks int, err error) {
	m.rebuildsTotal.Add(1)
	if err != nil {
		m.rebuildsFailed.Add(1)
		return
	}
	m.docsIndexed.Store(uint64(documents))
	m.chunksIndexed.Store(uint64(chunks))
	m.durationMu.Lock()
	m.rebuildDuration += d.Seconds()
	m.durationMu.Unlock()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]any {
	m.durationMu.Lock()
	rebuildDuration := m.rebuildDuration
	questionDuration := m.questionDuration
	m.durationMu.Unlock()

	hits := m.textCacheHits.Load()
	misses := m.textCacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	rebuilds := m.rebuildsTotal.Load()
	okRebuilds := rebuilds - m.rebuildsFailed.Load()
	avgRebuild := 0.0
	if okRebuilds > 0 {
		avgRebuild = rebuildDuration / float64(okRebuilds)
	}

	questions := m.questionsTotal.Load()
	okQuestions := questions - m.questionsErrors.Load()
	avgQuestion := 0.0
	if okQuestions > 0 {
		avgQuestion = questionDuration / float64(okQuestions)
	}

	return map[string]any{
		"uploads": map[string]any{
			"total":    m.uploadsTotal.Load(),
			"rejected": m.uploadsRejected.Load(),
			"failed":   m.uploadsFailed.Load(),
		},
		"questions": map[string]any{
			"total":             questions,
			"errors":            m.questionsErrors.Load(),
			"no_context":        m.questionsNoCtx.Load(),
			"avg_duration_secs": avgQuestion,
		},
		"extraction": map[string]any{
			"total":          m.extractionsTotal.Load(),
			"failed":         m.extractionsFailed.Load(),
			"cache_hits":     hits,
			"cache_misses":   misses,
			"cache_hit_rate": hitRate,
			"cache_errors":   m.textCacheErrors.Load(),
		},
		"indexing": map[string]any{
			"rebuilds":          rebuilds,
			"failed":            m.rebuildsFailed.Load(),
			"documents":         m.docsIndexed.Load(),
			"chunks":            m.chunksIndexed.Load(),
			"avg_duration_secs": avgRebuild,
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *Metrics) Export(namespace string) string {
	var sb strings.Builder
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s counter\n", namespace, name)
		fmt.Fprintf(&sb, "%s_%s %d\n\n", namespace, name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", namespace, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s gauge\n", namespace, name)
		fmt.Fprintf(&sb, "%s_%s %g\n\n", namespace, name, v)
	}

	counter("uploads_total", "Total number of uploads.", m.uploadsTotal.Load())
	counter("uploads_rejected_total", "Uploads rejected as invalid input.", m.uploadsRejected.Load())
	counter("uploads_failed_total", "Uploads whose rebuild failed.", m.uploadsFailed.Load())
	counter("questions_total", "Total number of questions.", m.questionsTotal.Load())
	counter("questions_errors_total", "Questions that returned an error.", m.questionsErrors.Load())
	counter("extractions_total", "Text extractions performed.", m.extractionsTotal.Load())
	counter("extractions_failed_total", "Text extractions that failed.", m.extractionsFailed.Load())
	counter("text_cache_hits_total", "Text cache hits.", m.textCacheHits.Load())
	counter("text_cache_misses_total", "Text cache misses.", m.textCacheMisses.Load())
	counter("rebuilds_total", "Index rebuilds attempted.", m.rebuildsTotal.Load())
	counter("rebuilds_failed_total", "Index rebuilds that failed.", m.rebuildsFailed.Load())
	gauge("index_documents", "Documents in the current index.", float64(m.docsIndexed.Load()))
	gauge("index_chunks", "Chunks in the current index.", float64(m.chunksIndexed.Load()))
	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}
