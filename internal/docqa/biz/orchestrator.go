package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	docerrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/pool"
)

// pdfMagic PDF 文件头。
var pdfMagic = []byte("%PDF-")

// Snapshot 一次成功重建得到的只读索引版本。
type Snapshot struct {
	Version   string             `json:"version"`
	Index     *store.MemoryIndex `json:"-"`
	Documents []string           `json:"documents"`
	Chunks    int                `json:"chunks"`
	BuiltAt   time.Time          `json:"built_at"`

	// gen 重建开始时分配的序号，用于丢弃过期的发布
	gen uint64
}

// DocumentResult 单个文档在一次重建中的处理结果。
type DocumentResult struct {
	Name   string `json:"name"`
	Hash   string `json:"hash,omitempty"`
	Cached bool   `json:"cached"`
	Chunks int    `json:"chunks"`
	// DuplicateOf 内容与先出现的文档相同，未重复索引
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Error       string `json:"error,omitempty"`
	// CacheError 文本已提取但写入缓存失败，不影响本次索引
	CacheError string `json:"cache_error,omitempty"`

	text string
	err  error
}

// RebuildReport 重建结果。
type RebuildReport struct {
	Snapshot  *Snapshot        `json:"snapshot"`
	Documents []DocumentResult `json:"documents"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// UploadResult 上传成功后的返回。
type UploadResult struct {
	Document  string   `json:"document"`
	Hash      string   `json:"hash"`
	Cached    bool     `json:"cached"`
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Version   string   `json:"index_version"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Answer 问答结果。Context 是检索文本的摘要，RetrievedText 是生成回答时使用的原始检索文本。
type Answer struct {
	Answer        string   `json:"answer"`
	Context       string   `json:"context"`
	RetrievedText string   `json:"retrieved_text"`
	ExpandedQuery string   `json:"expanded_query"`
	Sources       []string `json:"sources"`
	IndexVersion  string   `json:"index_version"`
}

// Stats 服务状态。
type Stats struct {
	Ready        bool           `json:"ready"`
	Documents    int            `json:"documents"`
	Chunks       int            `json:"chunks"`
	IndexVersion string         `json:"index_version,omitempty"`
	BuiltAt      *time.Time     `json:"built_at,omitempty"`
	Pool         pool.Stats     `json:"pool"`
	Metrics      map[string]any `json:"metrics"`
}

// OrchestratorOptions 编排器依赖。
type OrchestratorOptions struct {
	Documents *store.DocumentStore
	Cache     TextCache
	Extractor Extractor
	Chunker   Chunker
	Indexer   *IndexBuilder
	Workflow  *Workflow
	Pool      *pool.Pool
	Metrics   *metrics.Metrics

	// ExtractTimeout 单个文档提取超时，<= 0 不限制。
	ExtractTimeout time.Duration
}

// Orchestrator 负责上传、重建与问答。
// 当前索引通过原子指针发布，问答在整个流程中使用同一个快照。
type Orchestrator struct {
	docs      *store.DocumentStore
	cache     TextCache
	extractor Extractor
	chunker   Chunker
	indexer   *IndexBuilder
	workflow  *Workflow
	pool      *pool.Pool
	metrics   *metrics.Metrics

	extractTimeout time.Duration

	current atomic.Pointer[Snapshot]
	gen     atomic.Uint64
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	switch {
	case opts.Documents == nil:
		return nil, errors.New("orchestrator: document store is required")
	case opts.Cache == nil:
		return nil, errors.New("orchestrator: text cache is required")
	case opts.Extractor == nil:
		return nil, errors.New("orchestrator: extractor is required")
	case opts.Chunker == nil:
		return nil, errors.New("orchestrator: chunker is required")
	case opts.Indexer == nil:
		return nil, errors.New("orchestrator: index builder is required")
	case opts.Workflow == nil:
		return nil, errors.New("orchestrator: workflow is required")
	case opts.Pool == nil:
		return nil, errors.New("orchestrator: worker pool is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}

	return &Orchestrator{
		docs:           opts.Documents,
		cache:          opts.Cache,
		extractor:      opts.Extractor,
		chunker:        opts.Chunker,
		indexer:        opts.Indexer,
		workflow:       opts.Workflow,
		pool:           opts.Pool,
		metrics:        opts.Metrics,
		extractTimeout: opts.ExtractTimeout,
	}, nil
}

// Init 启动时根据已有文档构建索引。失败只记录日志，服务保持未就绪。
func (o *Orchestrator) Init(ctx context.Context) {
	docs, err := o.docs.List()
	if err != nil {
		logger.Warnw("failed to list documents at startup", "dir", o.docs.Dir(), "error", err.Error())
		return
	}
	if len(docs) == 0 {
		logger.Infow("no documents yet, waiting for the first upload", "dir", o.docs.Dir())
		return
	}

	report, err := o.Rebuild(ctx)
	if err != nil {
		logger.Warnw("initial index build failed, service not ready", "documents", len(docs), "error", err.Error())
		return
	}
	logger.Infow("initial index built",
		"documents", len(report.Snapshot.Documents),
		"chunks", report.Snapshot.Chunks,
		"version", report.Snapshot.Version,
	)
}

// OnUpload 校验并保存文档，然后重建整个语料的索引。
// 校验失败时不修改文档目录与缓存。
func (o *Orchestrator) OnUpload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	name, err := validateUpload(name, data)
	if err != nil {
		o.metrics.RecordUpload(true, err)
		logger.Infow("upload rejected", "document", name, "error", err.Error())
		return nil, err
	}

	doc, err := o.docs.Save(name, data)
	if err != nil {
		o.metrics.RecordUpload(false, err)
		return nil, docerrors.ErrDocumentStore.WithCause(err)
	}
	hash := ContentHash(data)
	logger.Infow("document saved", "document", doc.Name, "hash", hash, "size", doc.Size)

	report, err := o.Rebuild(ctx)
	o.metrics.RecordUpload(false, err)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Document:  doc.Name,
		Hash:      hash,
		Documents: len(report.Snapshot.Documents),
		Chunks:    report.Snapshot.Chunks,
		Version:   report.Snapshot.Version,
		Warnings:  report.Warnings,
	}
	for _, d := range report.Documents {
		if d.Name == doc.Name {
			result.Cached = d.Cached
			break
		}
	}
	return result, nil
}

func validateUpload(name string, data []byte) (string, error) {
	clean, err := store.SanitizeName(name)
	if err != nil {
		return name, docerrors.ErrInvalidInput.WithMessage("invalid file name")
	}
	if !store.IsPDFName(clean) {
		return clean, docerrors.ErrInvalidInput.WithMessage("only PDF documents are accepted")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return clean, docerrors.ErrInvalidInput.WithMessage("file content is not a PDF document")
	}
	return clean, nil
}

// OnQuestion 在当前快照上执行一次问答。
func (o *Orchestrator) OnQuestion(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, docerrors.ErrInvalidInput.WithMessage("question must not be empty")
	}

	snap := o.current.Load()
	if snap == nil {
		return nil, docerrors.ErrNotReady
	}

	start := time.Now()
	state, err := o.workflow.Run(ctx, snap.Index, question)
	if err != nil {
		o.metrics.RecordQuestion(time.Since(start), 0, err)
		return nil, err
	}
	o.metrics.RecordQuestion(time.Since(start), len(state.Retrieved), nil)

	sources := make([]string, 0, len(state.Retrieved))
	seen := make(map[string]struct{}, len(state.Retrieved))
	for _, r := range state.Retrieved {
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		sources = append(sources, r.Source)
	}

	logger.Infow("question answered",
		"version", snap.Version,
		"retrieved", len(state.Retrieved),
		"elapsed", time.Since(start).String(),
	)
	return &Answer{
		Answer:        state.Answer,
		Context:       state.Summary,
		RetrievedText: state.RetrievedContext,
		ExpandedQuery: state.ExpandedQuery,
		Sources:       sources,
		IndexVersion:  snap.Version,
	}, nil
}

// Rebuild 从文档目录重建索引并发布。
// 失败时保留原快照；提取失败的文档被跳过并记入 Warnings。
func (o *Orchestrator) Rebuild(ctx context.Context) (*RebuildReport, error) {
	gen := o.gen.Add(1)
	start := time.Now()

	snap, report, err := o.rebuild(ctx, gen)
	if err != nil {
		o.metrics.RecordRebuild(time.Since(start), 0, 0, err)
		logger.Warnw("index rebuild failed, keeping previous index",
			"elapsed", time.Since(start).String(),
			"error", err.Error(),
		)
		return nil, err
	}
	o.metrics.RecordRebuild(time.Since(start), len(snap.Documents), snap.Chunks, nil)

	report.Snapshot = o.publish(snap)
	logger.Infow("index published",
		"version", report.Snapshot.Version,
		"documents", len(report.Snapshot.Documents),
		"chunks", report.Snapshot.Chunks,
		"warnings", len(report.Warnings),
		"elapsed", time.Since(start).String(),
	)
	return report, nil
}

func (o *Orchestrator) rebuild(ctx context.Context, gen uint64) (*Snapshot, *RebuildReport, error) {
	docs, err := o.docs.List()
	if err != nil {
		return nil, nil, docerrors.ErrDocumentStore.WithCause(err)
	}

	results := o.loadAll(ctx, docs)
	report := &RebuildReport{Documents: results}

	var (
		chunks  []Chunk
		indexed []string
		seen    = make(map[string]string, len(results))
	)
	for i := range results {
		r := &results[i]
		if r.err != nil {
			r.Error = r.err.Error()
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", r.Name, docerrors.FromError(r.err).Message("en")))
			logger.Warnw("skipping document", "document", r.Name, "error", r.err.Error())
			continue
		}
		if first, ok := seen[r.Hash]; ok {
			r.DuplicateOf = first
			logger.Infow("duplicate document content", "document", r.Name, "duplicate_of", first, "hash", r.Hash)
			continue
		}
		seen[r.Hash] = r.Name

		docChunks := ChunkDocument(o.chunker, r.Name, r.text)
		r.Chunks = len(docChunks)
		chunks = append(chunks, docChunks...)
		indexed = append(indexed, r.Name)
	}

	idx, err := o.indexer.Build(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}

	return &Snapshot{
		Version:   ulid.Make().String(),
		Index:     idx,
		Documents: indexed,
		Chunks:    idx.Len(),
		BuiltAt:   time.Now(),
		gen:       gen,
	}, report, nil
}

// loadAll 在工作池上并发获取每个文档的文本，结果顺序与 docs 一致。
func (o *Orchestrator) loadAll(ctx context.Context, docs []store.Document) []DocumentResult {
	results := make([]DocumentResult, len(docs))
	var wg sync.WaitGroup

	for i, d := range docs {
		// worker panic 时保留该结果
		results[i] = DocumentResult{
			Name: d.Name,
			err:  docerrors.ErrExtractionFailed.WithMessage("extraction worker aborted"),
		}

		wg.Add(1)
		err := o.pool.SubmitWithContext(ctx,
			func() {
				defer wg.Done()
				results[i] = o.loadText(ctx, d)
			},
			func(err error) {
				defer wg.Done()
				results[i].err = docerrors.ErrExtractionFailed.WithCause(err)
			},
		)
		if err != nil {
			wg.Done()
			results[i].err = docerrors.ErrExtractionFailed.WithCause(err)
		}
	}

	wg.Wait()
	return results
}

// loadText 先查缓存，未命中时提取并写回缓存。
func (o *Orchestrator) loadText(ctx context.Context, d store.Document) DocumentResult {
	res := DocumentResult{Name: d.Name}

	data, err := o.docs.Read(d.Name)
	if err != nil {
		res.err = docerrors.ErrDocumentStore.WithCause(err)
		return res
	}
	res.Hash = ContentHash(data)

	text, ok, err := o.cache.Lookup(ctx, res.Hash)
	if err != nil {
		o.metrics.RecordTextCacheError()
		logger.Warnw("text cache lookup failed", "document", d.Name, "hash", res.Hash, "error", err.Error())
	}
	o.metrics.RecordTextCache(ok)
	if ok {
		res.Cached = true
		res.text = text
		return res
	}

	start := time.Now()
	text, err = o.extract(ctx, data)
	o.metrics.RecordExtraction(err)
	if err != nil {
		if !docerrors.IsCode(err, docerrors.ErrExtractionFailed.Code) {
			err = docerrors.ErrExtractionFailed.WithCause(err)
		}
		res.err = err
		return res
	}
	logger.Debugw("text extracted", "document", d.Name, "hash", res.Hash, "elapsed", time.Since(start).String())

	if err := o.cache.Store(ctx, res.Hash, text); err != nil {
		werr := docerrors.ErrCacheWrite.WithCause(err)
		o.metrics.RecordTextCacheError()
		res.CacheError = werr.Message("en")
		logger.Warnw("text cache write failed",
			"document", d.Name,
			"hash", res.Hash,
			"code", werr.Code,
			"error", werr.Error(),
		)
	}
	res.text = text
	return res
}

type extractResult struct {
	text string
	err  error
}

// extract 在超时内等待提取结果。提取器不响应取消时直接返回超时，迟到的结果被丢弃。
func (o *Orchestrator) extract(ctx context.Context, data []byte) (string, error) {
	extractCtx, cancel := withTimeout(ctx, o.extractTimeout)
	defer cancel()

	done := make(chan extractResult, 1)
	go func() {
		text, err := o.extractor.Extract(extractCtx, data)
		done <- extractResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-extractCtx.Done():
		return "", docerrors.ErrExtractionFailed.WithCause(extractCtx.Err())
	}
}

// publish 发布快照。较早开始的重建晚于较新的重建完成时被丢弃，返回实际生效的快照。
func (o *Orchestrator) publish(snap *Snapshot) *Snapshot {
	for {
		cur := o.current.Load()
		if cur != nil && cur.gen > snap.gen {
			logger.Infow("discarding stale index build", "version", snap.Version, "current", cur.Version)
			return cur
		}
		if o.current.CompareAndSwap(cur, snap) {
			return snap
		}
	}
}

// Snapshot 返回当前快照，未就绪时为 nil。
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.current.Load()
}

// Ready 报告是否已有可用索引。
func (o *Orchestrator) Ready() bool {
	return o.current.Load() != nil
}

// ListDocuments 返回文档目录中的全部 PDF。
func (o *Orchestrator) ListDocuments() ([]store.Document, error) {
	docs, err := o.docs.List()
	if err != nil {
		return nil, docerrors.ErrDocumentStore.WithCause(err)
	}
	return docs, nil
}

// Stats 返回服务状态。
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Pool:    o.pool.Stats(),
		Metrics: o.metrics.Stats(),
	}
	if snap := o.current.Load(); snap != nil {
		builtAt := snap.BuiltAt
		s.Ready = true
		s.Documents = len(snap.Documents)
		s.Chunks = snap.Chunks
		s.IndexVersion = snap.Version
		s.BuiltAt = &builtAt
	}
	return s
}
