// Package handler provides HTTP handlers for the docqa service.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	apierrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// Service 是 handler 依赖的业务接口，由 biz.Orchestrator 实现。
type Service interface {
	OnUpload(ctx context.Context, name string, data []byte) (*biz.UploadResult, error)
	OnQuestion(ctx context.Context, question string) (*biz.Answer, error)
	ListDocuments() ([]store.Document, error)
	Stats() biz.Stats
	Ready() bool
}

var _ Service = (*biz.Orchestrator)(nil)

// DocQAHandler handles docqa HTTP requests.
type DocQAHandler struct {
	service       Service
	metrics       *metrics.Metrics
	maxUploadSize int64
}

// NewDocQAHandler creates a new DocQAHandler. maxUploadSize <= 0 disables the limit.
func NewDocQAHandler(service Service, m *metrics.Metrics, maxUploadSize int64) *DocQAHandler {
	if m == nil {
		m = metrics.Default()
	}
	return &DocQAHandler{
		service:       service,
		metrics:       m,
		maxUploadSize: maxUploadSize,
	}
}

// UploadPDF 接收 multipart 字段 file，保存并重建索引。
func (h *DocQAHandler) UploadPDF(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, apierrors.ErrInvalidInput.WithMessagef("file exceeds the %d byte upload limit", h.maxUploadSize))
			return
		}
		response.Fail(c, apierrors.ErrInvalidInput.WithMessage("multipart field \"file\" is required"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, apierrors.ErrInvalidInput.WithCause(err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Fail(c, apierrors.ErrInvalidInput.WithCause(err))
		return
	}

	result, err := h.service.OnUpload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		logger.Warnw("upload failed", "document", fileHeader.Filename, "error", err.Error())
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

// AskRequest is the /ask request body.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask 针对已上传文档回答问题。
func (h *DocQAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, apierrors.ErrInvalidInput.WithMessage("request body must be {\"question\": string}"))
		return
	}

	answer, err := h.service.OnQuestion(c.Request.Context(), req.Question)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, answer)
}

// ListDocuments 返回已上传的文档。
func (h *DocQAHandler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments()
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, docs)
}

// Stats returns index and pipeline statistics.
func (h *DocQAHandler) Stats(c *gin.Context) {
	response.OK(c, h.service.Stats())
}

// Healthz reports liveness and whether an index is available.
func (h *DocQAHandler) Healthz(c *gin.Context) {
	response.OK(c, gin.H{
		"status": "ok",
		"ready":  h.service.Ready(),
	})
}

// Metrics exports pipeline counters in Prometheus text format.
func (h *DocQAHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export("docqa")))
}
