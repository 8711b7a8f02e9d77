// Package router provides docqa service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/handler"
)

// Register registers the docqa routes on engine.
func Register(engine *gin.Engine, h *handler.DocQAHandler) {
	logger.Info("Registering docqa routes...")

	engine.POST("/upload_pdf", h.UploadPDF)
	engine.POST("/ask", h.Ask)
	engine.GET("/documents", h.ListDocuments)
	engine.GET("/stats", h.Stats)
	engine.GET("/healthz", h.Healthz)
	engine.GET("/metrics", h.Metrics)

	logger.Info("HTTP routes registered")
}
