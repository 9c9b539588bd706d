package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/service"
)

const notReadyDetail = "AI Agents are not ready."

type Handler struct {
	service   service.Diagnostics
	maxUpload int64
	log       *zap.Logger
}

func New(svc service.Diagnostics, maxUpload int64, log *zap.Logger) *Handler {
	return &Handler{
		service:   svc,
		maxUpload: maxUpload,
		log:       log,
	}
}

// HealthCheck reports liveness; memory reflects remote-store connectivity.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "online",
		"system": "MicroSmart PF",
		"memory": h.service.StoreEnabled(),
	})
}

// Analyze accepts a multipart blood-smear upload and runs the diagnostic
// pipeline. The pipeline keeps running even if the caller disconnects, so
// the staged-file cleanup guarantee holds regardless of who is listening.
func (h *Handler) Analyze(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": notReadyDetail})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No sample file provided"})
		return
	}

	if file.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Sample file too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read sample file"})
		return
	}
	defer src.Close()

	sample, err := io.ReadAll(io.LimitReader(src, h.maxUpload))
	if err != nil {
		h.log.Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read sample file"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.service.Analyze(ctx, sample, file.Filename)
	if err != nil {
		if errors.Is(err, service.ErrNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": notReadyDetail})
			return
		}
		h.log.Error("Analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

// Search forwards a semantic query to the remote store.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A non-empty query is required"})
		return
	}

	matches, err := h.service.Search(c.Request.Context(), req.Query)
	if err != nil {
		if errors.Is(err, service.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Memory store is not configured"})
			return
		}
		h.log.Error("Search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
