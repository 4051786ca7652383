// Package httpapi exposes the article buffer, the live stream and analyses over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"NewsStream/internal/broadcast"
	"NewsStream/internal/buffer"
	"NewsStream/internal/domain"
	"NewsStream/internal/infrastructure/storage"
)

// Subscribers is the part of the broadcast hub the stream endpoint needs.
type Subscribers interface {
	Register() *broadcast.Subscriber
	Unregister(id string)
	Count() int
}

// Store is the persistence the handlers read from or clear.
type Store interface {
	GetAnalysis(ctx context.Context, articleID string) (*domain.AnalysisResult, error)
	Clear(ctx context.Context) error
}

// Handler serves the HTTP API over the buffer, the store and the hub.
type Handler struct {
	buffer  *buffer.Buffer
	store   Store
	hub     Subscribers
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewHandler builds a Handler; a nil logger falls back to slog.Default.
func NewHandler(buf *buffer.Buffer, store Store, hub Subscribers, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		buffer:  buf,
		store:   store,
		hub:     hub,
		started: time.Now(),
		now:     time.Now,
		logger:  logger,
	}
}

func (h *Handler) timestamp() string {
	return domain.FormatTimestamp(h.now().UTC())
}

// GetArticles serves the buffered articles with a readiness status.
func (h *Handler) GetArticles(c *gin.Context) {
	required := h.buffer.Required()

	if !h.buffer.Ready() {
		current := h.buffer.Len()
		h.logger.Info("service initializing", "current", current, "required", required)
		c.JSON(http.StatusServiceUnavailable, ArticlesResponse{
			Articles:  []domain.Article{},
			Status:    "initializing",
			Message:   "Service is collecting initial articles. Please try again shortly.",
			Required:  required,
			Current:   current,
			Timestamp: h.timestamp(),
		})
		return
	}

	articles := h.buffer.Snapshot()
	if len(articles) < required {
		h.logger.Info("partial content", "current", len(articles), "required", required)
		c.JSON(http.StatusPartialContent, ArticlesResponse{
			Articles:  articles,
			Status:    "partial",
			Message:   fmt.Sprintf("Service has only %d of %d required articles", len(articles), required),
			Required:  required,
			Current:   len(articles),
			Timestamp: h.timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, ArticlesResponse{
		Articles:  articles,
		Status:    "success",
		Required:  required,
		Current:   len(articles),
		Timestamp: h.timestamp(),
	})
}

// Stream is the server-sent events endpoint.
func (h *Handler) Stream(c *gin.Context) {
	sub := h.hub.Register()
	defer h.hub.Unregister(sub.ID())
	h.logger.Info("new client connecting", "client_id", sub.ID(), "ip", c.ClientIP())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	status := "initializing"
	articles := []domain.Article{}
	if h.buffer.Ready() {
		status = "ready"
		articles = h.buffer.Snapshot()
	}
	initial := initialEvent{
		Type:         string(domain.EventInitial),
		Articles:     articles,
		Status:       status,
		BufferStatus: domain.BufferStatus{Required: h.buffer.Required(), Current: len(articles)},
		Timestamp:    h.timestamp(),
	}
	if err := h.writeEvent(c, initial); err != nil {
		h.logger.Warn("initial event failed", "client_id", sub.ID(), "error", err)
		return
	}

	ctx := c.Request.Context()
	for {
		event, err := sub.Next(ctx)
		if err != nil {
			return
		}
		payload := event.Payload()
		payload["buffer_status"] = h.buffer.Status()
		payload["timestamp"] = h.timestamp()
		if err := h.writeEvent(c, payload); err != nil {
			h.logger.Warn("connection reset", "client_id", sub.ID(), "error", err)
			return
		}
	}
}

func (h *Handler) writeEvent(c *gin.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// ClearCache wipes stored articles and resets the buffer.
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		h.logger.Error("clear cache failed", "error", err)
		c.JSON(http.StatusInternalServerError, StatusResponse{Status: "error", Message: "Failed to clear cache"})
		return
	}
	h.buffer.Reset()

	c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "Cache cleared successfully"})
}

// GetHealth reports buffer and client counts.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Timestamp:        h.timestamp(),
		BufferSize:       h.buffer.Len(),
		ConnectedClients: h.hub.Count(),
		Uptime:           h.now().Sub(h.started).Seconds(),
	})
}

// GetAnalysis returns the stored analysis of one article.
func (h *Handler) GetAnalysis(c *gin.Context) {
	articleID := c.Param("article_id")
	if articleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing article_id parameter"})
		return
	}

	analysis, err := h.store.GetAnalysis(c.Request.Context(), articleID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, AnalysisResponse{ArticleID: articleID, Error: "Analysis not found"})
		return
	}
	if err != nil {
		h.logger.Error("error fetching analysis", "article_id", articleID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{ArticleID: articleID, Analysis: analysis})
}
