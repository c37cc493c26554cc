package documents

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/progress"
	"workforce-backend/internal/shared/metrics"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/telemetry"
)

// ProgressEvent is the SSE event name carrying upload progress.
const ProgressEvent = "doc-progress"

const keepAliveInterval = 25 * time.Second

// StreamHandler serves upload progress as server-sent events.
type StreamHandler struct {
	Hub       *progress.Hub
	KeepAlive time.Duration
}

func NewStreamHandler(hub *progress.Hub) *StreamHandler {
	return &StreamHandler{Hub: hub, KeepAlive: keepAliveInterval}
}

// RegisterRoutes attaches the stream. rg must already authenticate.
func (h *StreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/progress", h.stream)
}

func (h *StreamHandler) stream(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	documentID := c.Query("documentId")
	sub := h.Hub.Subscribe(p.UserID, documentID)
	defer sub.Close()
	defer metrics.StreamOpened()()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	telemetry.Debug("progress.subscribed", map[string]any{"user_id": p.UserID, "document_id": documentID})

	interval := h.KeepAlive
	if interval <= 0 {
		interval = keepAliveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent(ProgressEvent, ev)
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
