package respond

import (
	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/apperr"
	"workforce-backend/internal/shared/telemetry"
)

// Error logs and aborts with {success:false, message, ...extra}.
func Error(c *gin.Context, status int, message string, extra map[string]any) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	body := gin.H{"success": false, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// Fail maps err onto its apperr kind and writes the error envelope.
func Fail(c *gin.Context, err error) {
	ae := apperr.From(err)
	Error(c, ae.Kind.Status(), ae.Message, ae.Fields)
}
