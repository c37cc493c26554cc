package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/server/respond"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	// Last-Event-ID lets an EventSource resume the progress stream.
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-Id, Last-Event-ID"
	corsExposeHeaders = "X-Request-Id"
	corsMaxAge        = "600"
)

// originSet holds the CORS_ALLOW_ORIGINS entries. "*" admits any origin; the
// origin is still echoed back because the session cookie needs credentials.
type originSet struct {
	any     bool
	allowed map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	set := originSet{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case "*":
			set.any = true
		default:
			set.allowed[o] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.allowed[normalizeOrigin(origin)]
	return ok
}

// normalizeOrigin folds "https://App.example.com/" and "https://app.example.com".
func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}

// CORS admits browser calls from the configured front-end origins.
// Preflights from other origins are refused with 403; simple requests from
// them proceed without CORS headers and the browser hides the response.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := newOriginSet(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		h := c.Writer.Header()
		if origin != "" {
			h.Add("Vary", "Origin")
		}

		allowed := origin != "" && origins.allows(origin)
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}

		switch {
		case preflight && !allowed:
			respond.Error(c, http.StatusForbidden, "Origin not allowed", nil)
		case preflight:
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusNoContent)
		default:
			c.Next()
		}
	}
}
