package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/config"
	"workforce-backend/internal/shared/server/respond"
)

const (
	principalKey = "principal"
	userIDKey    = "userId"
	companyIDKey = "companyId"

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jwt"

	onboardingApproved = "approved"
)

// ErrUnknownUser is returned by a PrincipalLoader when the token's user no longer exists.
var ErrUnknownUser = errors.New("user not found")

// Principal is the authenticated account attached to a request.
type Principal struct {
	UserID           string
	CompanyID        string
	Email            string
	Name             string
	Admin            bool
	SuperAdmin       bool
	Verified         bool
	OnboardingStatus string
	GoogleID         string
	GithubID         string
	PasswordHash     string
}

// PrincipalLoader resolves a user id into a Principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (Principal, error)
}

// Authenticate validates the session token and attaches the account.
func Authenticate(users PrincipalLoader, signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		token := tokenFromRequest(c)
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "authentication token not found", nil)
			return
		}

		claims, err := signer.VerifySession(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "Invalid or expired authentication token", map[string]any{
				"error": err.Error(),
			})
			return
		}

		p, err := users.LoadPrincipal(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUnknownUser) {
				respond.Error(c, http.StatusNotFound, "user not found", nil)
				return
			}
			respond.Fail(c, err)
			return
		}

		// SSO accounts are verified by their provider.
		if !p.Verified && p.GoogleID == "" && p.GithubID == "" {
			respond.Error(c, http.StatusForbidden, "Please verify your email", map[string]any{
				"needsVerification": true,
			})
			return
		}

		if claims.CompanyID != "" {
			p.CompanyID = claims.CompanyID
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// RequireAdmin allows company administrators only.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok || !p.Admin {
			respond.Error(c, http.StatusForbidden, "Admin access required", nil)
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin allows the configured platform administrator. A Google
// account must match the configured google id; other accounts must match the
// configured password hash.
func RequireSuperAdmin(cfg config.SuperAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if ok && IsSuperAdmin(p, cfg) {
			p.SuperAdmin = true
			setPrincipal(c, p)
			c.Next()
			return
		}
		respond.Error(c, http.StatusForbidden, "Super admin access required", nil)
	}
}

// IsSuperAdmin reports whether p is the configured platform administrator.
func IsSuperAdmin(p Principal, cfg config.SuperAdmin) bool {
	if cfg.Email == "" || p.Email != cfg.Email {
		return false
	}
	if p.GoogleID != "" && p.GoogleID == cfg.GoogleID {
		return true
	}
	return cfg.Hash != "" && p.PasswordHash == cfg.Hash
}

// RequireOnboardingComplete blocks regular users until their onboarding is approved.
func RequireOnboardingComplete() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if ok && (p.Admin || p.SuperAdmin) {
			c.Next()
			return
		}
		if !ok || p.OnboardingStatus != onboardingApproved {
			status := p.OnboardingStatus
			if status == "" {
				status = "pending"
			}
			respond.Error(c, http.StatusForbidden, "Please complete onboarding process before accessing this feature", map[string]any{
				"onboardingRequired": true,
				"currentStatus":      status,
			})
			return
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(header[len("Bearer "):])
		}
		return header
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
	c.Set(userIDKey, p.UserID)
	c.Set(companyIDKey, p.CompanyID)
}

// CurrentPrincipal returns the account attached by Authenticate.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	if c == nil {
		return Principal{}, false
	}
	val, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}
