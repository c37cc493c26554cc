package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	authn "workforce-backend/internal/auth"
	"workforce-backend/internal/companies"
	"workforce-backend/internal/documents"
	"workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/config"
	"workforce-backend/internal/shared/metrics"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/server/respond"
	"workforce-backend/internal/users"
)

const readyTimeout = 3 * time.Second

// Check reports whether one dependency is ready.
type Check func(ctx context.Context) error

// RouterDeps are the handlers and collaborators the router mounts.
type RouterDeps struct {
	Config     config.Config
	Signer     *auth.Signer
	Principals middleware.PrincipalLoader

	Auth      *authn.Handler
	Google    *authn.GoogleHandler
	Companies *companies.Handler
	Users     *users.Handler
	Documents *documents.Handler
	Progress  *documents.StreamHandler
	// Files is only mounted for the local object store.
	Files *documents.FilesHandler

	Checks     map[string]Check
	RateLimits map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rules,
			GroupFor: middleware.DefaultRateLimitGroup,
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	api.GET("/ready", readyHandler(deps.Checks))
	api.GET("/metrics", metrics.Handler())

	deps.Companies.RegisterPublicRoutes(api)
	deps.Auth.RegisterRoutes(api)
	if deps.Google != nil {
		deps.Google.RegisterRoutes(api)
	}
	if deps.Files != nil {
		deps.Files.RegisterRoutes(api)
	}

	authed := api.Group("", middleware.Authenticate(deps.Principals, deps.Signer))
	deps.Users.RegisterRoutes(authed)
	deps.Companies.RegisterRoutes(authed)
	deps.Progress.RegisterRoutes(authed)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	deps.Users.RegisterAdminRoutes(admin)

	superAdmin := authed.Group("/super-admin", middleware.RequireSuperAdmin(deps.Config.SuperAdmin))
	deps.Companies.RegisterSuperAdminRoutes(superAdmin)

	onboarded := authed.Group("", middleware.RequireOnboardingComplete())
	deps.Documents.RegisterRoutes(onboarded)

	return r
}

// readyHandler runs every check in parallel and reports 503 if any fails.
func readyHandler(checks map[string]Check) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
		)
		// Checks share the deadline but not cancellation, so one failure does
		// not mask the state of the others.
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				err := check(ctx)
				status := "ok"
				if err != nil {
					status = err.Error()
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
				return err
			})
		}
		if err := g.Wait(); err != nil {
			respond.Error(c, http.StatusServiceUnavailable, "not ready", map[string]any{"checks": results})
			return
		}
		respond.Success(c, http.StatusOK, gin.H{"checks": results})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
