package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	authn "workforce-backend/internal/auth"
	"workforce-backend/internal/companies"
	"workforce-backend/internal/documents"
	"workforce-backend/internal/progress"
	"workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/config"
	"workforce-backend/internal/shared/mailer"
	"workforce-backend/internal/shared/server"
	"workforce-backend/internal/shared/server/middleware"
	"workforce-backend/internal/shared/storage/db"
	"workforce-backend/internal/shared/storage/object"
	gcsstore "workforce-backend/internal/shared/storage/object/gcs"
	localstore "workforce-backend/internal/shared/storage/object/local"
	miniostore "workforce-backend/internal/shared/storage/object/minio"
	s3store "workforce-backend/internal/shared/storage/object/s3"
	"workforce-backend/internal/shared/telemetry"
	"workforce-backend/internal/users"
)

// App holds the wired dependencies of the API process.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Signer *auth.Signer
	Hub    *progress.Hub
	Mailer mailer.Sender

	UsersRepo     users.Repo
	CompaniesRepo companies.Repo
	DocumentsRepo documents.Repo

	UsersService     *users.Service
	CompaniesService *companies.Service
	AuthService      *authn.Service
	DocumentsService *documents.Service
}

// Option adjusts the App before routes are built.
type Option func(*App)

// WithMailer replaces the configured mail sender.
func WithMailer(m mailer.Sender) Option {
	return func(a *App) { a.Mailer = m }
}

// Build connects storage, wires services and builds the router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	cfg = config.Normalize(cfg)

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL, cfg.Env == "production")
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg, signer)
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Signer: signer,
		Hub:    progress.NewHub(0),
		Mailer: mailer.New(cfg.SMTP),
	}
	for _, opt := range opts {
		opt(app)
	}

	buildServices(app)
	app.Router = buildRouter(app)
	return app, nil
}

// Close releases the database pool and object store clients.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Close()
	}
	var errs []error
	if closer, ok := a.Store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts, err := db.OptionsFromEnv()
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config, signer *auth.Signer) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	case "gcs":
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL, signer), nil
	}
}

func buildServices(app *App) {
	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.CompaniesRepo = &companies.PGRepo{DB: app.DB}
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
	} else {
		userRepo := users.NewMemoryRepo()
		app.UsersRepo = userRepo
		app.CompaniesRepo = companies.NewMemoryRepo(userRepo)
		app.DocumentsRepo = documents.NewMemoryRepo()
	}

	app.UsersService = users.NewService(app.UsersRepo)
	app.CompaniesService = companies.NewService(app.CompaniesRepo)
	app.AuthService = &authn.Service{
		Users:     app.UsersRepo,
		Companies: app.CompaniesRepo,
		Signer:    app.Signer,
		Mailer:    app.Mailer,
		BaseURL:   app.Config.PublicBaseURL,
	}

	docSvc := documents.NewService(app.DocumentsRepo, app.Store, app.Hub, app.Config.ObjectStoreType)
	docSvc.PresignTTL = app.Config.PresignTTL
	docSvc.MaxBytes = app.Config.UploadMaxBytes
	app.DocumentsService = docSvc
}

func buildRouter(app *App) *gin.Engine {
	cfg := app.Config
	secureCookie := cfg.Env == "production"

	deps := server.RouterDeps{
		Config:     cfg,
		Signer:     app.Signer,
		Principals: app.UsersService,
		Auth:       authn.NewHandler(app.AuthService, secureCookie),
		Companies:  companies.NewHandler(app.CompaniesService),
		Users:      users.NewHandler(app.UsersService, cfg.SuperAdmin),
		Documents:  documents.NewHandler(app.DocumentsService),
		Progress:   documents.NewStreamHandler(app.Hub),
		Google: authn.NewGoogleHandler(app.AuthService,
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.UIRedirectURL, secureCookie),
		Checks: map[string]server.Check{
			"objectStore": app.Store.Ping,
		},
	}
	if cfg.ObjectStoreType == "local" {
		deps.Files = documents.NewFilesHandler(app.Store, app.Signer)
	}
	if app.DB != nil {
		deps.Checks["database"] = app.DB.PingContext
	}
	if cfg.Env == "test" {
		deps.RateLimits = map[string]middleware.RateLimitRule{}
	}
	return server.NewRouter(deps)
}
