package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"workforce-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Env             string        `env:"ENV" envDefault:"dev"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	CORSAllowOrigin []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	UploadMaxBytes  int64         `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	PresignTTL      time.Duration `env:"PRESIGN_TTL" envDefault:"15m"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	ObjectStoreType string `env:"OBJECT_STORE" envDefault:"local"`
	LocalStoreDir   string `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	AWSRegion       string `env:"AWS_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX"`
	SSEKMSKeyID     string `env:"SSE_KMS_KEY_ID"`
	MinioEndpoint   string `env:"MINIO_ENDPOINT"`
	MinioAccessKey  string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey  string `env:"MINIO_SECRET_KEY"`
	MinioBucket     string `env:"MINIO_BUCKET"`
	GCSBucket       string `env:"GCS_BUCKET"`
	GCSPrefix       string `env:"GCS_PREFIX"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `env:"UI_REDIRECT_URL"`

	SuperAdmin SuperAdmin
	SMTP       SMTP
}

// SuperAdmin identifies the single platform-level administrator.
type SuperAdmin struct {
	Email    string `env:"SUPER_ADMIN_EMAIL"`
	GoogleID string `env:"SUPER_ADMIN_GOOGLE_ID"`
	Hash     string `env:"SUPER_ADMIN_HASH"`
}

// SMTP configures outgoing mail. An empty Host disables delivery.
type SMTP struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	if path := loadDotEnv(".env", "cmd/.env"); path != "" {
		telemetry.Debug("config.dotenv_loaded", map[string]any{"path": path})
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		telemetry.Error("config.parse_failed", map[string]any{"err": err.Error()})
	}
	return Normalize(cfg)
}

// Normalize canonicalizes enumerated values. It is applied by Load and is
// useful for configs built by hand in tests.
func Normalize(cfg Config) Config {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.CORSAllowOrigin = splitAndTrim(strings.Join(cfg.CORSAllowOrigin, ","))

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		telemetry.Error("config.invalid", map[string]any{"err": "DATABASE_URL is required in production"})
	}
	if cfg.Env == "production" && strings.TrimSpace(cfg.JWTSecret) == "" {
		telemetry.Error("config.invalid", map[string]any{"err": "JWT_SECRET is required in production"})
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	return cfg
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}
