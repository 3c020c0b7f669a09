package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret is the fallback signing secret; it is refused outside development.
const DevJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name           string        `env:"APP_NAME" envDefault:"blog-service"`
	Env            string        `env:"APP_ENV" envDefault:"development"`
	Host           string        `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port           string        `env:"APP_PORT" envDefault:"8080"`
	Version        string        `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN           string        `env:"POSTGRES_DSN"`
	MaxConns      int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns      int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations bool          `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdle   time.Duration `env:"POSTGRES_CONN_MAX_IDLE" envDefault:"30s"`
	ConnMaxLife   time.Duration `env:"POSTGRES_CONN_MAX_LIFE" envDefault:"5m"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret        string        `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTL   time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"2h"`
	VerificationTTL  time.Duration `env:"AUTH_VERIFICATION_TTL" envDefault:"24h"`
	PasswordResetTTL time.Duration `env:"AUTH_PASSWORD_RESET_TTL" envDefault:"1h"`
	BcryptCost       int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	// IssueLimit caps credential token requests per email within IssueWindow.
	// Zero disables the limiter.
	IssueLimit  int           `env:"AUTH_ISSUE_LIMIT" envDefault:"5"`
	IssueWindow time.Duration `env:"AUTH_ISSUE_WINDOW" envDefault:"15m"`
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	EmailFrom   string `env:"NOTIFY_EMAIL_FROM" envDefault:"noreply@example.com"`
	AdminEmail  string `env:"NOTIFY_ADMIN_EMAIL"`
	FrontendURL string `env:"NOTIFY_FRONTEND_URL" envDefault:"http://localhost:5173"`
	QueueKey    string `env:"NOTIFY_QUEUE_KEY" envDefault:"blog:notifications"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if c.Auth.JWTSecret == DevJWTSecret && !c.App.IsDevelopment() {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when APP_ENV=%s", c.App.Env)
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.VerificationTTL <= 0 || c.Auth.PasswordResetTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs in a development environment.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "test"
}
