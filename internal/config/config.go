package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Institution InstitutionConfig
	Admin       AdminConfig
	Mail        MailConfig
	Storage     StorageConfig
	Render      RenderConfig
	RateLimit   RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	PublicURL             string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
	// RevealUnknownEmail makes forgot-password answer NOT_FOUND for unknown accounts.
	RevealUnknownEmail bool
}

// InstitutionConfig restricts self registration to one email domain.
type InstitutionConfig struct {
	EmailDomain string
}

// AdminConfig describes the account guaranteed at startup.
type AdminConfig struct {
	Email          string
	Password       string
	Name           string
	Department     string
	RegisterNumber string
}

// MailConfig holds SMTP settings. An empty Host selects the logging mailer.
type MailConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	From           string
	FromName       string
	TimeoutSeconds int
}

// StorageConfig holds MinIO settings. An empty Endpoint selects the in-memory store.
type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	MaxUploadBytes int64
}

// RenderConfig bounds PDF generation.
type RenderConfig struct {
	TimeoutSeconds int
	Institution    string
}

// RateLimitConfig bounds requests per client on auth endpoints.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	domain := strings.TrimPrefix(strings.ToLower(getEnv("INSTITUTION_EMAIL_DOMAIN", "rajalakshmi.edu.in")), "@")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "credit-transfer-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5001"),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicURL:             getEnv("APP_PUBLIC_URL", "http://localhost:5173"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:               getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30*24*60),
			PasswordResetTTLMinutes: getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 10),
			BcryptCost:              getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RevealUnknownEmail:      getEnvAsBool("AUTH_RESET_REVEAL_UNKNOWN_EMAIL", false),
		},
		Institution: InstitutionConfig{
			EmailDomain: domain,
		},
		Admin: AdminConfig{
			Email:          strings.ToLower(getEnv("ADMIN_EMAIL", "admin@"+domain)),
			Password:       getEnv("ADMIN_PASSWORD", "adminpassword"),
			Name:           getEnv("ADMIN_NAME", "System Admin"),
			Department:     getEnv("ADMIN_DEPARTMENT", "Administration"),
			RegisterNumber: getEnv("ADMIN_REGISTER_NUMBER", "ADMIN001"),
		},
		Mail: MailConfig{
			Host:           os.Getenv("MAIL_HOST"),
			Port:           getEnvAsInt("MAIL_PORT", 587),
			Username:       os.Getenv("MAIL_USERNAME"),
			Password:       os.Getenv("MAIL_PASSWORD"),
			From:           getEnv("MAIL_FROM", "noreply@"+domain),
			FromName:       getEnv("MAIL_FROM_NAME", "Credit Transfer Portal"),
			TimeoutSeconds: getEnvAsInt("MAIL_TIMEOUT_SECONDS", 10),
		},
		Storage: StorageConfig{
			Endpoint:       os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:         getEnv("STORAGE_BUCKET", "credit-transfer"),
			UseSSL:         getEnvAsBool("STORAGE_USE_SSL", false),
			MaxUploadBytes: int64(getEnvAsInt("STORAGE_MAX_UPLOAD_BYTES", 4*1024*1024)),
		},
		Render: RenderConfig{
			TimeoutSeconds: getEnvAsInt("RENDER_TIMEOUT_SECONDS", 15),
			Institution:    getEnv("RENDER_INSTITUTION_NAME", "Rajalakshmi Engineering College"),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvAsInt("RATE_LIMIT_MAX", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 600),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether diagnostic error detail may be exposed.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the session token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// PasswordResetTTL returns the reset credential lifetime.
func (a AuthConfig) PasswordResetTTL() time.Duration {
	return time.Duration(a.PasswordResetTTLMinutes) * time.Minute
}

// Timeout bounds a single SMTP delivery.
func (m MailConfig) Timeout() time.Duration {
	return secondsOr(m.TimeoutSeconds, 10)
}

// Timeout bounds a single PDF render.
func (r RenderConfig) Timeout() time.Duration {
	return secondsOr(r.TimeoutSeconds, 15)
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	return secondsOr(r.WindowSeconds, 600)
}

func secondsOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
