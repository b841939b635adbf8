package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string

	// Link store
	DatabaseURL string

	// Redis backs sessions and, with QueueBackend "redis", the contact queue.
	RedisURL string

	// Contact queue storage: "sqlite", "redis" or "memory"
	QueueBackend string
	QueuePath    string // SQLite file

	// Contact endpoint
	ContactEndpoint      string
	ContactHealthURL     string
	ContactSource        string
	ContactTimeout       time.Duration
	ContactFallbackEmail string // Receives a notice for every queued message
	HealthInterval       time.Duration
	RedeliverSchedule    string // Cron spec for automatic redelivery; empty disables it

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCRoleClaim    string // Claim holding "ADMIN"/"USER"; empty uses AdminEmails only

	// Emails granted the admin role at login
	AdminEmails []string

	// Session
	SessionSecret string // Used for encrypting cookies (32 bytes, base64)

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// SMTP
	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      string // "none", "starttls" or "tls"

	SiteTitle string // env: SITE_TITLE, default: "MAKO"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:          getEnv("ENV", "development"),
		ServerAddr:   getEnv("SERVER_ADDR", ":3000"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:3000"),
		DatabaseURL:  getEnv("DATABASE_URL", "postgres://localhost:5432/mako?sslmode=disable"),
		RedisURL:     getEnv("REDIS_URL", ""),
		QueueBackend: getEnv("QUEUE_BACKEND", "sqlite"),
		QueuePath:    getEnv("QUEUE_PATH", "data/contact-queue.db"),

		ContactEndpoint:      getEnv("CONTACT_ENDPOINT", "http://localhost:3001/api/contact"),
		ContactHealthURL:     getEnv("CONTACT_HEALTH_URL", "http://localhost:3001/api/health"),
		ContactSource:        getEnv("CONTACT_SOURCE", "mako-ai.org"),
		ContactTimeout:       getDuration("CONTACT_TIMEOUT", 10*time.Second),
		ContactFallbackEmail: getEnv("CONTACT_FALLBACK_EMAIL", "contact@mako-ai.org"),
		HealthInterval:       getDuration("HEALTH_INTERVAL", time.Minute),
		RedeliverSchedule:    getEnv("REDELIVER_SCHEDULE", ""),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		OIDCRoleClaim:    getEnv("OIDC_ROLE_CLAIM", ""),
		AdminEmails:      splitList(getEnv("ADMIN_EMAILS", "")),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ORIGINS", ""),

		SMTPEnabled:  getEnv("SMTP_ENABLED", "") != "",
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "MAKO"),
		SMTPTLS:      getEnv("SMTP_TLS", "starttls"),

		SiteTitle: getEnv("SITE_TITLE", "MAKO"),
	}
}

// LoadEnvFile adds the KEY=value pairs in path to the environment. Variables
// that are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// getDuration accepts Go durations ("30s") or plain seconds ("30").
func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsEmailEnabled returns true if SMTP is configured well enough to send.
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPEnabled && c.SMTPHost != "" && c.SMTPFrom != ""
}

// IsOIDCEnabled returns true if an identity provider is configured.
func (c *Config) IsOIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}
