package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Schema    SchemaConfig    `yaml:"schema"`
	Events    EventsConfig    `yaml:"events"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConns       int    `yaml:"max_conns"`
	MinConns       int    `yaml:"min_conns"`
	MigrationsPath string `yaml:"migrations_path"`
	AutoMigrate    bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	CookieName   string        `yaml:"cookie_name"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	// AdminAccessCode is the shared code the staff console login requires.
	// Empty disables staff login.
	AdminAccessCode string `yaml:"admin_access_code"`
}

// SchemaConfig controls how long the applied-migration marker is cached.
type SchemaConfig struct {
	MarkerTTL time.Duration `yaml:"marker_ttl"`
}

type EventsConfig struct {
	Backend        string        `yaml:"backend"` // "asynq", "nats" or "none"
	NATSURL        string        `yaml:"nats_url"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookSecret  string        `yaml:"webhook_secret"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
}

type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() *Config {
	return &Config{
		Env:    "dev",
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			MaxConns:       20,
			MinConns:       2,
			MigrationsPath: "migrations",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			CookieName: "token",
			TokenTTL:   7 * 24 * time.Hour,
		},
		Schema: SchemaConfig{MarkerTTL: 30 * time.Second},
		Events: EventsConfig{
			Backend:        "asynq",
			NATSURL:        "nats://localhost:4222",
			SubjectPrefix:  "support.tickets",
			WebhookTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Telemetry: TelemetryConfig{ServiceName: "eventdesk-api"},
		Log:       LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// named by CONFIG_FILE, then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", cfg.Database.MaxConns); err != nil {
		return fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	if cfg.Database.MinConns, err = getEnvInt("DB_MIN_CONNS", cfg.Database.MinConns); err != nil {
		return fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	cfg.Database.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.Database.MigrationsPath)
	if cfg.Database.AutoMigrate, err = getEnvBool("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate); err != nil {
		return fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.CookieName = getEnv("AUTH_COOKIE_NAME", cfg.Auth.CookieName)
	cfg.Auth.AdminAccessCode = getEnv("ADMIN_ACCESS_CODE", cfg.Auth.AdminAccessCode)
	if cfg.Auth.TokenTTL, err = getEnvDuration("AUTH_TOKEN_TTL", cfg.Auth.TokenTTL); err != nil {
		return fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}
	if cfg.Auth.SecureCookie, err = getEnvBool("AUTH_SECURE_COOKIE", cfg.Auth.SecureCookie || cfg.Env == "production"); err != nil {
		return fmt.Errorf("invalid AUTH_SECURE_COOKIE: %w", err)
	}

	if cfg.Schema.MarkerTTL, err = getEnvDuration("SCHEMA_MARKER_TTL", cfg.Schema.MarkerTTL); err != nil {
		return fmt.Errorf("invalid SCHEMA_MARKER_TTL: %w", err)
	}

	cfg.Events.Backend = getEnv("EVENTS_BACKEND", cfg.Events.Backend)
	cfg.Events.NATSURL = getEnv("NATS_URL", cfg.Events.NATSURL)
	cfg.Events.SubjectPrefix = getEnv("EVENTS_SUBJECT_PREFIX", cfg.Events.SubjectPrefix)
	cfg.Events.WebhookURL = getEnv("EVENTS_WEBHOOK_URL", cfg.Events.WebhookURL)
	cfg.Events.WebhookSecret = getEnv("EVENTS_WEBHOOK_SECRET", cfg.Events.WebhookSecret)
	if cfg.Events.WebhookTimeout, err = getEnvDuration("EVENTS_WEBHOOK_TIMEOUT", cfg.Events.WebhookTimeout); err != nil {
		return fmt.Errorf("invalid EVENTS_WEBHOOK_TIMEOUT: %w", err)
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
		}
		cfg.HTTP.RateLimitRPS = rps
	}
	if cfg.HTTP.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	if cfg.Telemetry.Insecure, err = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Telemetry.Insecure); err != nil {
		return fmt.Errorf("invalid OTEL_EXPORTER_OTLP_INSECURE: %w", err)
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	switch c.Events.Backend {
	case "asynq", "nats", "none":
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.Events.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
