package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Live feed.
	FeedURL     string
	FeedTimeout time.Duration

	// Knowledge lookup.
	LookupTimeout   time.Duration
	LookupCacheSize int

	// Alerting.
	AlertThreshold float64

	// SMTP notification channel.
	SMTPEnabled bool
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string

	// Kafka notification stream (feature-flagged via KAFKA_ENABLED).
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaNotifyTopic string

	// Sessions.
	JWTSecret  string
	SessionTTL time.Duration

	// Credential store.
	UserDBDriver string // "sqlite" or "postgres"
	UserDBDSN    string

	// Admin bootstrap account.
	AdminUser string
	AdminPass string

	// Optional YAML file overriding the built-in chart knowledge base.
	KnowledgeConfig string

	// Link embedded in notification emails.
	DashboardURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	feedTimeout, err := envDuration("FEED_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	lookupTimeout, err := envDuration("LOOKUP_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := envDuration("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}

	threshold, err := envFloat("ALERT_THRESHOLD", 5.0)
	if err != nil {
		return nil, err
	}

	smtpPort, err := envInt("SMTP_PORT", 465)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("LOOKUP_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	smtpHost := os.Getenv("SMTP_HOST")
	smtpEnabled := smtpHost != ""
	if v := os.Getenv("SMTP_ENABLED"); v != "" {
		smtpEnabled = v == "true"
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedURL:     envOrDefault("FEED_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_week.geojson"),
		FeedTimeout: feedTimeout,

		LookupTimeout:   lookupTimeout,
		LookupCacheSize: cacheSize,

		AlertThreshold: threshold,

		SMTPEnabled: smtpEnabled,
		SMTPHost:    smtpHost,
		SMTPPort:    smtpPort,
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		SMTPFrom:    envOrDefault("SMTP_FROM", os.Getenv("SMTP_USER")),

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaNotifyTopic: envOrDefault("KAFKA_NOTIFY_TOPIC", "seismicguard-notifications"),

		JWTSecret:  envOrDefault("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL: sessionTTL,

		UserDBDriver: envOrDefault("USERDB_DRIVER", "sqlite"),
		UserDBDSN:    envOrDefault("USERDB_DSN", "seismicguard_users.db"),

		AdminUser: envOrDefault("ADMIN_USER", "admin"),
		AdminPass: envOrDefault("ADMIN_PASS", "admin123"),

		KnowledgeConfig: os.Getenv("KNOWLEDGE_CONFIG"),

		DashboardURL: envOrDefault("DASHBOARD_URL", "http://localhost:8080"),
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.AlertThreshold <= 0 {
		return nil, errors.New("ALERT_THRESHOLD must be positive")
	}
	if cfg.SMTPEnabled && cfg.SMTPHost == "" {
		return nil, errors.New("SMTP_ENABLED is true but SMTP_HOST is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	switch cfg.UserDBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported USERDB_DRIVER %q", cfg.UserDBDriver)
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
