// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default endpoints used when the environment does not override them.
const (
	DefaultTokenURL     = "https://mondotv-api.herokuapp.com/api/v1/session/token"
	DefaultRolesURL     = "https://mondotv-api.herokuapp.com/api/v1/session/roles"
	DefaultInferenceURL = "http://localhost:11434/api/generate"
	DefaultModel        = "deepseek-r1:7b"

	// MemoryDBPath as DB_PATH keeps sessions in process memory.
	MemoryDBPath = ":memory:"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	PublicURL       string
	DBPath          string
	DatabaseURL     string // when set, sessions are stored in PostgreSQL instead of DB_PATH
	SiteDir         string // "" serves the embedded sample site
	AllowedOrigins  []string
	MetricsEnabled  bool
	RecordRetention time.Duration
	SweepInterval   time.Duration
	Gate            GateConfig
	Auth            AuthConfig
	Chat            ChatConfig
}

// GateConfig controls the session gate.
type GateConfig struct {
	BasePath       string
	SessionTTL     time.Duration
	AllowedRoles   []string
	GuardPrefixes  []string
	GuardNavLabels []string
	LoginRate      float64 // login attempts per second per device
	LoginBurst     int
}

// AuthConfig points at the remote token and roles API.
type AuthConfig struct {
	TokenURL string
	RolesURL string
	Timeout  time.Duration
}

// ChatConfig controls the chat widget and its inference backend.
type ChatConfig struct {
	InferenceURL   string
	Model          string
	PoolsFile      string
	RequireSession bool
	BotName        string
	UserName       string
	IdleTimeout    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		PublicURL:       getEnv("PUBLIC_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/docgate.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SiteDir:         getEnv("SITE_DIR", ""),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		RecordRetention: getEnvDuration("RECORD_RETENTION", 7*24*time.Hour),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		Gate: GateConfig{
			BasePath:       NormalizeBasePath(getEnv("BASE_PATH", "")),
			SessionTTL:     getEnvDuration("SESSION_TTL", time.Hour),
			AllowedRoles:   getEnvList("ALLOWED_ROLES", []string{"admin", "dev"}),
			GuardPrefixes:  getEnvList("GUARDED_PREFIXES", []string{"/internal/"}),
			GuardNavLabels: getEnvList("GUARDED_NAV_LABELS", []string{"Dev Guide Internal"}),
			LoginRate:      getEnvFloat("LOGIN_RATE", 0.5),
			LoginBurst:     getEnvInt("LOGIN_BURST", 5),
		},
		Auth: AuthConfig{
			TokenURL: getEnv("AUTH_TOKEN_URL", DefaultTokenURL),
			RolesURL: getEnv("AUTH_ROLES_URL", DefaultRolesURL),
			Timeout:  getEnvDuration("AUTH_TIMEOUT", 15*time.Second),
		},
		Chat: ChatConfig{
			InferenceURL:   getEnv("INFERENCE_URL", DefaultInferenceURL),
			Model:          getEnv("INFERENCE_MODEL", DefaultModel),
			PoolsFile:      getEnv("CHAT_POOLS_FILE", ""),
			RequireSession: getEnvBool("CHAT_REQUIRE_SESSION", true),
			BotName:        getEnv("CHAT_BOT_NAME", "MondoBot"),
			UserName:       getEnv("CHAT_USER_NAME", "Yo"),
			IdleTimeout:    getEnvDuration("CHAT_IDLE_TIMEOUT", 2*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Gate.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.RecordRetention < c.Gate.SessionTTL {
		return fmt.Errorf("RECORD_RETENTION must be >= SESSION_TTL")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.Auth.TokenURL == "" || c.Auth.RolesURL == "" {
		return fmt.Errorf("AUTH_TOKEN_URL and AUTH_ROLES_URL cannot be empty")
	}
	if c.Chat.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL cannot be empty")
	}
	if c.Gate.LoginRate <= 0 || c.Gate.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE and LOGIN_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.PublicURL == "" ||
		strings.Contains(c.PublicURL, "localhost") ||
		strings.Contains(c.PublicURL, "127.0.0.1")
}

// LoginPath is the single login route under the base path.
func (g GateConfig) LoginPath() string {
	return g.BasePath + "/login/"
}

// HomePath is the default redirect target after login.
func (g GateConfig) HomePath() string {
	return g.BasePath + "/"
}

// NormalizeBasePath turns "docs", "/docs/" and "/docs" into "/docs", and "/" into "".
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("90m") or plain seconds ("3600").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
