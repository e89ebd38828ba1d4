package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"transcript-stack/internal/models"
)

type Config struct {
	AI         AIConfig         `yaml:"ai"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Inbox      InboxConfig      `yaml:"inbox"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Email      EmailConfig      `yaml:"email"`
	Digest     DigestConfig     `yaml:"digest"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AIConfig struct {
	GeminiAPIKey  string   `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiAPIKeys []string `yaml:"gemini_api_keys" env:"GEMINI_API_KEYS"`
	Model         string   `yaml:"model"`
	// TimeoutSeconds bounds a single model call; 0 disables the limit
	TimeoutSeconds  int   `yaml:"timeout_seconds"`
	FormatMaxTokens int32 `yaml:"format_max_tokens"`
}

// APIKeys returns every configured key, single key first, without duplicates
func (c AIConfig) APIKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range append([]string{c.GeminiAPIKey}, c.GeminiAPIKeys...) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver         string `yaml:"driver"`
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	ConnMaxLifeMin int    `yaml:"conn_max_lifetime_minutes"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr" env:"TRANSCRIBER_ADDR"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	BodyLimitMB         int    `yaml:"body_limit_mb"`
}

type InboxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	DataDir       string `yaml:"data_dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	FormatStyle   string `yaml:"format_style"`
}

type YouTubeConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile    string `yaml:"token_file"`
	Language     string `yaml:"language"`
}

type EmailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type DigestConfig struct {
	Schedule          string `yaml:"schedule"`
	BackfillLimit     int    `yaml:"backfill_limit"`
	RunOnStart        bool   `yaml:"run_on_start"`
	RunTimeoutMinutes int    `yaml:"run_timeout_minutes"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

// Load reads .env, then the YAML file named by CONFIG_FILE (default config.yaml).
// A missing default file is not an error; an explicitly named one must exist.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	explicit := configFile != ""
	if !explicit {
		configFile = "config.yaml"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		log.Printf("Warning: %s not found, using defaults and environment", configFile)
		data = nil
	}

	return Parse(data)
}

// Parse builds a Config from YAML, applies environment fallbacks and defaults, and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if len(c.AI.GeminiAPIKeys) == 0 {
		if keys := os.Getenv("GEMINI_API_KEYS"); keys != "" {
			c.AI.GeminiAPIKeys = strings.Split(keys, ",")
		}
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = os.Getenv("TRANSCRIBER_ADDR")
	}
	if c.YouTube.ClientID == "" {
		c.YouTube.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if c.YouTube.ClientSecret == "" {
		c.YouTube.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if c.Email.Username == "" {
		c.Email.Username = os.Getenv("EMAIL_USERNAME")
	}
	if c.Email.Password == "" {
		c.Email.Password = os.Getenv("EMAIL_PASSWORD")
	}
}

func (c *Config) applyDefaults() {
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 120
	}
	if c.AI.FormatMaxTokens == 0 {
		c.AI.FormatMaxTokens = 4096
	}

	if c.Storage.Driver == "" {
		if c.Storage.DatabaseURL != "" {
			c.Storage.Driver = DriverPostgres
		} else {
			c.Storage.Driver = DriverMemory
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 30
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		// formatting a long transcript can take minutes
		c.Server.WriteTimeoutSeconds = 300
	}
	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = 25
	}

	if c.Inbox.DataDir == "" {
		c.Inbox.DataDir = "data"
	}
	if c.Inbox.MaxConcurrent == 0 {
		c.Inbox.MaxConcurrent = 2
	}

	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.YouTube.Language == "" {
		c.YouTube.Language = "en"
	}

	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}

	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 0 8 * * *" // Daily at 8 AM
	}
	if c.Digest.BackfillLimit == 0 {
		c.Digest.BackfillLimit = 50
	}
	if c.Digest.RunTimeoutMinutes == 0 {
		c.Digest.RunTimeoutMinutes = 30
	}

	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
}

func (c *Config) validate() error {
	if len(c.AI.APIKeys()) == 0 {
		return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.AI.TimeoutSeconds < 0 {
		return fmt.Errorf("ai.timeout_seconds must not be negative")
	}
	if c.Digest.RunTimeoutMinutes < 0 {
		return fmt.Errorf("digest.run_timeout_minutes must not be negative")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres driver (set DATABASE_URL or storage.database_url)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q (use %q or %q)", c.Storage.Driver, DriverPostgres, DriverMemory)
	}

	if c.Inbox.Enabled {
		if c.Inbox.Dir == "" {
			return fmt.Errorf("inbox.dir is required when the inbox is enabled")
		}
		if c.Inbox.MaxConcurrent < 1 {
			return fmt.Errorf("inbox.max_concurrent must be at least 1")
		}
		if _, err := models.ParseDocumentStyle(c.Inbox.FormatStyle); err != nil {
			return fmt.Errorf("inbox.format_style: %w", err)
		}
	}

	if c.YouTube.Enabled {
		if c.YouTube.ClientID == "" {
			return fmt.Errorf("YouTube client ID is required (set GOOGLE_CLIENT_ID or youtube.client_id)")
		}
		if c.YouTube.ClientSecret == "" {
			return fmt.Errorf("YouTube client secret is required (set GOOGLE_CLIENT_SECRET or youtube.client_secret)")
		}
	}

	if c.Email.Enabled {
		if c.Email.SMTPServer == "" {
			return fmt.Errorf("email.smtp_server is required when email is enabled")
		}
		if c.Email.Username == "" {
			return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
		}
		if c.Email.Password == "" {
			return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
		}
		if c.Email.FromEmail == "" || c.Email.ToEmail == "" {
			return fmt.Errorf("email.from_email and email.to_email are required when email is enabled")
		}
	}

	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.Digest.Schedule); err != nil {
		return fmt.Errorf("invalid digest.schedule %q: %w", c.Digest.Schedule, err)
	}

	return nil
}
