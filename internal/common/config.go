package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the default config file looked up in the working directory.
const ConfigFileName = "docintake.yaml"

// Config holds all application configuration
type Config struct {
	Production bool           `koanf:"production"`
	Server     ServerConfig   `koanf:"server"`
	Database   DatabaseConfig `koanf:"database"`
	Blob       BlobConfig     `koanf:"blob"`
	OCR        OCRConfig      `koanf:"ocr"`
	LLM        LLMConfig      `koanf:"llm"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	PublicURL   string `koanf:"public_url"`
	CORSOrigin  string `koanf:"cors_origin"`
	MetricsPath string `koanf:"metrics_path"`
}

// DatabaseConfig holds run-record store configuration
type DatabaseConfig struct {
	Driver           string        `koanf:"driver"` // "sqlite" | "postgres"
	DSN              string        `koanf:"dsn"`
	MaxConns         int32         `koanf:"max_conns"`
	MinConns         int32         `koanf:"min_conns"`
	MaxConnLifetime  time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `koanf:"max_conn_idle_time"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

// BlobConfig holds object store configuration
type BlobConfig struct {
	RootDir       string        `koanf:"root_dir"`
	SigningSecret string        `koanf:"signing_secret"`
	DownloadTTL   time.Duration `koanf:"download_ttl"`
	UploadTTL     time.Duration `koanf:"upload_ttl"`
	MaxFileSizeMB int64         `koanf:"max_file_size_mb"`
}

// OCRConfig holds OCR service configuration
type OCRConfig struct {
	Endpoint     string        `koanf:"endpoint"`
	APIKey       string        `koanf:"api_key"`
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxWait      time.Duration `koanf:"max_wait"`
	MaxChars     int           `koanf:"max_chars"`
	Timeout      time.Duration `koanf:"timeout"`
}

// LLMConfig holds text-generation service configuration
type LLMConfig struct {
	Endpoint    string        `koanf:"endpoint"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float32       `koanf:"temperature"`
	TopP        float32       `koanf:"top_p"`
	Timeout     time.Duration `koanf:"timeout"`
}

// LoadConfig layers defaults, an optional YAML file, and DOCINTAKE_ env vars.
// Env keys use underscores for nesting: DOCINTAKE_SERVER__ADDR -> server.addr.
func LoadConfig(cfgFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(ConfigFileName); err == nil {
			cfgFile = ConfigFileName
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	// DOCINTAKE_SERVER__ADDR -> server.addr
	if err := k.Load(env.Provider("DOCINTAKE_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "DOCINTAKE_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"production":          false,
		"server.addr":         ":8080",
		"server.public_url":   "http://localhost:8080",
		"server.cors_origin":  "*",
		"server.metrics_path": "/metrics",

		"database.driver":             "sqlite",
		"database.dsn":                "file:docintake.db?_pragma=busy_timeout(5000)",
		"database.max_conns":          20,
		"database.min_conns":          5,
		"database.max_conn_lifetime":  30 * time.Minute,
		"database.max_conn_idle_time": 5 * time.Minute,
		"database.dial_timeout":       3 * time.Second,

		"blob.root_dir":         "./data/blobs",
		"blob.signing_secret":   "",
		"blob.download_ttl":     time.Hour,
		"blob.upload_ttl":       15 * time.Minute,
		"blob.max_file_size_mb": 50,

		"ocr.poll_interval": 2 * time.Second,
		"ocr.max_wait":      60 * time.Second,
		"ocr.max_chars":     50000,
		"ocr.timeout":       30 * time.Second,

		"llm.model":       "claude-sonnet-latest",
		"llm.max_tokens":  8000,
		"llm.temperature": 0.3,
		"llm.top_p":       0.95,
		"llm.timeout":     120 * time.Second,
	}
}
