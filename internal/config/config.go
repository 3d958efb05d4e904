// Package config loads service configuration from config.yaml and
// ROOMSTAGE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore, e.g. ROOMSTAGE_PROVIDER__API_KEY.
const EnvPrefix = "ROOMSTAGE_"

// AssetsRoute is where the server exposes memory and file backed assets.
const AssetsRoute = "/assets"

// DefaultPath is read when no explicit path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Auth      AuthConfig      `koanf:"auth"`
	Provider  ProviderConfig  `koanf:"provider"`
	Assets    AssetsConfig    `koanf:"assets"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	// PublicURL is the externally reachable origin of this server. Defaults
	// to http://localhost:{port}.
	PublicURL string `koanf:"public_url"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Audience  string `koanf:"audience"`
}

// ProviderConfig configures the Runware client. A missing APIKey is not a
// load error; it is reported on each staging request instead.
type ProviderConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	Timeout           time.Duration `koanf:"timeout"`
	Model             string        `koanf:"model"`
	Width             int           `koanf:"width"`
	Height            int           `koanf:"height"`
	Steps             int           `koanf:"steps"`
	CFGScale          float64       `koanf:"cfg_scale"`
	Strength          float64       `koanf:"strength"`
	Scheduler         string        `koanf:"scheduler"`
	OutputFormat      string        `koanf:"output_format"`
	PromptTokenBudget int           `koanf:"prompt_token_budget"`
}

type AssetsConfig struct {
	Type              string     `koanf:"type"` // s3, file, memory
	Bucket            string     `koanf:"bucket"`
	Region            string     `koanf:"region"`
	Endpoint          string     `koanf:"endpoint"`
	PathStyle         bool       `koanf:"path_style"`
	PublicBaseURL     string     `koanf:"public_base_url"`
	File              FileConfig `koanf:"file"`
	MaxDownloadBytes  int64      `koanf:"max_download_bytes"`
	AllowPrivateHosts bool       `koanf:"allow_private_hosts"`
}

type FileConfig struct {
	Root string `koanf:"root"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // memory, sqlite, postgres
	Database DatabaseConfig `koanf:"database"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, pgx
	DSN    string `koanf:"dsn"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaults = map[string]any{
	"server.port":               8080,
	"server.request_timeout":    "120s",
	"server.max_body_bytes":     32 << 20,
	"log.level":                 "info",
	"auth.audience":             "authenticated",
	"provider.base_url":         "https://api.runware.ai/v1",
	"provider.timeout":          "90s",
	"provider.model":            "runware:100@1",
	"provider.width":            1024,
	"provider.height":           1024,
	"provider.steps":            20,
	"provider.cfg_scale":        7.0,
	"provider.strength":         0.7,
	"provider.scheduler":        "FlowMatchEulerDiscreteScheduler",
	"provider.output_format":    "WEBP",
	"assets.type":               "memory",
	"assets.bucket":             "staged-images",
	"assets.max_download_bytes": 25 << 20,
	"storage.type":              "memory",
	"storage.database.driver":   "sqlite",
	"storage.database.dsn":      "roomstage.db",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), applies environment overrides
// and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Provider.APIKey = substituteEnvVars(cfg.Provider.APIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Assets.Type {
	case "memory", "file", "s3":
	default:
		return fmt.Errorf("assets.type: unsupported value %q", c.Assets.Type)
	}
	if c.Assets.Type == "file" && c.Assets.File.Root == "" {
		return errors.New("assets.file.root is required for the file asset store")
	}

	switch c.Storage.Type {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.type: unsupported value %q", c.Storage.Type)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range: %d", c.Server.Port)
	}
	return nil
}

// AssetsPublicBaseURL is the base of the URLs handed out for stored assets.
// The memory and file backends default to the server's own /assets route.
func (c *Config) AssetsPublicBaseURL() string {
	if c.Assets.PublicBaseURL != "" || c.Assets.Type == "s3" {
		return c.Assets.PublicBaseURL
	}
	base := c.Server.PublicURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	return strings.TrimSuffix(base, "/") + AssetsRoute
}

// DatabaseDriver returns the database/sql driver for the storage type.
func (c *Config) DatabaseDriver() string {
	if c.Storage.Type == "postgres" {
		return "pgx"
	}
	return c.Storage.Database.Driver
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
