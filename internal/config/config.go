// internal/config/config.go
//
// This package handles configuration and the karsaz home directory.
// The home directory holds config.yaml, an optional .env, logs/ and state/.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// HomeDirName is the directory created under $HOME when KARSAZ_HOME is unset.
	HomeDirName = ".karsaz"

	// DefaultBaseURL is the Didar CRM API host.
	DefaultBaseURL = "https://app.didar.me"

	StoreBackendFile  = "file"
	StoreBackendRedis = "redis"

	defaultTimeout   = 15 * time.Second
	defaultStorePath = "state/session.yaml"
	defaultRedisKey  = "karsaz:session"
	defaultLogLevel  = "info"
)

const defaultConfigYAML = `# karsaz configuration
version: 1

service:
  base_url: https://app.didar.me
  # Request timeout. 0 keeps the transport default.
  timeout: 15s

# Where the session token and selected company are kept between runs.
store:
  backend: file
  path: state/session.yaml
  # backend: redis
  # redis:
  #   addr: 127.0.0.1:6379
  #   key: karsaz:session

# Optional OTLP/gRPC trace export.
telemetry:
  otlp_endpoint: ""
  insecure: false

log:
  level: info
`

// ServiceConfig points the client at the remote CRM.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout,omitempty"`
}

// RedisConfig is used when store.backend is redis.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Key      string `yaml:"key,omitempty"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// TelemetryConfig enables trace export when an endpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
}

// LogConfig controls the structured log level.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version   int             `yaml:"version"`
	Service   ServiceConfig   `yaml:"service"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// Config holds the runtime configuration for karsaz.
type Config struct {
	// HomeDir is $KARSAZ_HOME or $HOME/.karsaz
	HomeDir string

	File FileConfig
}

// ResolveHomeDir returns the directory karsaz keeps its files in.
func ResolveHomeDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("KARSAZ_HOME")); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, HomeDirName), nil
}

// InitHomeDir creates the karsaz directory structure.
//
// Structure created:
// <home>/
// ├── config.yaml
// ├── logs/     <- journey.log and karsaz.log
// └── state/    <- file credential store
func InitHomeDir(homeDir string) error {
	dirs := []string{
		filepath.Join(homeDir, "logs"),
		filepath.Join(homeDir, "state"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return ensureConfigFile(filepath.Join(homeDir, "config.yaml"))
}

// Load reads <home>/.env and <home>/config.yaml, then applies environment overrides.
func Load(homeDir string) (*Config, error) {
	// .env never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(homeDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	cfg := &Config{
		HomeDir: homeDir,
		File:    defaultFileConfig(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.File.applyEnvOverrides()
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ConfigPath returns the on-disk location for config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.HomeDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.HomeDir, "logs")
}

// JourneyLogPath is the logbook shown in the TUI.
func (c *Config) JourneyLogPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// StorePath returns the absolute path of the file credential store.
func (c *Config) StorePath() string {
	return resolvePath(c.HomeDir, c.File.Store.Path)
}

// BaseURL returns the CRM base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return c.File.Service.BaseURL
}

// Timeout parses service.timeout. Zero means no client-side timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.File.Service.Timeout)
	if err != nil || d < 0 {
		return defaultTimeout
	}
	return d
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultFileConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.File = parsed
	return nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		Service: ServiceConfig{
			BaseURL: DefaultBaseURL,
			Timeout: defaultTimeout.String(),
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
			Path:    defaultStorePath,
			Redis:   RedisConfig{Key: defaultRedisKey},
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

func (fc *FileConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("KARSAZ_BASE_URL")); value != "" {
		fc.Service.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("KARSAZ_TIMEOUT")); value != "" {
		fc.Service.Timeout = value
	}
	if value := strings.TrimSpace(os.Getenv("KARSAZ_STORE")); value != "" {
		fc.Store.Backend = value
	}
	if value := strings.TrimSpace(os.Getenv("KARSAZ_REDIS_ADDR")); value != "" {
		fc.Store.Redis.Addr = value
	}
	if value := os.Getenv("KARSAZ_REDIS_PASSWORD"); value != "" {
		fc.Store.Redis.Password = value
	}
	if value := strings.TrimSpace(os.Getenv("KARSAZ_REDIS_DB")); value != "" {
		if db, err := strconv.Atoi(value); err == nil {
			fc.Store.Redis.DB = db
		}
	}
	if value := strings.TrimSpace(os.Getenv("KARSAZ_LOG_LEVEL")); value != "" {
		fc.Log.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		fc.Telemetry.OTLPEndpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if insecure, err := strconv.ParseBool(value); err == nil {
			fc.Telemetry.Insecure = insecure
		}
	}
}

func (fc *FileConfig) normalize() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	fc.Service.BaseURL = strings.TrimRight(strings.TrimSpace(fc.Service.BaseURL), "/")
	if fc.Service.BaseURL == "" {
		fc.Service.BaseURL = DefaultBaseURL
	}
	fc.Service.Timeout = strings.TrimSpace(fc.Service.Timeout)
	if fc.Service.Timeout == "" {
		fc.Service.Timeout = defaultTimeout.String()
	}
	fc.Store.Backend = strings.ToLower(strings.TrimSpace(fc.Store.Backend))
	if fc.Store.Backend == "" {
		fc.Store.Backend = StoreBackendFile
	}
	fc.Store.Path = strings.TrimSpace(fc.Store.Path)
	if fc.Store.Path == "" {
		fc.Store.Path = defaultStorePath
	}
	fc.Store.Redis.Addr = strings.TrimSpace(fc.Store.Redis.Addr)
	fc.Store.Redis.Key = strings.TrimSpace(fc.Store.Redis.Key)
	if fc.Store.Redis.Key == "" {
		fc.Store.Redis.Key = defaultRedisKey
	}
	fc.Log.Level = strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if fc.Log.Level == "" {
		fc.Log.Level = defaultLogLevel
	}
	fc.Telemetry.OTLPEndpoint = strings.TrimSpace(fc.Telemetry.OTLPEndpoint)
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.HasPrefix(fc.Service.BaseURL, "http://") && !strings.HasPrefix(fc.Service.BaseURL, "https://") {
		return fmt.Errorf("service.base_url must start with http:// or https://")
	}
	if d, err := time.ParseDuration(fc.Service.Timeout); err != nil || d < 0 {
		return fmt.Errorf("service.timeout %q is not a valid duration", fc.Service.Timeout)
	}
	switch fc.Store.Backend {
	case StoreBackendFile:
	case StoreBackendRedis:
		if fc.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'file' or 'redis'")
	}
	switch fc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o600)
}
