// Package config provides configuration management for Mycelium.
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration files (./config.yaml, ./configs/config.yaml, ~/.mycelium/config.yaml, /etc/mycelium/config.yaml)
//  3. .env files
//  4. Environment variables (MYC_ prefix)
//
// # Usage Example
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Storage driver: %s\n", cfg.Storage.Driver)
//
// # Environment Variables
//
// Use the MYC_ prefix and underscores for nested keys:
//   - MYC_SERVER_PORT=8095
//   - MYC_STORAGE_DRIVER=sqlite
//   - MYC_ENGINE_DEFAULT_CONFORMANCE=strict
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for Mycelium.
type Config struct {
	// Server contains HTTP server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage selects and configures the persistence backend
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Engine contains integration engine settings
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`

	// Blob configures graph snapshot archiving
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Logging contains logging settings
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Audit configures the JSONL conformance audit trail
	Audit AuditConfig `mapstructure:"audit" yaml:"audit"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Security contains authentication and rate limiting settings
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	TLSEnabled      bool          `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCert         string        `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key" yaml:"tls_key"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres
	Driver string `mapstructure:"driver" yaml:"driver"`

	// Path is the SQLite database file
	Path string `mapstructure:"path" yaml:"path"`

	// DSN is the PostgreSQL connection string
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// MaxOpenConns bounds the SQL connection pool
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// EngineConfig contains integration engine settings.
type EngineConfig struct {
	// DefaultConformance applies to spores that do not declare a level
	DefaultConformance string `mapstructure:"default_conformance" yaml:"default_conformance"`

	// Namespaces are the IRI prefixes patches may use at moderate and strict levels
	Namespaces []string `mapstructure:"namespaces" yaml:"namespaces"`

	// LockTimeout bounds how long an integration waits for a target lock (0 waits forever)
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// CheckConformance runs graph conformance rules after each integration
	CheckConformance bool `mapstructure:"check_conformance" yaml:"check_conformance"`

	// ConformanceInterval sweeps every graph for conformance on a timer (0 disables)
	ConformanceInterval time.Duration `mapstructure:"conformance_interval" yaml:"conformance_interval"`
}

// BlobConfig configures where serialized graph snapshots are archived.
type BlobConfig struct {
	// Driver is one of none, fs, s3
	Driver string `mapstructure:"driver" yaml:"driver"`

	// Root is the filesystem archive directory
	Root string `mapstructure:"root" yaml:"root"`

	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style" yaml:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"-"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format" yaml:"format"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" yaml:"output"`
}

type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Path          string        `mapstructure:"path" yaml:"path"`
	BufferSize    int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// SecurityConfig contains security and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// AuthEnabled enables JWT and API key authentication
	AuthEnabled bool `mapstructure:"auth_enabled" yaml:"auth_enabled"`

	// JWTSecret is the secret key for signing JWT tokens
	JWTSecret string `mapstructure:"jwt_secret" yaml:"-"`

	// JWTExpiration is the JWT token expiration duration (default: 24h)
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" yaml:"jwt_expiration"`

	// APIKeyHashes are bcrypt hashes of accepted API keys, granted the writer role
	APIKeyHashes []string `mapstructure:"api_key_hashes" yaml:"-"`
}

var cfg *Config

// Load reads configuration from a file and environment variables.
// If cfgFile is empty, it searches for config.yaml in standard locations.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mycelium")
		v.AddConfigPath("/etc/mycelium")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			// An explicit but missing file falls back to defaults
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.MergeInConfig() // Ignore error if .env file doesn't exist

	v.SetEnvPrefix("MYC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c := &Config{}
	_ = v.Unmarshal(c)
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tls_enabled", false)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "./data/mycelium.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_open_conns", 10)

	v.SetDefault("engine.default_conformance", "moderate")
	v.SetDefault("engine.namespaces", []string{})
	v.SetDefault("engine.lock_timeout", "0s")
	v.SetDefault("engine.check_conformance", true)
	v.SetDefault("engine.conformance_interval", "0s")

	v.SetDefault("blob.driver", "none")
	v.SetDefault("blob.root", "./data/snapshots")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.path_style", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.path", "./logs/conformance-audit.jsonl")
	v.SetDefault("audit.buffer_size", 100)
	v.SetDefault("audit.flush_interval", "5s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("security.rate_limit", 100)
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.auth_enabled", false)
	v.SetDefault("security.jwt_secret", "change-me-in-production")
	v.SetDefault("security.jwt_expiration", "24h")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Storage.Driver {
	case "memory":
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for sqlite")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}

	switch cfg.Engine.DefaultConformance {
	case "relaxed", "moderate", "strict":
	default:
		return fmt.Errorf("unknown default conformance level: %q", cfg.Engine.DefaultConformance)
	}

	switch cfg.Blob.Driver {
	case "none", "":
	case "fs":
		if cfg.Blob.Root == "" {
			return fmt.Errorf("blob root is required for fs driver")
		}
	case "s3":
		if cfg.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob s3 bucket is required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver: %q", cfg.Blob.Driver)
	}

	if cfg.Security.AuthEnabled && cfg.Security.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required when auth is enabled")
	}

	return nil
}

// Get returns the configuration loaded by the last call to Load.
func Get() *Config {
	return cfg
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
