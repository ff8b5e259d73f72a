// Package config loads the console backend's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Sessions  SessionConfig   `yaml:"sessions"`
	Extension ExtensionConfig `yaml:"extensions"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	BindAddress  string   `yaml:"bind_address"`
	EnableCORS   bool     `yaml:"enable_cors"`
	AllowOrigins []string `yaml:"allow_origins"`
	ReadTimeout  int      `yaml:"read_timeout_seconds"`
	WriteTimeout int      `yaml:"write_timeout_seconds"`
	IdleTimeout  int      `yaml:"idle_timeout_seconds"`
	BodyLimit    string   `yaml:"body_limit"`
}

// StorageConfig contains spool settings.
type StorageConfig struct {
	DataDirectory  string `yaml:"data_directory"`
	SpoolDirectory string `yaml:"spool_directory"`
}

// IngestConfig selects and configures the ingest transport.
type IngestConfig struct {
	// Transport is "http" or "s3".
	Transport string `yaml:"transport"`

	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// ExtensionConfig locates the extension state file.
type ExtensionConfig struct {
	StatePath string `yaml:"state_path"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "127.0.0.1",
			EnableCORS:   true,
			AllowOrigins: []string{"http://localhost:5173"},
			ReadTimeout:  60,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:  "./data",
			SpoolDirectory: "./data/spool",
		},
		Ingest: IngestConfig{
			Transport:      "http",
			Endpoint:       "http://localhost:9200/_ingest",
			TimeoutSeconds: 300,
		},
		Sessions: SessionConfig{
			TTLMinutes: 30,
		},
		Extension: ExtensionConfig{
			StatePath: "./data/extensions.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, merged over defaults. A missing file is not
// an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at an awkward time.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Ingest.Transport {
	case "http":
		if c.Ingest.Endpoint == "" {
			return fmt.Errorf("ingest.endpoint is required for the http transport")
		}
	case "s3":
		if c.Ingest.S3Bucket == "" {
			return fmt.Errorf("ingest.s3_bucket is required for the s3 transport")
		}
	default:
		return fmt.Errorf("unknown ingest transport: %q", c.Ingest.Transport)
	}
	return nil
}

// ServerAddr returns the listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates the data directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.SpoolDirectory, filepath.Dir(c.Extension.StatePath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
