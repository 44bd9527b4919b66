// Package config reads and writes the llmspub TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for llmspub.
type Config struct {
	OwnerID  string `toml:"owner_id"`
	SiteRoot string `toml:"site_root"`
	LogDir   string `toml:"log_dir"`

	Database  DatabaseConfig  `toml:"database"`
	Generator GeneratorConfig `toml:"generator"`
	Lock      LockConfig      `toml:"lock"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Mirror    MirrorConfig    `toml:"mirror"`
	Server    ServerConfig    `toml:"server"`
}

// DatabaseConfig selects the history/schedule store backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// GeneratorConfig points at the external content-generation service.
type GeneratorConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key,omitempty"` // overridden by LLMSPUB_API_KEY
	BatchSize int    `toml:"batch_size,omitempty"`
}

// LockConfig tunes the publish lock. Zero values mean package defaults.
type LockConfig struct {
	Path         string `toml:"path,omitempty"` // defaults to <site_root>/.llmspub.lock
	MaxWaitSec   int    `toml:"max_wait_sec,omitempty"`
	StaleSec     int    `toml:"stale_sec,omitempty"`
	PollMillisec int    `toml:"poll_millisec,omitempty"`
}

// ScheduleConfig holds the scheduler's runtime settings. Per-owner
// frequency and day settings live in the database, not here.
type ScheduleConfig struct {
	TickIntervalSec int  `toml:"tick_interval_sec,omitempty"` // defaults to 60
	AutoBackup      bool `toml:"auto_backup"`
	RetryDelaySec   int  `toml:"retry_delay_sec,omitempty"`
}

// MirrorConfig describes the optional off-host backup mirror.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "none", "filesystem", or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr     string `toml:"addr,omitempty"` // defaults to ":8080"
	APIToken string `toml:"api_token,omitempty"`
}

// NewConfig creates a Config with the provided values and sensible defaults.
func NewConfig(ownerID, siteRoot, baseDir string) *Config {
	return &Config{
		OwnerID:  ownerID,
		SiteRoot: siteRoot,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Schedule: ScheduleConfig{
			AutoBackup: true,
		},
		Mirror: MirrorConfig{Type: "none"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path. It refuses to
// overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
