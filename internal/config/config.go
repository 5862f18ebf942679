// Package config handles reading and writing ~/.devmate/config.yaml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version int           `yaml:"version"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Voice   VoiceConfig   `yaml:"voice"`
}

// APIConfig points the client at a DevMate backend.
type APIConfig struct {
	Root           string `yaml:"root"`
	VoiceRoot      string `yaml:"voice_root"`      // derived from Root when empty
	RequestTimeout int    `yaml:"request_timeout"` // seconds, 0 = none
}

// StorageConfig controls where the session and conversation cache live.
type StorageConfig struct {
	Path string `yaml:"path"` // relative paths resolve against the home dir
}

// LogConfig controls the event log and diagnostic log.
type LogConfig struct {
	Events bool `yaml:"events"`
	Debug  bool `yaml:"debug"`
}

// VoiceConfig controls how audio sources are streamed.
type VoiceConfig struct {
	ChunkSize int `yaml:"chunk_size"` // bytes per binary frame
}

const configFile = "config.yaml"

// Environment overrides, applied on top of the yaml file.
const (
	EnvHome      = "DEVMATE_HOME"
	EnvAPIRoot   = "DEVMATE_API_ROOT"
	EnvVoiceRoot = "DEVMATE_VOICE_ROOT"
)

// HomeDir returns the directory holding config, storage and logs.
// DEVMATE_HOME wins over ~/.devmate.
func HomeDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".devmate"), nil
}

// ReadConfig reads config.yaml from dir.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir.
// Creates dir if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dir, configFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Load reads config.yaml from dir, falling back to defaults when the file is
// missing, then applies .env and environment overrides.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	// A missing .env is the common case.
	_ = godotenv.Load()

	if v := os.Getenv(EnvAPIRoot); v != "" {
		cfg.API.Root = v
	}
	if v := os.Getenv(EnvVoiceRoot); v != "" {
		cfg.API.VoiceRoot = v
	}

	if cfg.Voice.ChunkSize <= 0 {
		cfg.Voice.ChunkSize = DefaultConfig().Voice.ChunkSize
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultConfig().Storage.Path
	}

	return cfg, nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		API: APIConfig{
			Root:           "http://127.0.0.1:8000",
			RequestTimeout: 0,
		},
		Storage: StorageConfig{
			Path: "devmate.db",
		},
		Log: LogConfig{
			Events: true,
			Debug:  false,
		},
		Voice: VoiceConfig{
			ChunkSize: 16 * 1024,
		},
	}
}

// StoragePath resolves the storage path against dir.
func (c *Config) StoragePath(dir string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(dir, c.Storage.Path)
}

// VoiceURL returns the voice WebSocket endpoint. When voice_root is unset it
// is derived from the API root by swapping http(s) for ws(s).
func (c *Config) VoiceURL() (string, error) {
	root := c.API.VoiceRoot
	if root == "" {
		u, err := url.Parse(c.API.Root)
		if err != nil {
			return "", fmt.Errorf("parsing api root: %w", err)
		}
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		case "http":
			u.Scheme = "ws"
		default:
			return "", fmt.Errorf("unsupported api root scheme %q", u.Scheme)
		}
		root = u.String()
	}
	return strings.TrimRight(root, "/") + "/voice/ws", nil
}
