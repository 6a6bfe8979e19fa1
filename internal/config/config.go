package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the settings of a nanotail server.
type Config struct {
	Addr           string
	LogDir         string
	WebDir         string
	DefaultCount   int // used when a request does not specify count
	ChunkSize      int
	RequestTimeout time.Duration
	LogLevel       slog.Level
	Gzip           bool
}

const (
	defaultConfigPath     = "~/.config/nanotail/config.toml"
	defaultAddr           = ":3000"
	defaultLogDir         = "/var/log"
	defaultCount          = 1000
	defaultChunkSize      = 64 * 1024
	defaultRequestTimeout = 30 * time.Second
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:           defaultAddr,
		LogDir:         defaultLogDir,
		DefaultCount:   defaultCount,
		ChunkSize:      defaultChunkSize,
		RequestTimeout: defaultRequestTimeout,
		LogLevel:       slog.LevelInfo,
		Gzip:           true,
	}
}

// Load reads the config at path, falling back to defaults when the file is missing.
// An empty path selects ~/.config/nanotail/config.toml.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Addr           string `toml:"addr"`
		LogDir         string `toml:"log_dir"`
		WebDir         string `toml:"web_dir"`
		DefaultCount   *int   `toml:"default_count"`
		ChunkSize      *int   `toml:"chunk_size"`
		RequestTimeout string `toml:"request_timeout"`
		LogLevel       string `toml:"log_level"`
		Gzip           *bool  `toml:"gzip"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.Addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		if cfg.LogDir, err = expandPath(v); err != nil {
			return Config{}, fmt.Errorf("log_dir: %w", err)
		}
	}
	if v := strings.TrimSpace(raw.WebDir); v != "" {
		if cfg.WebDir, err = expandPath(v); err != nil {
			return Config{}, fmt.Errorf("web_dir: %w", err)
		}
	}
	if raw.DefaultCount != nil {
		if *raw.DefaultCount <= 0 {
			return Config{}, fmt.Errorf("default_count must be positive, got %d", *raw.DefaultCount)
		}
		cfg.DefaultCount = *raw.DefaultCount
	}
	if raw.ChunkSize != nil {
		if *raw.ChunkSize <= 0 {
			return Config{}, fmt.Errorf("chunk_size must be positive, got %d", *raw.ChunkSize)
		}
		cfg.ChunkSize = *raw.ChunkSize
	}
	if v := strings.TrimSpace(raw.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("log_level: %w", err)
		}
	}
	if raw.Gzip != nil {
		cfg.Gzip = *raw.Gzip
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
