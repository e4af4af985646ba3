package models

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type CaptionConfig struct {
	PrimaryURL   string `yaml:"primary_url"`
	AlternateURL string `yaml:"alternate_url"`
	APIToken     string `yaml:"api_token"`
	TimeoutSec   int    `yaml:"timeout_sec"`
	LocalCommand string `yaml:"local_command"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	ServerAddr   string        `yaml:"server_addr"`
	DatabaseURL  string        `yaml:"database_url"`
	UploadDir    string        `yaml:"upload_dir"`
	ThumbnailDir string        `yaml:"thumbnail_dir"`
	Caption      CaptionConfig `yaml:"caption"`
	Log          LogConfig     `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CAPTION_API_TOKEN"); v != "" {
		cfg.Caption.APIToken = v
	}

	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "data/uploads"
	}
	if cfg.ThumbnailDir == "" {
		cfg.ThumbnailDir = "data/thumbnails"
	}
	if cfg.Caption.TimeoutSec <= 0 {
		cfg.Caption.TimeoutSec = 30
	}
	return &cfg, nil
}

// Timeout returns the per-attempt timeout for remote caption calls.
func (c CaptionConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}
