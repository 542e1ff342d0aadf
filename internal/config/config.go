package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Whisper struct {
		Model    string `yaml:"model"`
		Language string `yaml:"language"`
		Python   string `yaml:"python"`
		Threads  int    `yaml:"threads"`
		Device   string `yaml:"device"`
	} `yaml:"whisper"`

	FFmpeg struct {
		Binary string `yaml:"binary"`
	} `yaml:"ffmpeg"`

	Queue struct {
		// MaxDepth bounds pending jobs; 0 means unbounded
		MaxDepth   int           `yaml:"max_depth"`
		DrainDelay time.Duration `yaml:"drain_delay"`
	} `yaml:"queue"`

	Storage struct {
		UploadDir string `yaml:"upload_dir"`
		TempDir   string `yaml:"temp_dir"`
		VideosDir string `yaml:"videos_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Compression struct {
		Enabled      bool   `yaml:"enabled"`
		Resolution   int    `yaml:"resolution"`
		VideoBitrate string `yaml:"video_bitrate"`
		AudioBitrate string `yaml:"audio_bitrate"`
	} `yaml:"compression"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 3001

	cfg.Whisper.Model = "small"
	cfg.Whisper.Language = "en"
	cfg.Whisper.Python = "python"

	cfg.FFmpeg.Binary = "ffmpeg"

	cfg.Queue.DrainDelay = time.Second

	cfg.Storage.UploadDir = "uploads"
	cfg.Storage.TempDir = "temp"
	cfg.Storage.VideosDir = "videos"
	cfg.Storage.Database = "transly.db"

	cfg.Compression.Enabled = true
	cfg.Compression.Resolution = 720
	cfg.Compression.VideoBitrate = "1000k"
	cfg.Compression.AudioBitrate = "128k"

	cfg.Cleanup.IntervalMinutes = 60
	cfg.Cleanup.MaxAgeHours = 24

	cfg.GoogleDrive.CredentialsFile = "config/credentials.json"
	cfg.GoogleDrive.TokenFile = "config/token.json"
	cfg.GoogleDrive.FolderName = "Transly"

	cfg.Limits.MaxFileSizeMB = 500

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	return cfg
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Queue.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("queue.max_depth must not be negative"))
	}
	if c.Queue.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("queue.drain_delay must not be negative"))
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_file_size_mb must be positive"))
	}
	if c.Cleanup.IntervalMinutes <= 0 || c.Cleanup.MaxAgeHours <= 0 {
		errs = append(errs, fmt.Errorf("cleanup interval and max age must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Storage.Database == "" {
		errs = append(errs, fmt.Errorf("storage.database is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxFileSize returns the upload limit in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
