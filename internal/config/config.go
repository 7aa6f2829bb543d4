package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Source   SourceConfig   `yaml:"source"`
	Download DownloadConfig `yaml:"download"`
	Tools    ToolsConfig    `yaml:"tools"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host          string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port          int           `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	AllowedOrigin string        `yaml:"allowed_origin" envconfig:"CORS_ALLOWED_ORIGIN"`
	MaxUploadSize int64         `yaml:"max_upload_size" envconfig:"MAX_UPLOAD_SIZE"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	BasePath     string `yaml:"base_path" envconfig:"STORAGE_PATH"`
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`  // defaults to <base>/.tmp
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH"` // defaults to <base>/.data.db
	MaxFileSize  int64  `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	MinFreeSpace uint64 `yaml:"min_free_space" envconfig:"MIN_FREE_SPACE"`
}

// WorkerConfig holds ingestion pool configuration.
type WorkerConfig struct {
	Count int `yaml:"count" envconfig:"WORKER_COUNT"`
	// ShutdownTimeout bounds how long Stop waits for in-flight posts.
	// Zero waits until every worker returns.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"WORKER_SHUTDOWN_TIMEOUT"`
}

// SourceConfig holds remote board API configuration.
type SourceConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"SOURCE_BASE_URL"`
	APIKey    string        `yaml:"api_key" envconfig:"SOURCE_API_KEY"`
	UserID    string        `yaml:"user_id" envconfig:"SOURCE_USER_ID"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"SOURCE_TIMEOUT"`
	UserAgent string        `yaml:"user_agent" envconfig:"SOURCE_USER_AGENT"`
}

// DownloadConfig holds content download configuration.
type DownloadConfig struct {
	HeaderTimeout    time.Duration `yaml:"header_timeout" envconfig:"DOWNLOAD_HEADER_TIMEOUT"`
	StallTimeout     time.Duration `yaml:"stall_timeout" envconfig:"DOWNLOAD_STALL_TIMEOUT"`
	ProgressInterval time.Duration `yaml:"progress_interval" envconfig:"DOWNLOAD_PROGRESS_INTERVAL"`
	UserAgent        string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	FFmpeg      string `yaml:"ffmpeg" envconfig:"FFMPEG_BIN"`
	FFprobe     string `yaml:"ffprobe" envconfig:"FFPROBE_BIN"`
	Vips        string `yaml:"vips" envconfig:"VIPS_BIN"`
	JPEGQuality int    `yaml:"jpeg_quality" envconfig:"JPEG_QUALITY"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // json or text
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Default returns the configuration used when neither a file nor the
// environment sets a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "localhost",
			Port:          34343,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  5 * time.Minute,
			AllowedOrigin: "https://rule34.xxx",
			MaxUploadSize: 256 << 20,
		},
		Storage: StorageConfig{
			BasePath:     "./r34",
			MaxFileSize:  2 << 30,
			MinFreeSpace: 512 << 20,
		},
		Worker: WorkerConfig{
			Count: 10,
		},
		Source: SourceConfig{
			BaseURL:   "https://api.rule34.xxx/index.php",
			Timeout:   60 * time.Second,
			UserAgent: defaultUserAgent,
		},
		Download: DownloadConfig{
			HeaderTimeout:    30 * time.Second,
			StallTimeout:     60 * time.Second,
			ProgressInterval: 10 * time.Second,
			UserAgent:        defaultUserAgent,
		},
		Tools: ToolsConfig{
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			Vips:        "vips",
			JPEGQuality: 90,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, then the YAML file, then
// environment variables. Later sources override earlier ones.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyDerived fills paths that default relative to the base path.
func (c *Config) applyDerived() {
	if c.Storage.TempPath == "" && c.Storage.BasePath != "" {
		c.Storage.TempPath = filepath.Join(c.Storage.BasePath, ".tmp")
	}
	if c.Storage.DatabasePath == "" && c.Storage.BasePath != "" {
		c.Storage.DatabasePath = filepath.Join(c.Storage.BasePath, ".data.db")
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.ShutdownTimeout < 0 {
		return fmt.Errorf("WORKER_SHUTDOWN_TIMEOUT cannot be negative")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL is required")
	}
	if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SOURCE_BASE_URL must be an absolute URL")
	}
	if c.Tools.JPEGQuality < 1 || c.Tools.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.Tools.JPEGQuality)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel parses the configured level.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.Level, err)
	}
	return level, nil
}
