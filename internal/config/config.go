package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TENKVIEW_PORT.
const EnvPrefix = "TENKVIEW"

type Config struct {
	Host string
	Port int

	// Storage root holding uploads/ and artifacts/.
	DataDir string

	// Bearer token for /api routes. Empty disables auth.
	APIKey string

	LogLevel string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Extraction
	ExtractTimeout  time.Duration
	PreviewChars    int
	RiskTitleMaxLen int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8090,
		DataDir:         "./data",
		LogLevel:        "info",
		WorkerCount:     2,
		MaxQueueSize:    100,
		MaxUploadBytes:  16 << 20,
		JobTTL:          time.Hour,
		ExtractTimeout:  2 * time.Minute,
		PreviewChars:    1000,
		RiskTitleMaxLen: 250,
	}
}

// Load resolves configuration from defaults, an optional config file, the
// environment and command-line args, later sources winning.
func Load(args []string) (Config, error) {
	def := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("api_key", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("worker_count", def.WorkerCount)
	v.SetDefault("max_queue_size", def.MaxQueueSize)
	v.SetDefault("max_upload_bytes", def.MaxUploadBytes)
	v.SetDefault("job_ttl", def.JobTTL)
	v.SetDefault("extract_timeout", def.ExtractTimeout)
	v.SetDefault("preview_chars", def.PreviewChars)
	v.SetDefault("risk_title_max_len", def.RiskTitleMaxLen)

	fs := pflag.NewFlagSet("tenkview", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Optional config file (yaml, json or toml)")
	fs.String("host", def.Host, "HTTP listen host")
	fs.Int("port", def.Port, "HTTP listen port")
	fs.String("data-dir", def.DataDir, "Directory for uploads and extracted artifacts")
	fs.String("api-key", "", "Bearer token required on /api routes (empty disables auth)")
	fs.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int("worker-count", def.WorkerCount, "Background extraction workers")
	fs.Int("max-queue-size", def.MaxQueueSize, "Pending extraction jobs before uploads are refused")
	fs.Int64("max-upload-bytes", def.MaxUploadBytes, "Largest accepted upload in bytes")
	fs.Duration("job-ttl", def.JobTTL, "How long finished job status is kept")
	fs.Duration("extract-timeout", def.ExtractTimeout, "Upper bound on one filing's extraction")
	fs.Int("preview-chars", def.PreviewChars, "Preview length in characters")
	fs.Int("risk-title-max-len", def.RiskTitleMaxLen, "Longest block treated as a risk title")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	for _, key := range []string{
		"host", "port", "data_dir", "api_key", "log_level", "worker_count", "max_queue_size",
		"max_upload_bytes", "job_ttl", "extract_timeout", "preview_chars", "risk_title_max_len",
	} {
		_ = v.BindPFlag(key, fs.Lookup(strings.ReplaceAll(key, "_", "-")))
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	cfg := Config{
		Host:            v.GetString("host"),
		Port:            v.GetInt("port"),
		DataDir:         v.GetString("data_dir"),
		APIKey:          v.GetString("api_key"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		WorkerCount:     v.GetInt("worker_count"),
		MaxQueueSize:    v.GetInt("max_queue_size"),
		MaxUploadBytes:  v.GetInt64("max_upload_bytes"),
		JobTTL:          v.GetDuration("job_ttl"),
		ExtractTimeout:  v.GetDuration("extract_timeout"),
		PreviewChars:    v.GetInt("preview_chars"),
		RiskTitleMaxLen: v.GetInt("risk_title_max_len"),
	}
	return cfg, nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("worker_count must be positive"))
	}
	if c.MaxQueueSize <= 0 {
		errs = append(errs, errors.New("max_queue_size must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.JobTTL <= 0 {
		errs = append(errs, errors.New("job_ttl must be positive"))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, errors.New("extract_timeout must be positive"))
	}
	if c.PreviewChars <= 0 {
		errs = append(errs, errors.New("preview_chars must be positive"))
	}
	if c.RiskTitleMaxLen <= 0 {
		errs = append(errs, errors.New("risk_title_max_len must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	if l, ok := logLevels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

// Address returns the listen address as host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
