package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	UploadDir      string        `mapstructure:"upload_dir"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb"`
	ProfilerEngine string        `mapstructure:"profiler_engine"`
	Workers        int           `mapstructure:"workers"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	JobDB          string        `mapstructure:"job_db"`
	DuckDBThreads  int           `mapstructure:"duckdb_threads"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"host":            "0.0.0.0",
	"port":            5000,
	"upload_dir":      "uploads",
	"max_upload_mb":   32,
	"profiler_engine": string(domain.EngineNative),
	"workers":         4,
	"job_timeout":     "10m",
	"job_db":          ":memory:",
	"duckdb_threads":  4,
	"log_level":       "info",
	"log_format":      LogFormatJSON,
}

// Load resolves the configuration from defaults, an optional config file and
// the environment, in increasing order of precedence. A .env file in the
// working directory is loaded into the environment first when present.
// Files ending in .ini are read with every section flattened into one key
// space; other extensions go through viper.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if cfgFile != "" {
		if err := readConfigFile(v, cfgFile); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".ini") {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	values := make(map[string]any)
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			values[strings.ToLower(key.Name())] = key.String()
		}
	}
	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir must not be empty"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB))
	}
	if _, err := domain.ParseEngineType(c.ProfilerEngine); err != nil {
		errs = append(errs, err)
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.DuckDBThreads <= 0 {
		errs = append(errs, fmt.Errorf("duckdb_threads must be positive, got %d", c.DuckDBThreads))
	}
	if c.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("job_timeout must be positive, got %s", c.JobTimeout))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log_level: %w", err))
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		errs = append(errs, fmt.Errorf("log_format must be %q or %q, got %q", LogFormatJSON, LogFormatConsole, c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c *Config) Engine() domain.EngineType {
	engine, _ := domain.ParseEngineType(c.ProfilerEngine)
	return engine
}

// NewLogger builds the root logger. Level and format are assumed validated.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.LogFormat == LogFormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
