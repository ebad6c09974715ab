package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/ofio/internal/bytesize"
)

// EnvPrefix prefixes every environment variable override.
// Example: OFIO_PIPELINE_DEPTH=16
const EnvPrefix = "OFIO"

// Config represents the ofio configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (OFIO_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Pipeline tunes the buffered I/O engine
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`

	// Backend selects and configures the storage behind file handles
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	// Default: stderr, so that stdout stays free for file data
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector
	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// PipelineConfig tunes the buffered I/O engine.
type PipelineConfig struct {
	// Depth is the number of chunks kept in flight per request
	// Default: 10
	Depth int `mapstructure:"depth" validate:"min=1,max=64" yaml:"depth"`

	// ChunkSize is the largest transfer of one overlapped operation
	// Default: 64KiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"min=1,max=1073741824" yaml:"chunk_size"`

	// ShortWrites reports a write that stops early without an error code
	// either as an error ("fail") or as a short transfer ("allow")
	// Default: fail
	ShortWrites string `mapstructure:"short_writes" validate:"oneof=fail allow" yaml:"short_writes"`

	// AllocFailure selects what happens when an overlapped context cannot
	// be created: return an error ("error") or abort ("panic")
	// Default: error
	AllocFailure string `mapstructure:"alloc_failure" validate:"oneof=error panic" yaml:"alloc_failure"`

	// CopyBuffer is the buffer size used by cp and put
	// Default: 1MiB
	CopyBuffer bytesize.ByteSize `mapstructure:"copy_buffer" validate:"min=1" yaml:"copy_buffer"`

	// Timeout bounds a single CLI command; pending chunks are canceled
	// when it expires. 0 disables the deadline.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0" yaml:"timeout"`
}

// BackendConfig selects the storage behind file handles.
type BackendConfig struct {
	// Type is one of local, memory, s3, badger
	// Default: local
	Type string `mapstructure:"type" validate:"required,oneof=local memory s3 badger" yaml:"type"`

	Local  LocalBackendConfig  `mapstructure:"local" yaml:"local"`
	S3     S3BackendConfig     `mapstructure:"s3" yaml:"s3"`
	Badger BadgerBackendConfig `mapstructure:"badger" yaml:"badger"`
}

// LocalBackendConfig configures the local filesystem backend.
type LocalBackendConfig struct {
	// Root confines every path to this directory. Empty means paths are
	// used as given.
	Root string `mapstructure:"root" yaml:"root"`
}

// S3BackendConfig configures the S3 backend.
type S3BackendConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"min=0,max=20" yaml:"max_retries"`

	// Static credentials. When empty, the default AWS credential chain is
	// used. Prefer OFIO_BACKEND_S3_ACCESS_KEY_ID and
	// OFIO_BACKEND_S3_SECRET_ACCESS_KEY over writing them to a file.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// BadgerBackendConfig configures the BadgerDB backend.
type BadgerBackendConfig struct {
	// Path is the database directory (required unless InMemory)
	Path string `mapstructure:"path" yaml:"path"`

	// BlockSize is fixed when the database is created
	// Default: 64KiB
	BlockSize bytesize.ByteSize `mapstructure:"block_size" validate:"omitempty,min=512" yaml:"block_size"`

	InMemory   bool `mapstructure:"in_memory" yaml:"in_memory"`
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// Load loads configuration from file, environment, and defaults.
//
// A missing config file is not an error: defaults and environment
// variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad is Load with a user-facing error when an explicitly named file
// does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  ofio config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variables, defaults and the config
// file location.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so that AutomaticEnv can resolve it during
	// Unmarshal even when no file mentions it.
	setViperDefaults(v, GetDefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("telemetry.enabled", cfg.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", cfg.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", cfg.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", cfg.Telemetry.SampleRate)
	v.SetDefault("telemetry.profiling.enabled", cfg.Telemetry.Profiling.Enabled)
	v.SetDefault("telemetry.profiling.endpoint", cfg.Telemetry.Profiling.Endpoint)
	v.SetDefault("telemetry.profiling.profile_types", cfg.Telemetry.Profiling.ProfileTypes)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)

	v.SetDefault("pipeline.depth", cfg.Pipeline.Depth)
	v.SetDefault("pipeline.chunk_size", cfg.Pipeline.ChunkSize.String())
	v.SetDefault("pipeline.short_writes", cfg.Pipeline.ShortWrites)
	v.SetDefault("pipeline.alloc_failure", cfg.Pipeline.AllocFailure)
	v.SetDefault("pipeline.copy_buffer", cfg.Pipeline.CopyBuffer.String())
	v.SetDefault("pipeline.timeout", cfg.Pipeline.Timeout.String())

	v.SetDefault("backend.type", cfg.Backend.Type)
	v.SetDefault("backend.local.root", cfg.Backend.Local.Root)
	v.SetDefault("backend.s3.bucket", cfg.Backend.S3.Bucket)
	v.SetDefault("backend.s3.region", cfg.Backend.S3.Region)
	v.SetDefault("backend.s3.endpoint", cfg.Backend.S3.Endpoint)
	v.SetDefault("backend.s3.key_prefix", cfg.Backend.S3.KeyPrefix)
	v.SetDefault("backend.s3.force_path_style", cfg.Backend.S3.ForcePathStyle)
	v.SetDefault("backend.s3.max_retries", cfg.Backend.S3.MaxRetries)
	v.SetDefault("backend.s3.access_key_id", "")
	v.SetDefault("backend.s3.secret_access_key", "")
	v.SetDefault("backend.badger.path", cfg.Backend.Badger.Path)
	v.SetDefault("backend.badger.block_size", cfg.Backend.Badger.BlockSize.String())
	v.SetDefault("backend.badger.in_memory", cfg.Backend.Badger.InMemory)
	v.SetDefault("backend.badger.sync_writes", cfg.Backend.Badger.SyncWrites)
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can say "64KiB" as well as 65536.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/ofio, ~/.config/ofio or ".".
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ofio")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ofio")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
