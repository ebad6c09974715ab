package config

import (
	"strings"

	"github.com/marmos91/ofio/internal/bytesize"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/handle/badger"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyPipelineDefaults(&cfg.Pipeline)
	applyBackendDefaults(&cfg.Backend)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

// applyMetricsDefaults sets the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg.Depth == 0 {
		cfg.Depth = aio.DefaultDepth
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(aio.DefaultChunkSize)
	}
	cfg.ShortWrites = strings.ToLower(cfg.ShortWrites)
	if cfg.ShortWrites == "" {
		cfg.ShortWrites = aio.ShortWriteFail.String()
	}
	cfg.AllocFailure = strings.ToLower(cfg.AllocFailure)
	if cfg.AllocFailure == "" {
		cfg.AllocFailure = aio.AllocFailureError.String()
	}
	if cfg.CopyBuffer == 0 {
		cfg.CopyBuffer = bytesize.MiB
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.MaxRetries == 0 {
		cfg.S3.MaxRetries = 3
	}
	if cfg.Badger.BlockSize == 0 {
		cfg.Badger.BlockSize = badger.DefaultBlockSize
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
