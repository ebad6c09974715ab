package config

import (
	"context"
	"fmt"

	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/internal/telemetry"
	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/handle/badger"
	"github.com/marmos91/ofio/pkg/handle/local"
	"github.com/marmos91/ofio/pkg/handle/memory"
	"github.com/marmos91/ofio/pkg/handle/s3"
)

// CreateBackend creates the storage backend selected by cfg.Type.
func CreateBackend(ctx context.Context, cfg BackendConfig) (handle.Backend, error) {
	switch cfg.Type {
	case "local", "":
		b, err := local.New(local.DefaultConfig(cfg.Local.Root))
		if err != nil {
			return nil, fmt.Errorf("failed to create local backend: %w", err)
		}
		return b, nil
	case "memory":
		return memory.New(memory.Options{}), nil
	case "s3":
		return createS3Backend(ctx, cfg.S3)
	case "badger":
		return createBadgerBackend(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

func createS3Backend(ctx context.Context, cfg S3BackendConfig) (handle.Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires bucket to be set")
	}

	b, err := s3.NewFromConfig(ctx, s3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		ForcePathStyle:  cfg.ForcePathStyle,
		MaxRetries:      cfg.MaxRetries,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 backend: %w", err)
	}
	return b, nil
}

func createBadgerBackend(cfg BadgerBackendConfig) (handle.Backend, error) {
	b, err := badger.New(badger.Config{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		BlockSize:  cfg.BlockSize,
		SyncWrites: cfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger backend: %w", err)
	}
	return b, nil
}

// EngineConfig converts the pipeline section to an aio.Config.
func (c PipelineConfig) EngineConfig() (aio.Config, error) {
	shortWrites, err := aio.ParseShortWritePolicy(c.ShortWrites)
	if err != nil {
		return aio.Config{}, err
	}
	allocFailure, err := aio.ParseAllocFailurePolicy(c.AllocFailure)
	if err != nil {
		return aio.Config{}, err
	}

	cfg := aio.Config{
		Depth:          c.Depth,
		ChunkSize:      int(c.ChunkSize),
		ShortWrites:    shortWrites,
		OnAllocFailure: allocFailure,
	}
	if err := cfg.Validate(); err != nil {
		return aio.Config{}, err
	}
	return cfg, nil
}

// LoggerConfig converts the logging section for logger.Init.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Level,
		Format: c.Format,
		Output: c.Output,
	}
}

// TracingConfig converts the telemetry section for telemetry.Init. The
// backend and pipeline tuning go into the trace resource.
func (c *Config) TracingConfig(version string) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.Enabled = c.Telemetry.Enabled
	cfg.ServiceVersion = version
	cfg.Endpoint = c.Telemetry.Endpoint
	cfg.Insecure = c.Telemetry.Insecure
	cfg.SampleRate = c.Telemetry.SampleRate
	cfg.Backend = c.Backend.Type
	cfg.Depth = c.Pipeline.Depth
	cfg.ChunkSize = c.Pipeline.ChunkSize.Int()
	return cfg
}

// ProfilingConfig converts the profiling section for telemetry.InitProfiling.
func (c TelemetryConfig) ProfilingConfig(version string) telemetry.ProfilingConfig {
	cfg := telemetry.DefaultProfilingConfig()
	cfg.Enabled = c.Profiling.Enabled
	cfg.ServiceVersion = version
	cfg.Endpoint = c.Profiling.Endpoint
	if len(c.Profiling.ProfileTypes) > 0 {
		cfg.ProfileTypes = append([]string(nil), c.Profiling.ProfileTypes...)
	}
	return cfg
}
