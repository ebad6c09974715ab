package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"InvalidLogFormat", func(c *Config) { c.Logging.Format = "xml" }, "Logging.Format"},
		{"DepthZero", func(c *Config) { c.Pipeline.Depth = 0 }, "Pipeline.Depth"},
		{"DepthTooLarge", func(c *Config) { c.Pipeline.Depth = 65 }, "max"},
		{"ChunkSizeZero", func(c *Config) { c.Pipeline.ChunkSize = 0 }, "Pipeline.ChunkSize"},
		{"InvalidShortWrites", func(c *Config) { c.Pipeline.ShortWrites = "ignore" }, "Pipeline.ShortWrites"},
		{"InvalidAllocFailure", func(c *Config) { c.Pipeline.AllocFailure = "retry" }, "Pipeline.AllocFailure"},
		{"NegativeTimeout", func(c *Config) { c.Pipeline.Timeout = -1 }, "Pipeline.Timeout"},
		{"InvalidMetricsPort", func(c *Config) { c.Metrics.Port = 70000 }, "max"},
		{"InvalidSampleRate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "Telemetry.SampleRate"},
		{"InvalidProfileType", func(c *Config) { c.Telemetry.Profiling.ProfileTypes = []string{"heap"} }, "ProfileTypes"},
		{"UnknownBackend", func(c *Config) { c.Backend.Type = "ftp" }, "Backend.Type"},
		{"S3WithoutBucket", func(c *Config) { c.Backend.Type = "s3" }, "bucket"},
		{"S3HalfCredentials", func(c *Config) {
			c.Backend.Type = "s3"
			c.Backend.S3.Bucket = "b"
			c.Backend.S3.AccessKeyID = "AKIA"
		}, "set together"},
		{"BadgerWithoutPath", func(c *Config) { c.Backend.Type = "badger" }, "badger.path"},
		{"BadgerSmallBlocks", func(c *Config) {
			c.Backend.Type = "badger"
			c.Backend.Badger.InMemory = true
			c.Backend.Badger.BlockSize = 100
		}, "BlockSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_BackendVariants(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backend.Type = "badger"
	cfg.Backend.Badger.InMemory = true
	if err := Validate(cfg); err != nil {
		t.Errorf("In-memory badger should not need a path: %v", err)
	}

	cfg = GetDefaultConfig()
	cfg.Backend.Type = "s3"
	cfg.Backend.S3.Bucket = "data"
	cfg.Backend.S3.Endpoint = "http://localhost:4566"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected s3 config with bucket to pass: %v", err)
	}
}
