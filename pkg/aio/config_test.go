package aio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Defaults", DefaultConfig(), false},
		{"MinDepth", Config{Depth: 1, ChunkSize: 1}, false},
		{"MaxDepth", Config{Depth: MaxDepth, ChunkSize: 4096}, false},
		{"ZeroDepth", Config{Depth: 0, ChunkSize: 4096}, true},
		{"DepthTooLarge", Config{Depth: MaxDepth + 1, ChunkSize: 4096}, true},
		{"NegativeChunk", Config{Depth: 4, ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{ShortWrites: ShortWriteAllow}
	cfg.applyDefaults()
	assert.Equal(t, DefaultDepth, cfg.Depth)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, ShortWriteAllow, cfg.ShortWrites)

	cfg = Config{Depth: 3, ChunkSize: 100}
	cfg.applyDefaults()
	assert.Equal(t, 3, cfg.Depth)
	assert.Equal(t, 100, cfg.ChunkSize)
}

func TestParseShortWritePolicy(t *testing.T) {
	for in, want := range map[string]ShortWritePolicy{
		"":       ShortWriteFail,
		"fail":   ShortWriteFail,
		"ALLOW":  ShortWriteAllow,
		" allow": ShortWriteAllow,
	} {
		got, err := ParseShortWritePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseShortWritePolicy("ignore")
	assert.Error(t, err)

	assert.Equal(t, "allow", ShortWriteAllow.String())
	assert.Equal(t, "fail", ShortWriteFail.String())
}

func TestParseAllocFailurePolicy(t *testing.T) {
	p, err := ParseAllocFailurePolicy("panic")
	require.NoError(t, err)
	assert.Equal(t, AllocFailurePanic, p)
	assert.Equal(t, "panic", p.String())

	p, err = ParseAllocFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, AllocFailureError, p)

	_, err = ParseAllocFailurePolicy("abort")
	assert.Error(t, err)
}
