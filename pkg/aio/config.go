package aio

import (
	"fmt"
	"strings"
)

const (
	// DefaultDepth is the number of chunks kept in flight.
	DefaultDepth = 10

	// MaxDepth bounds the buffer pool of a single request.
	MaxDepth = 64

	// DefaultChunkSize is the largest transfer issued by one overlapped
	// operation (64KB, the classic SMB2 I/O ceiling).
	DefaultChunkSize = 64 << 10
)

// ShortWritePolicy decides how a write that transfers fewer bytes than
// requested, without an error code, is reported.
type ShortWritePolicy int

const (
	// ShortWriteFail reports a short write as StatusError with
	// ErrnoWriteFault.
	ShortWriteFail ShortWritePolicy = iota
	// ShortWriteAllow reports a short write like a short read:
	// StatusShortEOF with the bytes written.
	ShortWriteAllow
)

func (p ShortWritePolicy) String() string {
	if p == ShortWriteAllow {
		return "allow"
	}
	return "fail"
}

// ParseShortWritePolicy parses "fail" or "allow".
func ParseShortWritePolicy(s string) (ShortWritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail", "":
		return ShortWriteFail, nil
	case "allow":
		return ShortWriteAllow, nil
	default:
		return ShortWriteFail, fmt.Errorf("invalid short write policy: %q (valid: fail, allow)", s)
	}
}

// AllocFailurePolicy decides what happens when an overlapped context cannot
// be created.
type AllocFailurePolicy int

const (
	// AllocFailureError drains the request and returns ErrOverlappedAlloc.
	AllocFailureError AllocFailurePolicy = iota
	// AllocFailurePanic panics, as the native binding aborts the process.
	AllocFailurePanic
)

func (p AllocFailurePolicy) String() string {
	if p == AllocFailurePanic {
		return "panic"
	}
	return "error"
}

// ParseAllocFailurePolicy parses "error" or "panic".
func ParseAllocFailurePolicy(s string) (AllocFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "":
		return AllocFailureError, nil
	case "panic":
		return AllocFailurePanic, nil
	default:
		return AllocFailureError, fmt.Errorf("invalid alloc failure policy: %q (valid: error, panic)", s)
	}
}

// Config holds the pipeline tuning knobs.
type Config struct {
	// Depth is the maximum number of chunks in flight (pool size N).
	// Default: 10
	Depth int

	// ChunkSize is the maximum size of one overlapped transfer.
	// Default: 64KB
	ChunkSize int

	// ShortWrites selects how short writes are reported.
	// Default: ShortWriteFail
	ShortWrites ShortWritePolicy

	// OnAllocFailure selects what happens when an overlapped context
	// cannot be created.
	// Default: AllocFailureError
	OnAllocFailure AllocFailurePolicy
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Depth:          DefaultDepth,
		ChunkSize:      DefaultChunkSize,
		ShortWrites:    ShortWriteFail,
		OnAllocFailure: AllocFailureError,
	}
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Depth == 0 {
		c.Depth = DefaultDepth
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Depth < 1 || c.Depth > MaxDepth {
		return fmt.Errorf("depth must be between 1 and %d, got %d", MaxDepth, c.Depth)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
