// Package bufpool provides a tiered pool of byte slices for staging data
// between buffered transfers.
//
// Copies, S3 range reads and Badger block assembly each need a scratch
// buffer per call. Pooling them by size class keeps those paths from
// allocating a fresh slice per operation.
//
// Tiers (defaults):
//   - small (4KiB): single blocks and byte-at-a-time I/O
//   - medium (64KiB): one pipeline chunk
//   - large (1MiB): copy buffers spanning several chunks
//
// Requests above the large tier are allocated directly and never pooled.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sort"
	"sync"
)

const (
	DefaultSmallSize  = 4 << 10
	DefaultMediumSize = 64 << 10
	DefaultLargeSize  = 1 << 20
)

// Config holds the tier sizes of a pool. Zero values take the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default tier sizes.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

type tier struct {
	size int
	pool sync.Pool
}

// Pool is a set of sync.Pools, one per size class.
type Pool struct {
	tiers []*tier
}

// NewPool creates a pool. A nil cfg uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	sizes := []int{c.SmallSize, c.MediumSize, c.LargeSize}
	sort.Ints(sizes)

	p := &Pool{}
	for _, size := range sizes {
		if len(p.tiers) > 0 && p.tiers[len(p.tiers)-1].size == size {
			continue
		}
		t := &tier{size: size}
		t.pool.New = func() any {
			buf := make([]byte, t.size)
			return &buf
		}
		p.tiers = append(p.tiers, t)
	}
	return p
}

// Get returns a slice of length size. Its capacity is the tier size, so it
// may be larger than requested. Pair every Get with a Put.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	for _, t := range p.tiers {
		if size <= t.size {
			buf := *(t.pool.Get().(*[]byte))
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its tier. Buffers whose capacity matches no tier,
// including oversized ones, are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, t := range p.tiers {
		if cap(buf) == t.size {
			full := buf[:t.size]
			t.pool.Put(&full)
			return
		}
	}
}

// MaxPooled returns the largest size served from a tier.
func (p *Pool) MaxPooled() int {
	return p.tiers[len(p.tiers)-1].size
}

var globalPool = NewPool(nil)

// Get returns a buffer from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
