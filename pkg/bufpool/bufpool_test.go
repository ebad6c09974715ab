package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSelectsTier(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"Small", 100, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"JustAboveSmall", DefaultSmallSize + 1, DefaultMediumSize},
		{"OneChunk", DefaultMediumSize, DefaultMediumSize},
		{"JustAboveMedium", DefaultMediumSize + 1, DefaultLargeSize},
		{"LargeBoundary", DefaultLargeSize, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			defer Put(buf)

			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
		})
	}
}

func TestNegativeSize(t *testing.T) {
	buf := Get(-5)
	defer Put(buf)
	assert.Empty(t, buf)
}

func TestPutAndReuse(t *testing.T) {
	t.Run("ReturnedBufferIsFullLength", func(t *testing.T) {
		pool := NewPool(nil)
		buf := pool.Get(10)
		buf[0] = 0xAB
		pool.Put(buf)

		again := pool.Get(DefaultSmallSize)
		assert.Len(t, again, DefaultSmallSize)
		pool.Put(again)
	})

	t.Run("IgnoresNilAndForeignBuffers", func(t *testing.T) {
		require.NotPanics(t, func() {
			Put(nil)
			Put([]byte{})
			Put(make([]byte, 3*DefaultLargeSize))
		})
	})
}

func TestCustomPool(t *testing.T) {
	t.Run("CustomSizes", func(t *testing.T) {
		pool := NewPool(&Config{SmallSize: 512, MediumSize: 8 << 10, LargeSize: 256 << 10})

		assert.Equal(t, 512, cap(pool.Get(100)))
		assert.Equal(t, 8<<10, cap(pool.Get(1000)))
		assert.Equal(t, 256<<10, cap(pool.Get(100<<10)))
		assert.Equal(t, 256<<10, pool.MaxPooled())
	})

	t.Run("ZeroValuesTakeDefaults", func(t *testing.T) {
		pool := NewPool(&Config{})
		assert.Equal(t, DefaultLargeSize, pool.MaxPooled())
		assert.Equal(t, DefaultMediumSize, cap(pool.Get(DefaultMediumSize)))
	})

	t.Run("UnorderedAndDuplicateSizes", func(t *testing.T) {
		pool := NewPool(&Config{SmallSize: 64 << 10, MediumSize: 4 << 10, LargeSize: 64 << 10})
		assert.Len(t, pool.tiers, 2)
		assert.Equal(t, 4<<10, cap(pool.Get(1)))
		assert.Equal(t, 64<<10, pool.MaxPooled())
	})
}

func TestConcurrentGetPut(t *testing.T) {
	pool := NewPool(nil)
	sizes := []int{16, DefaultSmallSize + 1, DefaultMediumSize + 1, DefaultLargeSize + 1}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 200 {
				size := sizes[(id+j)%len(sizes)]
				buf := pool.Get(size)
				if len(buf) != size {
					t.Errorf("got len %d, want %d", len(buf), size)
				}
				buf[len(buf)-1] = byte(id)
				pool.Put(buf)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkGetPutChunk(b *testing.B) {
	b.ReportAllocs()
	for range b.N {
		buf := Get(DefaultMediumSize)
		Put(buf)
	}
}
