package file

import (
	"context"
	"errors"
	"io"

	"github.com/marmos91/ofio/pkg/bufpool"
)

// DefaultCopyBufferSize is the buffer size Copy uses when bufSize is 0.
const DefaultCopyBufferSize = 1 << 20

// Copy reads src from its file pointer to the end and writes the data to
// dst at its file pointer. It returns the number of bytes copied.
func Copy(ctx context.Context, dst, src *File, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = DefaultCopyBufferSize
	}
	buf := bufpool.Get(bufSize)
	defer bufpool.Put(buf)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := src.ReadContext(ctx, buf)
		if n > 0 {
			w, werr := dst.WriteContext(ctx, buf[:n])
			total += int64(w)
			if werr != nil {
				return total, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
