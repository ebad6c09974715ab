package badger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ofio/pkg/handle"
)

// Object is an open BadgerDB object.
type Object struct {
	backend *Backend
	name    string

	mu     sync.RWMutex
	closed bool
}

func (o *Object) check() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return os.ErrClosed
	}
	return nil
}

// ReadAt implements io.ReaderAt.
func (o *Object) ReadAt(p []byte, off int64) (int, error) {
	return o.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext implements handle.ContextObject.
func (o *Object) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, handle.ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := o.check(); err != nil {
		return 0, err
	}

	bs := o.backend.blockSize
	n := 0
	err := o.backend.db.View(func(txn *badgerdb.Txn) error {
		size, err := sizeTxn(txn, o.name)
		if err != nil {
			return err
		}
		if off >= size {
			return nil
		}

		want := int64(len(p))
		if rem := size - off; want > rem {
			want = rem
		}
		dst := p[:want]
		clear(dst)

		for pos := int64(0); pos < want; {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := (off + pos) / bs
			inBlock := (off + pos) % bs
			chunk := min(bs-inBlock, want-pos)

			item, err := txn.Get(keyBlock(o.name, idx))
			if err != nil && err != badgerdb.ErrKeyNotFound {
				return err
			}
			if err == nil {
				err = item.Value(func(val []byte) error {
					if inBlock < int64(len(val)) {
						copy(dst[pos:pos+chunk], val[inBlock:])
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			pos += chunk
		}
		n = int(want)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (o *Object) WriteAt(p []byte, off int64) (int, error) {
	return o.WriteAtContext(context.Background(), p, off)
}

// WriteAtContext implements handle.ContextObject. Each touched block is
// committed in its own transaction; on error the bytes already committed
// are reported.
func (o *Object) WriteAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, handle.ErrInvalidOffset
	}
	if err := o.check(); err != nil {
		return 0, err
	}

	bs := o.backend.blockSize
	n := 0
	for n < len(p) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		pos := off + int64(n)
		idx := pos / bs
		inBlock := pos % bs
		chunk := int(min(bs-inBlock, int64(len(p)-n)))
		data := p[n : n+chunk]

		err := o.backend.update(func(txn *badgerdb.Txn) error {
			return o.writeBlockTxn(txn, idx, inBlock, data)
		})
		if err != nil {
			return n, err
		}
		n += chunk
	}
	return n, nil
}

func (o *Object) writeBlockTxn(txn *badgerdb.Txn, idx, inBlock int64, data []byte) error {
	key := keyBlock(o.name, idx)

	var block []byte
	item, err := txn.Get(key)
	switch {
	case err == nil:
		if block, err = item.ValueCopy(nil); err != nil {
			return err
		}
	case err != badgerdb.ErrKeyNotFound:
		return err
	}

	if end := inBlock + int64(len(data)); end > int64(len(block)) {
		grown := make([]byte, end)
		copy(grown, block)
		block = grown
	}
	copy(block[inBlock:], data)
	if err := txn.Set(key, block); err != nil {
		return err
	}
	if err := touchTxn(txn, o.name); err != nil {
		return err
	}

	size, err := sizeTxn(txn, o.name)
	if err != nil {
		return err
	}
	if end := idx*o.backend.blockSize + inBlock + int64(len(data)); end > size {
		return txn.Set(keyMeta(o.name), encodeUint64(uint64(end)))
	}
	return nil
}

// Size implements handle.Object.
func (o *Object) Size() (int64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	var size int64
	err := o.backend.db.View(func(txn *badgerdb.Txn) error {
		var err error
		size, err = sizeTxn(txn, o.name)
		return err
	})
	return size, err
}

// Truncate implements handle.Object.
func (o *Object) Truncate(size int64) error {
	if size < 0 {
		return handle.ErrInvalidOffset
	}
	if err := o.check(); err != nil {
		return err
	}
	return o.backend.update(func(txn *badgerdb.Txn) error {
		return o.truncateTxn(txn, size)
	})
}

func (o *Object) truncateTxn(txn *badgerdb.Txn, size int64) error {
	bs := o.backend.blockSize
	keep := (size + bs - 1) / bs
	if err := deleteBlocksFrom(txn, o.name, keep); err != nil {
		return err
	}

	// Trim the last partial block so regrowth reads zeros.
	if tail := size % bs; tail != 0 {
		key := keyBlock(o.name, size/bs)
		item, err := txn.Get(key)
		switch {
		case err == nil:
			block, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if int64(len(block)) > tail {
				if err := txn.Set(key, block[:tail]); err != nil {
					return err
				}
			}
		case err != badgerdb.ErrKeyNotFound:
			return err
		}
	}

	if err := touchTxn(txn, o.name); err != nil {
		return err
	}
	return txn.Set(keyMeta(o.name), encodeUint64(uint64(size)))
}

// Sync implements handle.Object.
func (o *Object) Sync() error {
	if err := o.check(); err != nil {
		return err
	}
	if o.backend.inMemory {
		return nil
	}
	return o.backend.db.Sync()
}

// Close implements handle.Object.
func (o *Object) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return os.ErrClosed
	}
	o.closed = true
	return nil
}

func sizeTxn(txn *badgerdb.Txn, name string) (int64, error) {
	item, err := txn.Get(keyMeta(name))
	if err == badgerdb.ErrKeyNotFound {
		return 0, fmt.Errorf("object %s: %w", name, handle.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	var size uint64
	err = item.Value(func(val []byte) error {
		size, err = decodeUint64(val)
		return err
	})
	return int64(size), err
}
