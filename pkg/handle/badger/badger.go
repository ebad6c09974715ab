// Package badger provides a BadgerDB-backed handle backend.
//
// Each object is a size record plus fixed-size data blocks. Writes update
// the touched blocks and the size record in one transaction per block, so
// concurrent writers to different ranges only conflict on the size record
// and are retried.
package badger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ofio/internal/bytesize"
	"github.com/marmos91/ofio/internal/logger"
	"github.com/marmos91/ofio/pkg/handle"
)

// DefaultBlockSize is the block size used when Config.BlockSize is zero.
const DefaultBlockSize = 64 * bytesize.KiB

// maxConflictRetries bounds transaction retries on ErrConflict.
const maxConflictRetries = 16

// Config holds configuration for the BadgerDB backend.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the whole database in memory.
	InMemory bool

	// BlockSize is the object block size. It is fixed when the database is
	// created; reopening with a different size fails.
	// Default: 64KiB
	BlockSize bytesize.ByteSize

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool
}

// Metrics records database activity. A nil Metrics disables collection.
type Metrics interface {
	RecordConflict()
	RecordDBSize(lsm, vlog int64)
}

// Backend stores objects in BadgerDB.
type Backend struct {
	db        *badgerdb.DB
	blockSize int64
	inMemory  bool
	metrics   Metrics

	mu     sync.RWMutex
	closed bool
}

var (
	_ handle.Backend       = (*Backend)(nil)
	_ handle.ContextObject = (*Object)(nil)
)

// New opens the database described by cfg.
func New(cfg Config) (*Backend, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.BlockSize < 512 {
		return nil, fmt.Errorf("block size %s is below 512B", cfg.BlockSize)
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	b := &Backend{db: db, blockSize: int64(cfg.BlockSize), inMemory: cfg.InMemory}
	if err := b.checkBlockSize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// checkBlockSize records the block size on first use and rejects a
// mismatch afterwards.
func (b *Backend) checkBlockSize() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyBlockSize))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keyBlockSize), encodeUint64(uint64(b.blockSize)))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored, err := decodeUint64(val)
			if err != nil {
				return err
			}
			if int64(stored) != b.blockSize {
				return fmt.Errorf("database block size is %s, configured %s",
					bytesize.ByteSize(stored), bytesize.ByteSize(b.blockSize))
			}
			return nil
		})
	})
}

// SetMetrics enables database metrics.
func (b *Backend) SetMetrics(m Metrics) {
	b.metrics = m
}

func (b *Backend) Name() string { return "badger" }

// BlockSize returns the object block size.
func (b *Backend) BlockSize() int64 { return b.blockSize }

// HealthCheck verifies the database can serve a read transaction.
func (b *Backend) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Size returns the LSM and value log sizes in bytes and reports them to
// the metrics sink.
func (b *Backend) Size() (lsm, vlog int64) {
	lsm, vlog = b.db.Size()
	if b.metrics != nil {
		b.metrics.RecordDBSize(lsm, vlog)
	}
	return lsm, vlog
}

// Open implements handle.Backend.
func (b *Backend) Open(ctx context.Context, name string, mode handle.OpenMode) (handle.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = handle.CleanName(name)
	if name == "" || strings.ContainsRune(name, 0) {
		return nil, fmt.Errorf("invalid name %q: %w", name, fs.ErrInvalid)
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return nil, handle.ErrBackendClosed
	}

	obj := &Object{backend: b, name: name}

	err := b.update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyMeta(name))
		switch {
		case err == badgerdb.ErrKeyNotFound:
			if !mode.Create() {
				return fmt.Errorf("object %s: %w", name, handle.ErrNotFound)
			}
			if dir, err := isDirTxn(txn, name); err != nil {
				return err
			} else if dir {
				return fmt.Errorf("object %s is a directory: %w", name, handle.ErrAccessDenied)
			}
			if err := txn.Set(keyMeta(name), encodeUint64(0)); err != nil {
				return err
			}
			return touchTxn(txn, name)
		case err != nil:
			return err
		case mode.Truncate():
			return obj.truncateTxn(txn, 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("badger: object opened", logger.KeyKey, name, logger.KeyMode, mode.String())
	return obj, nil
}

// Close implements handle.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (b *Backend) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		if b.metrics != nil {
			b.metrics.RecordConflict()
		}
	}
	return err
}

// deleteBlocksFrom deletes every block of name with index >= first.
func deleteBlocksFrom(txn *badgerdb.Txn, name string, first int64) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = keyBlockPrefix(name)

	it := txn.NewIterator(opts)
	var keys [][]byte
	for it.Seek(keyBlock(name, first)); it.ValidForPrefix(opts.Prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
