package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ofio/pkg/handle"
)

func (b *Backend) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return handle.ErrBackendClosed
	}
	return nil
}

func touchTxn(txn *badgerdb.Txn, name string) error {
	return txn.Set(keyMTime(name), encodeTime(time.Now()))
}

// timeTxn reads a time record. A missing record is the zero time.
func timeTxn(txn *badgerdb.Txn, key []byte) (time.Time, bool, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var t time.Time
	err = item.Value(func(val []byte) error {
		t, err = decodeTime(val)
		return err
	})
	return t, true, err
}

func existsTxn(txn *badgerdb.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == badgerdb.ErrKeyNotFound:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// hasChildrenTxn reports whether any object or directory lives below name.
func hasChildrenTxn(txn *badgerdb.Txn, name string) bool {
	for _, prefix := range []string{prefixMeta, prefixDir} {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix + name + "/")

		it := txn.NewIterator(opts)
		it.Rewind()
		found := it.Valid()
		it.Close()
		if found {
			return true
		}
	}
	return false
}

func isDirTxn(txn *badgerdb.Txn, name string) (bool, error) {
	marked, err := existsTxn(txn, keyDir(name))
	if err != nil || marked {
		return marked, err
	}
	return hasChildrenTxn(txn, name), nil
}

// Stat implements handle.Backend.
func (b *Backend) Stat(ctx context.Context, name string) (handle.Entry, error) {
	if err := b.usable(ctx); err != nil {
		return handle.Entry{}, err
	}
	name = handle.CleanName(name)
	if name == "" {
		return handle.Entry{Dir: true}, nil
	}

	var entry handle.Entry
	err := b.db.View(func(txn *badgerdb.Txn) error {
		size, err := sizeTxn(txn, name)
		if err == nil {
			mod, _, err := timeTxn(txn, keyMTime(name))
			entry = handle.Entry{Name: name, Size: size, ModTime: mod}
			return err
		}
		if !errors.Is(err, handle.ErrNotFound) {
			return err
		}

		mod, marked, err := timeTxn(txn, keyDir(name))
		if err != nil {
			return err
		}
		if !marked && !hasChildrenTxn(txn, name) {
			return fmt.Errorf("object %s: %w", name, handle.ErrNotFound)
		}
		entry = handle.Entry{Name: name, ModTime: mod, Dir: true}
		return nil
	})
	return entry, err
}

// List implements handle.Backend.
func (b *Backend) List(ctx context.Context, dir string) ([]handle.Entry, error) {
	if err := b.usable(ctx); err != nil {
		return nil, err
	}
	dir = handle.CleanName(dir)
	l := handle.NewLister(dir)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		if err := listObjectsTxn(ctx, txn, l); err != nil {
			return err
		}
		if err := listDirsTxn(txn, l); err != nil {
			return err
		}
		if dir == "" || l.Len() > 0 {
			return nil
		}
		marked, err := existsTxn(txn, keyDir(dir))
		if err != nil {
			return err
		}
		if !marked {
			return fmt.Errorf("directory %s: %w", dir, handle.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.Entries(), nil
}

func listObjectsTxn(ctx context.Context, txn *badgerdb.Txn, l *handle.Lister) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefixMeta + l.Prefix())

	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		name := string(item.Key()[len(prefixMeta):])

		var size uint64
		err := item.Value(func(val []byte) error {
			var err error
			size, err = decodeUint64(val)
			return err
		})
		if err != nil {
			return err
		}
		mod, _, err := timeTxn(txn, keyMTime(name))
		if err != nil {
			return err
		}
		l.Add(name, int64(size), mod)
	}
	return nil
}

func listDirsTxn(txn *badgerdb.Txn, l *handle.Lister) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefixDir + l.Prefix())

	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		name := string(item.Key()[len(prefixDir):])
		var mod time.Time
		err := item.Value(func(val []byte) error {
			var err error
			mod, err = decodeTime(val)
			return err
		})
		if err != nil {
			return err
		}
		l.AddDir(name, mod)
	}
	return nil
}

// Mkdir implements handle.Backend.
func (b *Backend) Mkdir(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	name = handle.CleanName(name)
	if name == "" {
		return fmt.Errorf("directory %s: %w", name, handle.ErrExists)
	}

	return b.update(func(txn *badgerdb.Txn) error {
		if obj, err := existsTxn(txn, keyMeta(name)); err != nil {
			return err
		} else if obj {
			return fmt.Errorf("directory %s: %w", name, handle.ErrExists)
		}
		if dir, err := isDirTxn(txn, name); err != nil {
			return err
		} else if dir {
			return fmt.Errorf("directory %s: %w", name, handle.ErrExists)
		}

		now := encodeTime(time.Now())
		for dir := name; dir != ""; {
			if obj, err := existsTxn(txn, keyMeta(dir)); err != nil {
				return err
			} else if obj {
				return fmt.Errorf("directory %s: parent %s is an object: %w", name, dir, handle.ErrExists)
			}
			if marked, err := existsTxn(txn, keyDir(dir)); err != nil {
				return err
			} else if !marked {
				if err := txn.Set(keyDir(dir), now); err != nil {
					return err
				}
			}
			i := strings.LastIndexByte(dir, '/')
			if i < 0 {
				break
			}
			dir = dir[:i]
		}
		return nil
	})
}

// Remove implements handle.Backend. An object is removed with all of its
// blocks.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	name = handle.CleanName(name)
	if name == "" {
		return fmt.Errorf("root: %w", handle.ErrAccessDenied)
	}

	return b.update(func(txn *badgerdb.Txn) error {
		obj, err := existsTxn(txn, keyMeta(name))
		if err != nil {
			return err
		}
		if obj {
			if err := deleteBlocksFrom(txn, name, 0); err != nil {
				return err
			}
			if err := txn.Delete(keyMTime(name)); err != nil {
				return err
			}
			return txn.Delete(keyMeta(name))
		}

		if hasChildrenTxn(txn, name) {
			return fmt.Errorf("directory %s: %w", name, handle.ErrNotEmpty)
		}
		marked, err := existsTxn(txn, keyDir(name))
		if err != nil {
			return err
		}
		if !marked {
			return fmt.Errorf("object %s: %w", name, handle.ErrNotFound)
		}
		return txn.Delete(keyDir(name))
	})
}

// Rename implements handle.Backend. The object moves in one transaction,
// so an object larger than a transaction fails with badger.ErrTxnTooBig.
// Directories cannot be renamed.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := b.usable(ctx); err != nil {
		return err
	}
	from, to = handle.CleanName(from), handle.CleanName(to)
	if from == "" || to == "" {
		return fmt.Errorf("root: %w", handle.ErrAccessDenied)
	}

	return b.update(func(txn *badgerdb.Txn) error {
		size, err := sizeTxn(txn, from)
		if errors.Is(err, handle.ErrNotFound) {
			if dir, derr := isDirTxn(txn, from); derr != nil {
				return derr
			} else if dir {
				return fmt.Errorf("directory %s: rename: %w", from, errors.ErrUnsupported)
			}
		}
		if err != nil || from == to {
			return err
		}
		if dir, err := isDirTxn(txn, to); err != nil {
			return err
		} else if dir {
			return fmt.Errorf("object %s: %s is a directory: %w", from, to, handle.ErrExists)
		}

		if err := deleteBlocksFrom(txn, to, 0); err != nil {
			return err
		}
		if err := moveBlocksTxn(txn, from, to); err != nil {
			return err
		}

		mod, stamped, err := timeTxn(txn, keyMTime(from))
		if err != nil {
			return err
		}
		if stamped {
			err = txn.Set(keyMTime(to), encodeTime(mod))
		} else {
			err = txn.Delete(keyMTime(to))
		}
		if err != nil {
			return err
		}
		if err := txn.Set(keyMeta(to), encodeUint64(uint64(size))); err != nil {
			return err
		}
		if err := txn.Delete(keyMTime(from)); err != nil {
			return err
		}
		return txn.Delete(keyMeta(from))
	})
}

func moveBlocksTxn(txn *badgerdb.Txn, from, to string) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = keyBlockPrefix(from)

	type block struct{ key, val []byte }
	var blocks []block
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return err
		}
		blocks = append(blocks, block{key: item.KeyCopy(nil), val: val})
	}
	it.Close()

	dst := keyBlockPrefix(to)
	for _, blk := range blocks {
		index := blk.key[len(opts.Prefix):]
		if err := txn.Set(append(dst[:len(dst):len(dst)], index...), blk.val); err != nil {
			return err
		}
		if err := txn.Delete(blk.key); err != nil {
			return err
		}
	}
	return nil
}
