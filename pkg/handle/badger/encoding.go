package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// ============================================================================
// Key Namespace
// ============================================================================
//
// Objects are split into fixed-size blocks so a positional write only
// rewrites the blocks it touches.
//
// Data Type      Prefix   Key Format                 Value Type
// ===============================================================
// Object Size    "m:"     m:<name>                   uint64 (big-endian)
// Object Block   "b:"     b:<name>\x00<index %016x>  raw bytes (<= block size)
// Object MTime   "t:"     t:<name>                   unix nanos (big-endian)
// Directory      "d:"     d:<name>                   unix nanos (big-endian)
// Block Size     "cfg:"   cfg:blocksize              uint64 (big-endian)
//
// The NUL separator keeps the blocks of "a" apart from those of "a/b", so
// names cannot contain NUL. Block indexes are fixed-width hex so keys sort
// in block order. A missing block reads as zeros. A stored block may be
// shorter than the block size; the tail reads as zeros too.
//
// Names are slash separated. A directory exists when it has a "d:" record
// or when any object or directory lives below it.

const (
	prefixMeta   = "m:"
	prefixBlock  = "b:"
	prefixMTime  = "t:"
	prefixDir    = "d:"
	keyBlockSize = "cfg:blocksize"
)

// keyMeta generates the size key for an object: "m:<name>"
func keyMeta(name string) []byte {
	return []byte(prefixMeta + name)
}

// keyMTime generates the modification time key for an object: "t:<name>"
func keyMTime(name string) []byte {
	return []byte(prefixMTime + name)
}

// keyDir generates the directory marker key: "d:<name>"
func keyDir(name string) []byte {
	return []byte(prefixDir + name)
}

// keyBlockPrefix generates the prefix shared by all blocks of an object.
func keyBlockPrefix(name string) []byte {
	return []byte(prefixBlock + name + "\x00")
}

// keyBlock generates a block key: "b:<name>\x00<index>"
func keyBlock(name string, index int64) []byte {
	return fmt.Appendf(keyBlockPrefix(name), "%016x", uint64(index))
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid uint64 encoding: %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeTime(t time.Time) []byte {
	return encodeUint64(uint64(t.UnixNano()))
}

func decodeTime(b []byte) (time.Time, error) {
	v, err := decodeUint64(b)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(v)), nil
}
