package output

import (
	"fmt"
	"time"

	"github.com/marmos91/ofio/internal/bytesize"
)

// Bytes formats n with binary units ("1.50MiB").
func Bytes(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%dB", n)
	}
	return bytesize.ByteSize(n).String()
}

// Throughput formats n bytes moved in d as a per-second rate.
func Throughput(n int64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	perSec := float64(n) / d.Seconds()
	return bytesize.ByteSize(perSec).String() + "/s"
}
