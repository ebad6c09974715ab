package handle

import "time"

// Metrics records backend operations performed by a Service.
//
// op is one of "open", "close", "read", "write", "read_async",
// "write_async", "truncate", "sync", "stat", "list", "mkdir", "remove" or
// "rename". A nil Metrics disables collection.
type Metrics interface {
	ObserveOperation(op string, bytes int, duration time.Duration, err error)
}
