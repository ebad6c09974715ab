package aio

import "time"

// Metrics records pipeline activity.
//
// A nil Metrics disables collection; the engine checks for nil before every
// call so the disabled path costs nothing.
type Metrics interface {
	// ObserveRequest records one completed buffered request.
	ObserveRequest(op string, bytes int, status Status, duration time.Duration)

	// RecordSubmission records one overlapped submission and how it was
	// answered: "pending", "inline" or "error".
	RecordSubmission(op string, result string)

	// RecordSpuriousWake records a wake-up that retired nothing.
	RecordSpuriousWake(op string)

	// SetInFlight reports the number of overlapped operations in flight.
	SetInFlight(op string, n int)
}

const (
	submitPending = "pending"
	submitInline  = "inline"
	submitError   = "error"
)
