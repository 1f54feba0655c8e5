package transport

import "github.com/kulezi/cqldriver/frame"

// RetryDecision is the request pipeline's next move after a recoverable
// error (spec §4.7, §6's retry policy collaborator).
type RetryDecision int

const (
	DontRetry RetryDecision = iota
	RetrySameNode
	RetryNextNode
)

// RetryInfo is everything a RetryDecider needs to decide: the error that
// occurred and the statement's idempotency/consistency.
type RetryInfo struct {
	Error       error
	Idempotent  bool
	Consistency frame.Consistency
}

// RetryDecider tracks the number of retries already attempted for one
// logical request; NewRetryDecider is called once per request.
type RetryDecider interface {
	Decide(RetryInfo) RetryDecision
	Reset()
}

// RetryPolicy is the pluggable collaborator producing a fresh RetryDecider
// per request (spec §6).
type RetryPolicy interface {
	NewRetryDecider() RetryDecider
}

// DefaultRetryPolicy retries a read/write timeout or unavailable error once
// on the same node, then gives up; I/O errors before any bytes were read
// move to the next node since the statement may not have reached the
// coordinator.
type DefaultRetryPolicy struct{}

func (DefaultRetryPolicy) NewRetryDecider() RetryDecider {
	return &defaultRetryDecider{}
}

type defaultRetryDecider struct {
	attempts int
}

func (d *defaultRetryDecider) Reset() { d.attempts = 0 }

func (d *defaultRetryDecider) Decide(ri RetryInfo) RetryDecision {
	if d.attempts >= 1 {
		return DontRetry
	}
	d.attempts++

	switch ri.Error.(type) {
	case ioError:
		return RetryNextNode
	}
	if isRetryableServerError(ri.Error) {
		return RetrySameNode
	}
	return DontRetry
}

// NoRetryPolicy never retries: every recoverable error is surfaced to the
// caller immediately.
type NoRetryPolicy struct{}

func (NoRetryPolicy) NewRetryDecider() RetryDecider { return noRetryDecider{} }

type noRetryDecider struct{}

func (noRetryDecider) Reset()                  {}
func (noRetryDecider) Decide(RetryInfo) RetryDecision { return DontRetry }
