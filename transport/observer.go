package transport

import "time"

// Observer receives tracing/metrics callbacks for the request pipeline and
// node lifecycle; consumed only at this interface (spec §6) — no
// implementation (logging, Prometheus, tracing backend) is in scope here.
type Observer interface {
	OnRequestStart(host string)
	OnRequestSuccess(host string, latency time.Duration)
	OnRequestFailure(host string, latency time.Duration, err error)

	OnNodeStart(host string)
	OnNodeSuccess(host string)
	OnNodeError(host string, err error)
}

// NoopObserver discards every callback, the default when no Observer is
// configured; branchless in the same sense as DefaultLogger.
type NoopObserver struct{}

func (NoopObserver) OnRequestStart(string)                      {}
func (NoopObserver) OnRequestSuccess(string, time.Duration)      {}
func (NoopObserver) OnRequestFailure(string, time.Duration, error) {}
func (NoopObserver) OnNodeStart(string)                          {}
func (NoopObserver) OnNodeSuccess(string)                        {}
func (NoopObserver) OnNodeError(string, error)                   {}
