package transport

import (
	"fmt"

	"github.com/kulezi/cqldriver/frame"
	. "github.com/kulezi/cqldriver/frame/response"
)

// responseAsError returns res itself when it is a server-reported
// frame.CodedError, and an "unexpected response" error otherwise.
func responseAsError(res frame.Response) error {
	if v, ok := res.(frame.CodedError); ok {
		return v
	}
	return fmt.Errorf("unexpected response %T, %+v", res, res)
}

// isRetryableServerError reports whether err is a server-reported error the
// default retry policy considers safe to retry (spec §7): read/write
// timeouts, unavailability and read/write failures. Overloaded and
// bootstrapping errors are not included.
func isRetryableServerError(err error) bool {
	switch err.(type) {
	case *Unavailable, *ReadTimeout, *WriteTimeout, *ReadFailure, *WriteFailure:
		return true
	}
	return false
}

// PoolBusyError is spec §7's PoolBusy: a borrow was refused because the
// least-loaded connection available had already reached
// MaxRequestsPerConnection in-flight requests.
type PoolBusyError struct {
	Addr        string
	MaxInFlight int
	InFlight    int
}

func (e *PoolBusyError) Error() string {
	return fmt.Sprintf("pool busy: %s has %d in-flight requests (max %d)", e.Addr, e.InFlight, e.MaxInFlight)
}

// PoolBusy builds a PoolBusyError for a borrow refused on addr.
func PoolBusy(addr string, maxInFlight, inFlight int) error {
	return &PoolBusyError{Addr: addr, MaxInFlight: maxInFlight, InFlight: inFlight}
}

// PreparedStatementIdMismatchError is spec §7's
// PreparedStatementIdMismatch: a reprepare issued after an UNPREPARED
// response returned a queryId different from the one the cache already
// held, which should never happen for an unchanged keyspace and CQL text
// and is treated as a hard failure rather than silently adopted.
type PreparedStatementIdMismatchError struct {
	Keyspace   string
	CQL        string
	Original   []byte
	Reprepared []byte
}

func (e *PreparedStatementIdMismatchError) Error() string {
	return fmt.Sprintf("prepared statement id mismatch for %q (keyspace %q): reprepare returned %x, expected %x",
		e.CQL, e.Keyspace, e.Reprepared, e.Original)
}

// PreparedStatementIdMismatch builds a PreparedStatementIdMismatchError.
func PreparedStatementIdMismatch(keyspace, cql string, original, reprepared []byte) error {
	return &PreparedStatementIdMismatchError{Keyspace: keyspace, CQL: cql, Original: original, Reprepared: reprepared}
}
