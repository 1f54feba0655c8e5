package transport

import (
	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/frame/response"
)

// Statement is the driver-internal representation of spec §3's Statement
// variant: Simple statements carry Content and a nil ID; Bound statements
// (the result of Prepare) carry a queryId plus the prepared metadata.
type Statement struct {
	Content           string
	ID                []byte
	ResultMetadataID  []byte
	Values            []frame.Value
	PkIndexes         []int
	Metadata          *frame.ResultMetadata
	Consistency       frame.Consistency
	SerialConsistency frame.Consistency
	PageSize          int32
	Compression       bool
	Idempotent        bool
	NoSkipMetadata    bool
}

// PkCnt reports the number of columns in this statement's partition key,
// used to decide whether token-aware routing applies.
func (s Statement) PkCnt() int { return len(s.PkIndexes) }

// Clone returns a deep-enough copy for concurrent use by one in-flight
// request: Values is copied since bound parameters may be mutated between
// retries.
func (s Statement) Clone() Statement {
	c := s
	if s.Values != nil {
		c.Values = make([]frame.Value, len(s.Values))
		copy(c.Values, s.Values)
	}
	return c
}

// QueryResult is the driver-internal shape of one page, translated from a
// response.Rows/Void/SetKeyspace/SchemaChange RESULT frame.
type QueryResult struct {
	Rows          []frame.Row
	Metadata      *frame.ResultMetadata
	PagingState   []byte
	HasMorePages  bool
	Keyspace      string
	SchemaChanged bool
}

// MakeQueryResult translates a parsed RESULT response into a QueryResult,
// falling back to the statement's cached metadata when the server elided
// it (the NoMetadata flag, set after the first page of an unchanged schema).
func MakeQueryResult(res frame.Response, cached *frame.ResultMetadata) (QueryResult, error) {
	switch r := res.(type) {
	case *response.Void:
		return QueryResult{}, nil
	case *response.Rows:
		meta := &r.Metadata
		if len(meta.Columns) == 0 && cached != nil {
			meta = cached
		}
		return QueryResult{
			Rows:         r.Rows,
			Metadata:     meta,
			PagingState:  r.Metadata.PagingState(),
			HasMorePages: r.HasMorePages(),
		}, nil
	case *response.SetKeyspace:
		return QueryResult{Keyspace: r.Keyspace}, nil
	case *response.SchemaChange:
		return QueryResult{SchemaChanged: true}, nil
	default:
		return QueryResult{}, responseAsError(res)
	}
}

// Reply is what a connection hands back to whoever is waiting on a stream
// id: the decoded response body, or the error that stopped it arriving.
type Reply struct {
	Header   frame.Header
	Response frame.Response
	Err      error
}

// ResponseHandler is a single-assignment future for one in-flight request.
type ResponseHandler chan Reply

func MakeResponseHandler() ResponseHandler {
	return make(ResponseHandler, 1)
}

func MakeResponseHandlerWithError(err error) ResponseHandler {
	h := make(ResponseHandler, 1)
	h <- Reply{Err: err}
	return h
}
