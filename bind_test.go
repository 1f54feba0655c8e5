package cqldriver

import (
	"testing"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/transport"
)

func unpreparedQuery() *Query {
	return &Query{
		session: &Session{version: frame.CQLv4},
		stmt:    transport.Statement{Content: "select 1"},
	}
}

func TestBindInferredGrowsValues(t *testing.T) {
	t.Parallel()
	q := unpreparedQuery()
	q.Bind(2, int32(7))

	if len(q.errs) != 0 {
		t.Fatalf("unexpected bind errors: %v", q.errs)
	}
	if len(q.stmt.Values) != 3 {
		t.Fatalf("expected 3 values after binding position 2, got %d", len(q.stmt.Values))
	}
	if q.stmt.Values[2].Type.ID != frame.IntID {
		t.Fatalf("expected bound value to infer IntID, got %v", q.stmt.Values[2].Type.ID)
	}
}

func TestBindUnsetRequiresExistingMarker(t *testing.T) {
	t.Parallel()
	q := unpreparedQuery()
	q.BindUnset(0)

	if len(q.errs) == 0 {
		t.Fatal("expected an error binding UNSET at an out-of-range position")
	}
}

func TestBindNullOnUnpreparedQuery(t *testing.T) {
	t.Parallel()
	q := unpreparedQuery()
	q.BindNull(0)

	if len(q.errs) != 0 {
		t.Fatalf("unexpected bind errors: %v", q.errs)
	}
	if !q.stmt.Values[0].IsNull() {
		t.Fatal("expected the bound value to be NULL")
	}
}

func TestBindTypedRejectsOutOfRangePosition(t *testing.T) {
	t.Parallel()
	q := unpreparedQuery()
	q.stmt.Metadata = &frame.ResultMetadata{}
	q.Bind(0, int32(1))

	if len(q.errs) == 0 {
		t.Fatal("expected an error binding a prepared query with no variables")
	}
}
