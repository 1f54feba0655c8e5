package cqldriver

import (
	"testing"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/transport"
)

func valueOf(t *testing.T, v interface{}) frame.Value {
	t.Helper()
	opt, err := frame.InferDescriptor(v)
	if err != nil {
		t.Fatal(err)
	}
	b, err := frame.Marshal(&opt, v, frame.CQLv4)
	if err != nil {
		t.Fatal(err)
	}
	return frame.Value{N: frame.Int(len(b)), Bytes: b, Type: &opt}
}

func TestRoutingTokenNoPrimaryKey(t *testing.T) {
	t.Parallel()
	stmt := &transport.Statement{}
	if _, ok := routingToken(stmt); ok {
		t.Fatal("expected no routing token without PkIndexes")
	}
}

func TestRoutingTokenSingleComponent(t *testing.T) {
	t.Parallel()
	v := valueOf(t, int32(42))
	stmt := &transport.Statement{
		Values:    []frame.Value{v},
		PkIndexes: []int{0},
	}

	tok, ok := routingToken(stmt)
	if !ok {
		t.Fatal("expected a routing token")
	}
	if want := transport.MurmurToken(v.Bytes); tok != want {
		t.Fatalf("single-component routing token should hash the bare bytes: got %d, want %d", tok, want)
	}
}

func TestRoutingTokenCompositeIsDeterministic(t *testing.T) {
	t.Parallel()
	a := valueOf(t, int32(1))
	b := valueOf(t, "partition")
	stmt := &transport.Statement{
		Values:    []frame.Value{a, b},
		PkIndexes: []int{0, 1},
	}

	tok1, ok1 := routingToken(stmt)
	tok2, ok2 := routingToken(stmt)
	if !ok1 || !ok2 {
		t.Fatal("expected a routing token for a composite key")
	}
	if tok1 != tok2 {
		t.Fatalf("composite routing token is not deterministic: %d != %d", tok1, tok2)
	}

	single := transport.MurmurToken(a.Bytes)
	if tok1 == single {
		t.Fatal("composite encoding should not collapse to the bare first component's hash")
	}
}
