package frame

import "fmt"

// Value is a bound query parameter or a decoded column cell: the
// already-serialized wire bytes plus the descriptor used to produce (or
// interpret) them. N mirrors the wire [bytes] length prefix: -1 for null,
// -2 for UNSET (protocol >= 4).
type Value struct {
	N     Int
	Bytes []byte
	Type  *Option
}

const (
	lengthNull  Int = -1
	lengthUnset Int = -2
)

func NullValue(t *Option) Value { return Value{N: lengthNull, Type: t} }

func UnsetValue(t *Option) Value { return Value{N: lengthUnset, Type: t} }

func (v Value) IsNull() bool  { return v.N == lengthNull }
func (v Value) IsUnset() bool { return v.N == lengthUnset }

func (v Value) WriteTo(b *Buffer) {
	switch v.N {
	case lengthNull:
		b.WriteInt(lengthNull)
	case lengthUnset:
		b.WriteInt(lengthUnset)
	default:
		b.WriteBytes(v.Bytes)
	}
}

// ParseValue reads one [bytes] field and wraps it with t, used when
// decoding row cells against known column metadata.
func ParseValue(b *Buffer, t *Option) Value {
	n := b.ReadInt()
	if n < 0 {
		return Value{N: n, Type: t}
	}
	buf := b.Consume(int(n))
	return Value{N: n, Bytes: buf, Type: t}
}

// ColumnSpec is the (keyspace, table, name, type) column descriptor of
// spec §3.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     Option
}

// ResultMetadata is an ordered sequence of column descriptors plus an
// optional result-metadata-id (protocol >= 5) and paging state.
type ResultMetadata struct {
	Columns          []ColumnSpec
	PKIndexes        []int // partition-key column indexes, when known
	ResultMetadataID Bytes
	PagingStateBytes Bytes
	GlobalTableSpec  bool
	Keyspace, Table  string
}

// PagingState returns the opaque cursor to resume this result set at its
// next page, or nil when the server indicated no further pages remain.
func (m ResultMetadata) PagingState() Bytes { return m.PagingStateBytes }

// Row is an ordered sequence of cells, positionally aligned with a
// ResultMetadata's Columns.
type Row []Value

func (r Row) Unmarshal(i int, dst interface{}) error {
	if i < 0 || i >= len(r) {
		return fmt.Errorf("column index %d out of range (row has %d columns)", i, len(r))
	}
	return Unmarshal(r[i].Type, r[i].Bytes, dst)
}
