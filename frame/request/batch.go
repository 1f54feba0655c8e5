package request

import "github.com/kulezi/cqldriver/frame"

var _ frame.Request = (*Batch)(nil)

type BatchKind byte

const (
	BatchLogged   BatchKind = 0
	BatchUnlogged BatchKind = 1
	BatchCounter  BatchKind = 2
)

// BatchStatement is one child of a BATCH request: either a bare CQL string
// or a prepared statement id, each with its own positional bind values.
type BatchStatement struct {
	IsPrepared bool
	Query      string
	ID         []byte
	Values     []frame.Value
}

func (s BatchStatement) writeTo(b *frame.Buffer) {
	if s.IsPrepared {
		b.WriteByte(1)
		b.WriteShortBytes(s.ID)
	} else {
		b.WriteByte(0)
		b.WriteLongString(s.Query)
	}
	b.WriteShort(frame.Short(len(s.Values)))
	for _, v := range s.Values {
		v.WriteTo(b)
	}
}

// Batch bundles several statements (Simple or Bound) into one atomic
// request; there is no per-statement metadata skip and no page size, so it
// shares only the consistency/serial-consistency/timestamp/keyspace part
// of QueryParams' flag layout.
type Batch struct {
	Version     frame.ProtocolVersion
	Kind        BatchKind
	Statements  []BatchStatement
	Consistency frame.Consistency
	Params      QueryParams
}

func (bt *Batch) WriteTo(b *frame.Buffer) {
	b.WriteByte(byte(bt.Kind))
	b.WriteShort(frame.Short(len(bt.Statements)))
	for _, s := range bt.Statements {
		s.writeTo(b)
	}

	b.WriteShort(bt.Consistency)

	var f uint32
	if bt.Params.HasSerialConsistency {
		f |= FlagWithSerialConsistency
	}
	if bt.Params.HasTimestamp {
		f |= FlagWithDefaultTimestamp
	}
	if bt.Version.SupportsKeyspaceInRequest() && bt.Params.Keyspace != "" {
		f |= FlagWithKeyspace
	}

	if bt.Version.SupportsKeyspaceInRequest() {
		b.WriteInt(frame.Int(f))
	} else {
		b.WriteByte(byte(f))
	}
	if f&FlagWithSerialConsistency != 0 {
		b.WriteShort(bt.Params.SerialConsistency)
	}
	if f&FlagWithDefaultTimestamp != 0 {
		b.WriteLong(bt.Params.Timestamp)
	}
	if f&FlagWithKeyspace != 0 {
		b.WriteString(bt.Params.Keyspace)
	}
}

func (*Batch) OpCode() frame.OpCode {
	return frame.OpBatch
}
