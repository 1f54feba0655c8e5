package request

import "github.com/kulezi/cqldriver/frame"

// Query flag bits shared by QUERY, EXECUTE and the BATCH parameter block
// (spec §4.2). Protocol >= 5 widens the flags field to 4 bytes to make room
// for WithKeyspace/WithNowInSeconds.
const (
	FlagValues                uint32 = 0x01
	FlagSkipMetadata          uint32 = 0x02
	FlagPageSize              uint32 = 0x04
	FlagWithPagingState       uint32 = 0x08
	FlagWithSerialConsistency uint32 = 0x10
	FlagWithDefaultTimestamp  uint32 = 0x20
	FlagWithNamesForValues    uint32 = 0x40
	FlagWithKeyspace          uint32 = 0x80
	FlagWithNowInSeconds      uint32 = 0x100
)

// NamedValue pairs a bind marker name with its serialized value; only
// meaningful when protocol >= 3 and the statement was issued with named
// parameters.
type NamedValue struct {
	Name  string
	Value frame.Value
}

// QueryParams is the parameter block shared by QUERY, EXECUTE and BATCH
// (one block for the whole batch). Zero-valued optional fields are omitted
// from the wire encoding; Has* booleans disambiguate a meaningful zero value
// (SerialConsistency==ANY, PageSize==0) from "not provided".
type QueryParams struct {
	Consistency frame.Consistency

	Values       []frame.Value
	NamedValues  []NamedValue
	SkipMetadata bool

	PageSize    frame.Int
	HasPageSize bool

	PagingState    frame.Bytes
	HasPagingState bool

	SerialConsistency    frame.Consistency
	HasSerialConsistency bool

	Timestamp    int64
	HasTimestamp bool

	Keyspace string // protocol >= 5

	NowInSeconds    frame.Int
	HasNowInSeconds bool
}

func (p QueryParams) flags(v frame.ProtocolVersion) uint32 {
	var f uint32
	if len(p.Values) > 0 {
		f |= FlagValues
	}
	if len(p.NamedValues) > 0 {
		f |= FlagValues | FlagWithNamesForValues
	}
	if p.SkipMetadata {
		f |= FlagSkipMetadata
	}
	if p.HasPageSize {
		f |= FlagPageSize
	}
	if p.HasPagingState {
		f |= FlagWithPagingState
	}
	if p.HasSerialConsistency {
		f |= FlagWithSerialConsistency
	}
	if p.HasTimestamp {
		f |= FlagWithDefaultTimestamp
	}
	if v.SupportsKeyspaceInRequest() && p.Keyspace != "" {
		f |= FlagWithKeyspace
	}
	if v.SupportsKeyspaceInRequest() && p.HasNowInSeconds {
		f |= FlagWithNowInSeconds
	}
	return f
}

func (p QueryParams) WriteTo(b *frame.Buffer, v frame.ProtocolVersion) {
	b.WriteShort(p.Consistency)

	f := p.flags(v)
	if v.SupportsKeyspaceInRequest() {
		b.WriteInt(frame.Int(f))
	} else {
		b.WriteByte(byte(f))
	}

	if f&FlagValues != 0 {
		if len(p.NamedValues) > 0 {
			b.WriteShort(frame.Short(len(p.NamedValues)))
			for _, nv := range p.NamedValues {
				b.WriteString(nv.Name)
				nv.Value.WriteTo(b)
			}
		} else {
			b.WriteShort(frame.Short(len(p.Values)))
			for _, val := range p.Values {
				val.WriteTo(b)
			}
		}
	}
	if f&uint32(FlagPageSize) != 0 {
		b.WriteInt(p.PageSize)
	}
	if f&uint32(FlagWithPagingState) != 0 {
		b.WriteBytes(p.PagingState)
	}
	if f&uint32(FlagWithSerialConsistency) != 0 {
		b.WriteShort(p.SerialConsistency)
	}
	if f&uint32(FlagWithDefaultTimestamp) != 0 {
		b.WriteLong(p.Timestamp)
	}
	if f&uint32(FlagWithKeyspace) != 0 {
		b.WriteString(p.Keyspace)
	}
	if f&FlagWithNowInSeconds != 0 {
		b.WriteInt(p.NowInSeconds)
	}
}
