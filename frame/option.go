package frame

// OpID tags the primitive and composite CQL types. The numeric values
// match the protocol's [option] id assignments so Option round-trips
// through RESULT/PREPARED metadata without translation.
type OpID Short

const (
	CustomID    OpID = 0x0000
	AsciiID     OpID = 0x0001
	BigIntID    OpID = 0x0002
	BlobID      OpID = 0x0003
	BooleanID   OpID = 0x0004
	CounterID   OpID = 0x0005
	DecimalID   OpID = 0x0006
	DoubleID    OpID = 0x0007
	FloatID     OpID = 0x0008
	IntID       OpID = 0x0009
	TextID      OpID = 0x000A
	TimestampID OpID = 0x000B
	UuidID      OpID = 0x000C
	VarcharID   OpID = 0x000D
	VarintID    OpID = 0x000E
	TimeUuidID  OpID = 0x000F
	InetID      OpID = 0x0010
	DateID      OpID = 0x0011
	TimeID      OpID = 0x0012
	SmallIntID  OpID = 0x0013
	TinyIntID   OpID = 0x0014
	DurationID  OpID = 0x0015
	ListID      OpID = 0x0020
	MapID       OpID = 0x0021
	SetID       OpID = 0x0022
	UDTID       OpID = 0x0030
	TupleID     OpID = 0x0031
	VectorID    OpID = 0x0100 // custom type, identified by class name in practice; kept as a distinct id for in-process descriptors.
)

// Option is the value type descriptor tree of spec §3: a tagged union over
// primitives and the composite shapes (List/Set/Map/Tuple/UDT/Vector/
// Custom). Every composite fully determines its child shapes at all
// depths, satisfying the invariant in spec §3.
type Option struct {
	ID OpID

	List *ListOption
	Set  *ListOption
	Map  *MapOption
	UDT  *UDTOption

	Tuple  []Option
	Vector *VectorOption

	Custom string // class name, only set when ID == CustomID
}

type ListOption struct {
	Element Option
}

type MapOption struct {
	Key   Option
	Value Option
}

type UDTOption struct {
	Keyspace   string
	Name       string
	FieldNames []string
	FieldTypes []Option
}

// VectorOption is the Scylla/Cassandra vector<T, N> custom type: a fixed
// number of elements of a homogeneous element type, packed without
// per-element length prefixes when Element has a fixed wire size.
type VectorOption struct {
	Element   Option
	Dimension int
}

func Primitive(id OpID) Option { return Option{ID: id} }

func List(elem Option) Option { return Option{ID: ListID, List: &ListOption{Element: elem}} }

func Set(elem Option) Option { return Option{ID: SetID, Set: &ListOption{Element: elem}} }

func Map(key, value Option) Option {
	return Option{ID: MapID, Map: &MapOption{Key: key, Value: value}}
}

func Tuple(elems ...Option) Option { return Option{ID: TupleID, Tuple: elems} }

func UDT(keyspace, name string, fieldNames []string, fieldTypes []Option) Option {
	return Option{ID: UDTID, UDT: &UDTOption{Keyspace: keyspace, Name: name, FieldNames: fieldNames, FieldTypes: fieldTypes}}
}

func Vector(elem Option, dimension int) Option {
	return Option{ID: VectorID, Vector: &VectorOption{Element: elem, Dimension: dimension}}
}

func Custom(className string) Option { return Option{ID: CustomID, Custom: className} }

// FixedSize returns the wire size of o's primitive encoding, and false for
// variable-length or composite types. Used by the Vector codec to decide
// whether elements need per-element length prefixes.
func (o Option) FixedSize() (int, bool) {
	switch o.ID {
	case BooleanID, TinyIntID:
		return 1, true
	case SmallIntID:
		return 2, true
	case IntID, FloatID, DateID:
		return 4, true
	case BigIntID, CounterID, DoubleID, TimestampID, TimeID:
		return 8, true
	case UuidID, TimeUuidID:
		return 16, true
	default:
		return 0, false
	}
}

// WriteTo encodes the type descriptor itself (not a value), as used in
// RESULT/PREPARED metadata.
func (o Option) WriteTo(b *Buffer) {
	b.WriteShort(Short(o.ID))
	switch o.ID {
	case ListID:
		o.List.Element.WriteTo(b)
	case SetID:
		o.Set.Element.WriteTo(b)
	case MapID:
		o.Map.Key.WriteTo(b)
		o.Map.Value.WriteTo(b)
	case UDTID:
		b.WriteString(o.UDT.Keyspace)
		b.WriteString(o.UDT.Name)
		b.WriteShort(Short(len(o.UDT.FieldNames)))
		for i := range o.UDT.FieldNames {
			b.WriteString(o.UDT.FieldNames[i])
			o.UDT.FieldTypes[i].WriteTo(b)
		}
	case TupleID:
		b.WriteShort(Short(len(o.Tuple)))
		for _, e := range o.Tuple {
			e.WriteTo(b)
		}
	case CustomID:
		b.WriteString(o.Custom)
	}
}

// ParseOption decodes a type descriptor from RESULT/PREPARED metadata.
func ParseOption(b *Buffer) Option {
	id := OpID(b.ReadShort())
	o := Option{ID: id}
	switch id {
	case ListID:
		e := ParseOption(b)
		o.List = &ListOption{Element: e}
	case SetID:
		e := ParseOption(b)
		o.Set = &ListOption{Element: e}
	case MapID:
		k := ParseOption(b)
		v := ParseOption(b)
		o.Map = &MapOption{Key: k, Value: v}
	case UDTID:
		ks := b.ReadString()
		name := b.ReadString()
		n := b.ReadShort()
		names := make([]string, n)
		types := make([]Option, n)
		for i := Short(0); i < n; i++ {
			names[i] = b.ReadString()
			types[i] = ParseOption(b)
		}
		o.UDT = &UDTOption{Keyspace: ks, Name: name, FieldNames: names, FieldTypes: types}
	case TupleID:
		n := b.ReadShort()
		elems := make([]Option, n)
		for i := Short(0); i < n; i++ {
			elems[i] = ParseOption(b)
		}
		o.Tuple = elems
	case CustomID:
		o.Custom = b.ReadString()
	}
	return o
}
