// Package gocql is a drop-in adapter layer over cqldriver, mirroring
// enough of github.com/gocql/gocql's public surface (ClusterConfig,
// Session, Query, Iter, Scanner, TypeInfo) that existing gocql call sites
// can switch their import path without a rewrite.
package gocql

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/kulezi/cqldriver/frame"
)

type unsetColumn struct{}

// UnsetValue represents a value used in a query binding that will be
// ignored by Cassandra/Scylla (protocol >= 4 only).
var UnsetValue = unsetColumn{}

type Duration struct {
	Months      int32
	Days        int32
	Nanoseconds int64
}

type RetryPolicy interface{}
type SpeculativeExecutionPolicy interface{}
type SerialConsistency int
type QueryObserver interface{}
type Tracer interface{}
type Compressor interface{}

type SimpleRetryPolicy struct {
	NumRetries int
}

type ColumnInfo struct {
	Keyspace string
	Table    string
	Name     string
	TypeInfo TypeInfo
}

// Type is a CQL column type id, aliased onto the wire codec's own
// descriptor id so wrapping an Option never needs a lookup table.
type Type frame.OpID

const (
	TypeCustom    = Type(frame.CustomID)
	TypeAscii     = Type(frame.AsciiID)
	TypeBigInt    = Type(frame.BigIntID)
	TypeBlob      = Type(frame.BlobID)
	TypeBoolean   = Type(frame.BooleanID)
	TypeCounter   = Type(frame.CounterID)
	TypeDecimal   = Type(frame.DecimalID)
	TypeDouble    = Type(frame.DoubleID)
	TypeFloat     = Type(frame.FloatID)
	TypeInt       = Type(frame.IntID)
	TypeText      = Type(frame.TextID)
	TypeTimestamp = Type(frame.TimestampID)
	TypeUUID      = Type(frame.UuidID)
	TypeVarchar   = Type(frame.VarcharID)
	TypeVarint    = Type(frame.VarintID)
	TypeTimeUUID  = Type(frame.TimeUuidID)
	TypeInet      = Type(frame.InetID)
	TypeDate      = Type(frame.DateID)
	TypeTime      = Type(frame.TimeID)
	TypeSmallInt  = Type(frame.SmallIntID)
	TypeTinyInt   = Type(frame.TinyIntID)
	TypeDuration  = Type(frame.DurationID)
	TypeList      = Type(frame.ListID)
	TypeMap       = Type(frame.MapID)
	TypeSet       = Type(frame.SetID)
	TypeUDT       = Type(frame.UDTID)
	TypeTuple     = Type(frame.TupleID)
)

var typeNames = map[Type]string{
	TypeCustom: "custom", TypeAscii: "ascii", TypeBigInt: "bigint", TypeBlob: "blob",
	TypeBoolean: "boolean", TypeCounter: "counter", TypeDecimal: "decimal", TypeDouble: "double",
	TypeFloat: "float", TypeInt: "int", TypeText: "text", TypeTimestamp: "timestamp",
	TypeUUID: "uuid", TypeVarchar: "varchar", TypeVarint: "varint", TypeTimeUUID: "timeuuid",
	TypeInet: "inet", TypeDate: "date", TypeTime: "time", TypeSmallInt: "smallint",
	TypeTinyInt: "tinyint", TypeDuration: "duration", TypeList: "list", TypeMap: "map",
	TypeSet: "set", TypeUDT: "udt", TypeTuple: "tuple",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(0x%x)", uint16(t))
}

var ErrNotFound = fmt.Errorf("not found")

type Consistency = frame.Consistency

const (
	Any         Consistency = 0x00
	One         Consistency = 0x01
	Two         Consistency = 0x02
	Three       Consistency = 0x03
	Quorum      Consistency = 0x04
	All         Consistency = 0x05
	LocalQuorum Consistency = 0x06
	EachQuorum  Consistency = 0x07
	Serial      Consistency = 0x08
	LocalSerial Consistency = 0x09
	LocalOne    Consistency = 0x0A
)

type SnappyCompressor struct{}

type Authenticator interface{}

type PasswordAuthenticator struct {
	Username, Password string
}

// TypeInfo describes a Cassandra/Scylla column type.
type TypeInfo interface {
	Type() Type
	Version() byte
	Custom() string

	// New creates a pointer to an empty Go value of the type the
	// TypeInfo describes.
	New() interface{}
}

type NativeType struct {
	proto  byte
	typ    Type
	custom string // only set when typ == TypeCustom
}

func NewNativeType(proto byte, typ Type, custom string) NativeType {
	return NativeType{proto, typ, custom}
}

func (t NativeType) New() interface{}  { return reflect.New(goType(t)).Interface() }
func (t NativeType) Type() Type        { return t.typ }
func (t NativeType) Version() byte     { return t.proto }
func (t NativeType) Custom() string    { return t.custom }

func (t NativeType) String() string {
	if t.typ == TypeCustom {
		return fmt.Sprintf("%s(%s)", t.typ, t.custom)
	}
	return t.typ.String()
}

type CollectionType struct {
	NativeType
	Key  TypeInfo // only set for TypeMap
	Elem TypeInfo // only set for TypeMap, TypeList, TypeSet
}

func (t CollectionType) New() interface{} { return reflect.New(goType(t)).Interface() }

func (t CollectionType) String() string {
	switch t.typ {
	case TypeMap:
		return fmt.Sprintf("%s(%s, %s)", t.typ, t.Key, t.Elem)
	case TypeList, TypeSet:
		return fmt.Sprintf("%s(%s)", t.typ, t.Elem)
	default:
		return t.typ.String()
	}
}

type TupleTypeInfo struct {
	NativeType
	Elems []TypeInfo
}

func (t TupleTypeInfo) New() interface{} { return reflect.New(goType(t)).Interface() }

func (t TupleTypeInfo) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s(", t.typ)
	for i, elem := range t.Elems {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s", elem)
	}
	buf.WriteByte(')')
	return buf.String()
}

type UDTField struct {
	Name string
	Type TypeInfo
}

type UDTTypeInfo struct {
	NativeType
	KeySpace string
	Name     string
	Elements []UDTField
}

func (u UDTTypeInfo) New() interface{} { return reflect.New(goType(u)).Interface() }

func (u UDTTypeInfo) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s.%s{", u.KeySpace, u.Name)
	for i, e := range u.Elements {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, "%s=%v", e.Name, e.Type)
	}
	buf.WriteByte('}')
	return buf.String()
}

// wrapOption adapts a wire codec Option descriptor to the TypeInfo
// interface this shim's callers expect.
func wrapOption(o *frame.Option) TypeInfo {
	nt := NewNativeType(0x04, Type(o.ID), o.Custom)
	switch o.ID {
	case frame.ListID:
		return CollectionType{NativeType: nt, Elem: wrapOption(&o.List.Element)}
	case frame.SetID:
		return CollectionType{NativeType: nt, Elem: wrapOption(&o.Set.Element)}
	case frame.MapID:
		return CollectionType{NativeType: nt, Key: wrapOption(&o.Map.Key), Elem: wrapOption(&o.Map.Value)}
	case frame.TupleID:
		elems := make([]TypeInfo, len(o.Tuple))
		for i := range o.Tuple {
			elems[i] = wrapOption(&o.Tuple[i])
		}
		return TupleTypeInfo{NativeType: nt, Elems: elems}
	case frame.UDTID:
		return UDTTypeInfo{
			NativeType: nt,
			KeySpace:   o.UDT.Keyspace,
			Name:       o.UDT.Name,
			Elements:   udtFields(o.UDT),
		}
	default:
		return nt
	}
}

func udtFields(udt *frame.UDTOption) []UDTField {
	fields := make([]UDTField, len(udt.FieldNames))
	for i := range fields {
		fields[i] = UDTField{Name: udt.FieldNames[i], Type: wrapOption(&udt.FieldTypes[i])}
	}
	return fields
}

// goType returns the reflect.Type of the canonical Go representation for
// t, matching frame.DefaultRuntimeType's choices so New() and Unmarshal
// agree on a type.
func goType(t TypeInfo) reflect.Type {
	switch v := t.(type) {
	case CollectionType:
		switch v.typ {
		case TypeList, TypeSet:
			return reflect.TypeOf([]interface{}(nil))
		case TypeMap:
			return reflect.TypeOf(frame.MapPairs(nil))
		}
	case TupleTypeInfo:
		return reflect.TypeOf([]interface{}(nil))
	case UDTTypeInfo:
		return reflect.TypeOf(map[string]interface{}(nil))
	}
	return reflect.TypeOf(frame.DefaultRuntimeType(frame.Primitive(frame.OpID(t.Type()))))
}
