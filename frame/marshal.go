package frame

import (
	"math"
	"math/big"
	"net"
	"reflect"
	"time"

	inf "gopkg.in/inf.v0"
)

// MapPair is one key/value entry of a Map value. Encoding preserves the
// order of the slice (insertion order); decoding returns pairs in the
// order the server sent them, which is not guaranteed to be meaningful.
type MapPair struct {
	Key   interface{}
	Value interface{}
}

type MapPairs []MapPair

// Marshal encodes a runtime value against descriptor t for protocol
// version v, returning the raw cell bytes (the "V" in [bytes]). It fails
// with InvalidType when value's shape is incompatible with t, and with
// NullInCollection when a nil element appears inside a List/Set/Map.
func Marshal(t *Option, value interface{}, v ProtocolVersion) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	var b Buffer
	if err := marshalInto(&b, *t, value, v); err != nil {
		return nil, err
	}
	if err := b.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes raw cell bytes against descriptor t into dst, a
// pointer to a Go value of the type produced by DefaultRuntimeType(t) (or
// a compatible one). It fails with InvalidValue on malformed bytes.
func Unmarshal(t *Option, data []byte, dst interface{}) error {
	val, err := unmarshalValue(*t, data)
	if err != nil {
		return err
	}
	return assign(dst, val)
}

func assign(dst interface{}, val interface{}) error {
	switch d := dst.(type) {
	case *interface{}:
		*d = val
		return nil
	case *string:
		s, ok := val.(string)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *string", val)
		}
		*d = s
	case *int64:
		n, ok := val.(int64)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *int64", val)
		}
		*d = n
	case *int32:
		n, ok := val.(int32)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *int32", val)
		}
		*d = n
	case *bool:
		n, ok := val.(bool)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *bool", val)
		}
		*d = n
	case *[]byte:
		n, ok := val.([]byte)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *[]byte", val)
		}
		*d = n
	case *int16:
		n, ok := val.(int16)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *int16", val)
		}
		*d = n
	case *int8:
		n, ok := val.(int8)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *int8", val)
		}
		*d = n
	case *float32:
		n, ok := val.(float32)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *float32", val)
		}
		*d = n
	case *float64:
		n, ok := val.(float64)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *float64", val)
		}
		*d = n
	case *UUID:
		u, ok := val.(UUID)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *UUID", val)
		}
		*d = u
	case *time.Time:
		tm, ok := val.(time.Time)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *time.Time", val)
		}
		*d = tm
	case *net.IP:
		ip, ok := val.(net.IP)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to *net.IP", val)
		}
		*d = ip
	case **big.Int:
		bi, ok := val.(*big.Int)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to **big.Int", val)
		}
		*d = bi
	case **inf.Dec:
		dec, ok := val.(*inf.Dec)
		if !ok {
			return codecErrorf(InvalidValue, "cannot assign %T to **inf.Dec", val)
		}
		*d = dec
	default:
		rv := reflect.ValueOf(dst)
		if rv.Kind() != reflect.Ptr || rv.IsNil() || val == nil || !reflect.TypeOf(val).AssignableTo(rv.Elem().Type()) {
			return codecErrorf(InvalidValue, "unsupported destination type %T", dst)
		}
		rv.Elem().Set(reflect.ValueOf(val))
	}
	return nil
}

func marshalInto(b *Buffer, t Option, value interface{}, v ProtocolVersion) error {
	switch t.ID {
	case AsciiID, TextID, VarcharID:
		s, ok := value.(string)
		if !ok {
			return codecErrorf(InvalidType, "expected string for %v, got %T", t.ID, value)
		}
		b.Write([]byte(s))
	case BlobID:
		bs, ok := value.([]byte)
		if !ok {
			return codecErrorf(InvalidType, "expected []byte for Blob, got %T", value)
		}
		b.Write(bs)
	case BooleanID:
		bv, ok := value.(bool)
		if !ok {
			return codecErrorf(InvalidType, "expected bool, got %T", value)
		}
		if bv {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	case TinyIntID:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		b.WriteByte(byte(int8(n)))
	case SmallIntID:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		b.WriteShort(Short(int16(n)))
	case IntID:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		b.WriteInt(Int(int32(n)))
	case BigIntID, CounterID:
		n, err := toInt64(value)
		if err != nil {
			return err
		}
		b.WriteLong(n)
	case FloatID:
		f, ok := value.(float32)
		if !ok {
			return codecErrorf(InvalidType, "expected float32, got %T", value)
		}
		b.WriteInt(Int(math.Float32bits(f)))
	case DoubleID:
		f, ok := value.(float64)
		if !ok {
			return codecErrorf(InvalidType, "expected float64, got %T", value)
		}
		b.WriteLong(int64(math.Float64bits(f)))
	case TimestampID:
		tm, ok := value.(time.Time)
		if !ok {
			return codecErrorf(InvalidType, "expected time.Time, got %T", value)
		}
		b.WriteLong(EncodeTimestamp(tm))
	case DateID:
		d, ok := value.(LocalDate)
		if !ok {
			return codecErrorf(InvalidType, "expected LocalDate, got %T", value)
		}
		b.WriteInt(Int(EncodeDate(d)))
	case TimeID:
		lt, ok := value.(LocalTime)
		if !ok {
			return codecErrorf(InvalidType, "expected LocalTime, got %T", value)
		}
		b.WriteLong(EncodeTime(lt))
	case UuidID, TimeUuidID:
		u, ok := value.(UUID)
		if !ok {
			return codecErrorf(InvalidType, "expected UUID, got %T", value)
		}
		b.WriteUUID(u)
	case VarintID:
		bi, ok := value.(*big.Int)
		if !ok {
			return codecErrorf(InvalidType, "expected *big.Int, got %T", value)
		}
		writeVarint(b, bi)
	case DecimalID:
		d, ok := value.(*inf.Dec)
		if !ok {
			return codecErrorf(InvalidType, "expected *inf.Dec, got %T", value)
		}
		b.Write(EncodeDecimal(d))
	case InetID:
		ip, ok := value.(net.IP)
		if !ok {
			return codecErrorf(InvalidType, "expected net.IP, got %T", value)
		}
		v4 := ip.To4()
		if v4 != nil {
			b.Write(v4)
		} else {
			b.Write(ip.To16())
		}
	case DurationID:
		d, ok := value.(Duration)
		if !ok {
			return codecErrorf(InvalidType, "expected Duration, got %T", value)
		}
		b.Write(EncodeDuration(d))
	case ListID:
		return marshalSequence(b, t.List.Element, value, v)
	case SetID:
		return marshalSequence(b, t.Set.Element, value, v)
	case MapID:
		return marshalMap(b, *t.Map, value, v)
	case TupleID:
		return marshalTuple(b, t.Tuple, value, v)
	case UDTID:
		return marshalUDT(b, *t.UDT, value, v)
	case VectorID:
		return marshalVector(b, *t.Vector, value, v)
	case CustomID:
		bs, ok := value.([]byte)
		if !ok {
			return codecErrorf(InvalidType, "expected []byte for Custom(%s), got %T", t.Custom, value)
		}
		b.Write(bs)
	default:
		return codecErrorf(InvalidType, "unknown type id %v", t.ID)
	}
	return nil
}

func toInt64(value interface{}) (int64, error) {
	switch n := value.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, codecErrorf(InvalidType, "expected integer value, got %T", value)
	}
}

// marshalElementBytes encodes one collection/tuple element, returning nil
// (meaning "write a -1 length null") for a literal nil.
func marshalElementBytes(t Option, value interface{}, v ProtocolVersion) ([]byte, bool, error) {
	if value == nil {
		return nil, true, nil
	}
	var eb Buffer
	if err := marshalInto(&eb, t, value, v); err != nil {
		return nil, false, err
	}
	if err := eb.Error(); err != nil {
		return nil, false, err
	}
	return eb.Bytes(), false, nil
}

func marshalSequence(b *Buffer, elem Option, value interface{}, v ProtocolVersion) error {
	items, err := toSlice(value)
	if err != nil {
		return err
	}
	b.WriteInt(Int(len(items)))
	for _, item := range items {
		if item == nil {
			return codecErrorf(NullInCollection, "null element is not allowed inside List/Set")
		}
		eb, isNull, err := marshalElementBytes(elem, item, v)
		if err != nil {
			return err
		}
		if isNull {
			b.WriteInt(-1)
			continue
		}
		b.WriteInt(Int(len(eb)))
		b.Write(eb)
	}
	return nil
}

func toSlice(value interface{}) ([]interface{}, error) {
	switch s := value.(type) {
	case []interface{}:
		return s, nil
	default:
		return nil, codecErrorf(InvalidType, "expected a slice, got %T", value)
	}
}

func marshalMap(b *Buffer, m MapOption, value interface{}, v ProtocolVersion) error {
	pairs, ok := value.(MapPairs)
	if !ok {
		return codecErrorf(InvalidType, "expected MapPairs, got %T", value)
	}
	b.WriteInt(Int(len(pairs)))
	for _, p := range pairs {
		if p.Key == nil {
			return codecErrorf(NullInCollection, "null key is not allowed inside Map")
		}
		kb, _, err := marshalElementBytes(m.Key, p.Key, v)
		if err != nil {
			return err
		}
		b.WriteInt(Int(len(kb)))
		b.Write(kb)

		if p.Value == nil {
			return codecErrorf(NullInCollection, "null value is not allowed inside Map")
		}
		vb, isNull, err := marshalElementBytes(m.Value, p.Value, v)
		if err != nil {
			return err
		}
		if isNull {
			b.WriteInt(-1)
			continue
		}
		b.WriteInt(Int(len(vb)))
		b.Write(vb)
	}
	return nil
}

func marshalTuple(b *Buffer, elems []Option, value interface{}, v ProtocolVersion) error {
	items, err := toSlice(value)
	if err != nil {
		return err
	}
	if len(items) != len(elems) {
		return codecErrorf(InvalidType, "tuple arity mismatch: descriptor has %d elements, value has %d", len(elems), len(items))
	}
	for i, item := range items {
		if item == nil {
			b.WriteInt(-1)
			continue
		}
		eb, isNull, err := marshalElementBytes(elems[i], item, v)
		if err != nil {
			return err
		}
		if isNull {
			b.WriteInt(-1)
			continue
		}
		b.WriteInt(Int(len(eb)))
		b.Write(eb)
	}
	return nil
}

func marshalUDT(b *Buffer, u UDTOption, value interface{}, v ProtocolVersion) error {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return codecErrorf(InvalidType, "expected map[string]interface{} for UDT, got %T", value)
	}
	for i, name := range u.FieldNames {
		fv, present := fields[name]
		if !present || fv == nil {
			b.WriteInt(-1)
			continue
		}
		eb, isNull, err := marshalElementBytes(u.FieldTypes[i], fv, v)
		if err != nil {
			return err
		}
		if isNull {
			b.WriteInt(-1)
			continue
		}
		b.WriteInt(Int(len(eb)))
		b.Write(eb)
	}
	return nil
}

func marshalVector(b *Buffer, vec VectorOption, value interface{}, v ProtocolVersion) error {
	items, err := toSlice(value)
	if err != nil {
		return err
	}
	if len(items) != vec.Dimension {
		return codecErrorf(InvalidType, "vector dimension mismatch: descriptor declares %d, value has %d", vec.Dimension, len(items))
	}
	_, fixed := vec.Element.FixedSize()
	for _, item := range items {
		if item == nil {
			return codecErrorf(NullInCollection, "null element is not allowed inside a vector")
		}
		eb, _, err := marshalElementBytes(vec.Element, item, v)
		if err != nil {
			return err
		}
		if fixed {
			b.Write(eb)
		} else {
			b.WriteInt(Int(len(eb)))
			b.Write(eb)
		}
	}
	return nil
}

func unmarshalValue(t Option, data []byte) (interface{}, error) {
	var b Buffer
	b.Write(data)
	switch t.ID {
	case AsciiID, TextID, VarcharID:
		return string(data), nil
	case BlobID, CustomID:
		return data, nil
	case BooleanID:
		if len(data) < 1 {
			return nil, codecErrorf(InvalidValue, "Boolean requires 1 byte, got %d", len(data))
		}
		return data[0] != 0, nil
	case TinyIntID:
		if len(data) < 1 {
			return nil, codecErrorf(InvalidValue, "TinyInt requires 1 byte, got %d", len(data))
		}
		return int8(data[0]), nil
	case SmallIntID:
		if len(data) < 2 {
			return nil, codecErrorf(InvalidValue, "SmallInt requires 2 bytes, got %d", len(data))
		}
		return int16(b.ReadShort()), nil
	case IntID:
		if len(data) < 4 {
			return nil, codecErrorf(InvalidValue, "Int requires 4 bytes, got %d", len(data))
		}
		return int32(b.ReadInt()), nil
	case BigIntID, CounterID:
		if len(data) < 8 {
			return nil, codecErrorf(InvalidValue, "BigInt requires 8 bytes, got %d", len(data))
		}
		return b.ReadLong(), nil
	case FloatID:
		if len(data) < 4 {
			return nil, codecErrorf(InvalidValue, "Float requires 4 bytes, got %d", len(data))
		}
		return math.Float32frombits(uint32(b.ReadInt())), nil
	case DoubleID:
		if len(data) < 8 {
			return nil, codecErrorf(InvalidValue, "Double requires 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(uint64(b.ReadLong())), nil
	case TimestampID:
		if len(data) < 8 {
			return nil, codecErrorf(InvalidValue, "Timestamp requires 8 bytes, got %d", len(data))
		}
		return DecodeTimestamp(b.ReadLong()), nil
	case DateID:
		if len(data) < 4 {
			return nil, codecErrorf(InvalidValue, "Date requires 4 bytes, got %d", len(data))
		}
		return DecodeDate(uint32(b.ReadInt())), nil
	case TimeID:
		if len(data) < 8 {
			return nil, codecErrorf(InvalidValue, "Time requires 8 bytes, got %d", len(data))
		}
		return DecodeTime(b.ReadLong()), nil
	case UuidID, TimeUuidID:
		if len(data) < 16 {
			return nil, codecErrorf(InvalidValue, "Uuid requires 16 bytes, got %d", len(data))
		}
		return b.ReadUUID(), nil
	case VarintID:
		return DecodeVarint(data), nil
	case DecimalID:
		return DecodeDecimal(data)
	case InetID:
		switch len(data) {
		case 4, 16:
			return net.IP(data), nil
		default:
			return nil, codecErrorf(InvalidValue, "Inet requires 4 or 16 bytes, got %d", len(data))
		}
	case DurationID:
		return DecodeDuration(data)
	case ListID:
		return unmarshalSequence(&b, t.List.Element)
	case SetID:
		return unmarshalSequence(&b, t.Set.Element)
	case MapID:
		return unmarshalMap(&b, *t.Map)
	case TupleID:
		return unmarshalTuple(&b, t.Tuple)
	case UDTID:
		return unmarshalUDT(&b, *t.UDT)
	case VectorID:
		return unmarshalVectorVal(&b, *t.Vector)
	default:
		return nil, codecErrorf(InvalidValue, "unknown type id %v", t.ID)
	}
}

func unmarshalSequence(b *Buffer, elem Option) ([]interface{}, error) {
	n := b.ReadInt()
	if err := b.Error(); err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, n)
	for i := Int(0); i < n; i++ {
		ln := b.ReadInt()
		if err := b.Error(); err != nil {
			return nil, err
		}
		if ln < 0 {
			out = append(out, nil)
			continue
		}
		eb := b.Consume(int(ln))
		if err := b.Error(); err != nil {
			return nil, err
		}
		v, err := unmarshalValue(elem, eb)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func unmarshalMap(b *Buffer, m MapOption) (MapPairs, error) {
	n := b.ReadInt()
	if err := b.Error(); err != nil {
		return nil, err
	}
	out := make(MapPairs, 0, n)
	for i := Int(0); i < n; i++ {
		kLen := b.ReadInt()
		kb := b.Consume(int(kLen))
		if err := b.Error(); err != nil {
			return nil, err
		}
		key, err := unmarshalValue(m.Key, kb)
		if err != nil {
			return nil, err
		}

		vLen := b.ReadInt()
		if err := b.Error(); err != nil {
			return nil, err
		}
		var val interface{}
		if vLen >= 0 {
			vb := b.Consume(int(vLen))
			if err := b.Error(); err != nil {
				return nil, err
			}
			val, err = unmarshalValue(m.Value, vb)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, MapPair{Key: key, Value: val})
	}
	return out, nil
}

func unmarshalTuple(b *Buffer, elems []Option) ([]interface{}, error) {
	out := make([]interface{}, len(elems))
	for i, t := range elems {
		ln := b.ReadInt()
		if err := b.Error(); err != nil {
			return nil, err
		}
		if ln < 0 {
			continue
		}
		eb := b.Consume(int(ln))
		if err := b.Error(); err != nil {
			return nil, err
		}
		v, err := unmarshalValue(t, eb)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func unmarshalUDT(b *Buffer, u UDTOption) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(u.FieldNames))
	for i, name := range u.FieldNames {
		if b.Remaining() == 0 {
			// Missing trailing fields decode as null (forward-compat, spec §4.1).
			out[name] = nil
			continue
		}
		ln := b.ReadInt()
		if err := b.Error(); err != nil {
			return nil, err
		}
		if ln < 0 {
			out[name] = nil
			continue
		}
		eb := b.Consume(int(ln))
		if err := b.Error(); err != nil {
			return nil, err
		}
		v, err := unmarshalValue(u.FieldTypes[i], eb)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func unmarshalVectorVal(b *Buffer, vec VectorOption) ([]interface{}, error) {
	size, fixed := vec.Element.FixedSize()
	out := make([]interface{}, vec.Dimension)
	for i := 0; i < vec.Dimension; i++ {
		var eb []byte
		if fixed {
			eb = b.Consume(size)
		} else {
			ln := b.ReadInt()
			if err := b.Error(); err != nil {
				return nil, err
			}
			eb = b.Consume(int(ln))
		}
		if err := b.Error(); err != nil {
			return nil, err
		}
		v, err := unmarshalValue(vec.Element, eb)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// DefaultRuntimeType returns a zero-valued instance of the canonical Go
// representation for t, the shape callers get back from Unmarshal when
// they don't supply their own destination type.
func DefaultRuntimeType(t Option) interface{} {
	switch t.ID {
	case AsciiID, TextID, VarcharID:
		return ""
	case BlobID, CustomID:
		return []byte(nil)
	case BooleanID:
		return false
	case TinyIntID:
		return int8(0)
	case SmallIntID:
		return int16(0)
	case IntID:
		return int32(0)
	case BigIntID, CounterID:
		return int64(0)
	case FloatID:
		return float32(0)
	case DoubleID:
		return float64(0)
	case TimestampID:
		return time.Time{}
	case DateID:
		return LocalDate{}
	case TimeID:
		return LocalTime(0)
	case UuidID, TimeUuidID:
		return UUID{}
	case VarintID:
		return big.NewInt(0)
	case DecimalID:
		return inf.NewDec(0, 0)
	case InetID:
		return net.IP(nil)
	case DurationID:
		return Duration{}
	case ListID, SetID, TupleID, VectorID:
		return []interface{}(nil)
	case MapID:
		return MapPairs(nil)
	case UDTID:
		return map[string]interface{}(nil)
	default:
		return nil
	}
}

// InferDescriptor infers a type descriptor from a runtime Go value, for
// callers that bind a value without supplying their own Option. It fails
// with Unencodable for shapes the codec cannot map to a CQL type.
func InferDescriptor(value interface{}) (Option, error) {
	switch v := value.(type) {
	case string:
		return Primitive(TextID), nil
	case []byte:
		return Primitive(BlobID), nil
	case bool:
		return Primitive(BooleanID), nil
	case int8:
		return Primitive(TinyIntID), nil
	case int16:
		return Primitive(SmallIntID), nil
	case int32:
		return Primitive(IntID), nil
	case int64:
		return Primitive(BigIntID), nil
	case int:
		return Primitive(BigIntID), nil
	case float32:
		return Primitive(FloatID), nil
	case float64:
		return Primitive(DoubleID), nil
	case time.Time:
		return Primitive(TimestampID), nil
	case LocalDate:
		return Primitive(DateID), nil
	case LocalTime:
		return Primitive(TimeID), nil
	case UUID:
		return Primitive(UuidID), nil
	case *big.Int:
		return Primitive(VarintID), nil
	case *inf.Dec:
		return Primitive(DecimalID), nil
	case net.IP:
		return Primitive(InetID), nil
	case Duration:
		return Primitive(DurationID), nil
	case []interface{}:
		if len(v) == 0 {
			return Option{}, codecErrorf(Unencodable, "cannot infer element type of an empty slice")
		}
		elem, err := InferDescriptor(v[0])
		if err != nil {
			return Option{}, err
		}
		return List(elem), nil
	default:
		return Option{}, codecErrorf(Unencodable, "cannot infer a CQL type for %T", value)
	}
}
