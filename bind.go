package cqldriver

import (
	"fmt"

	"github.com/kulezi/cqldriver/frame"
)

// Bind sets the value of the pos'th bind marker. On a prepared Query the
// marker's type comes from the server's variables metadata; on an
// unprepared Query the type is inferred from v's Go type (spec §3's
// value-to-Option mapping, via frame.InferDescriptor).
func (q *Query) Bind(pos int, v interface{}) *Query {
	if q.stmt.Metadata != nil {
		return q.bindTyped(pos, v)
	}
	return q.bindInferred(pos, v)
}

func (q *Query) bindTyped(pos int, v interface{}) *Query {
	if pos < 0 || pos >= len(q.stmt.Values) {
		q.errs = append(q.errs, fmt.Errorf("bind %d: no bind marker at that position (have %d)", pos, len(q.stmt.Values)))
		return q
	}
	p := &q.stmt.Values[pos]
	b, err := frame.Marshal(p.Type, v, q.session.version)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("bind %d: %w", pos, err))
		return q
	}
	p.Bytes = b
	p.N = frame.Int(len(b))
	return q
}

func (q *Query) bindInferred(pos int, v interface{}) *Query {
	q.growValues(pos)

	opt, err := frame.InferDescriptor(v)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("bind %d: %w", pos, err))
		return q
	}
	b, err := frame.Marshal(&opt, v, q.session.version)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("bind %d: %w", pos, err))
		return q
	}
	q.stmt.Values[pos] = frame.Value{N: frame.Int(len(b)), Bytes: b, Type: &opt}
	return q
}

// BindNull marks the pos'th marker as CQL NULL.
func (q *Query) BindNull(pos int) *Query {
	if q.stmt.Metadata != nil {
		if pos < 0 || pos >= len(q.stmt.Values) {
			q.errs = append(q.errs, fmt.Errorf("bind %d: no bind marker at that position", pos))
			return q
		}
		q.stmt.Values[pos] = frame.NullValue(q.stmt.Values[pos].Type)
		return q
	}
	q.growValues(pos)
	q.stmt.Values[pos] = frame.NullValue(nil)
	return q
}

// BindUnset marks the pos'th marker as UNSET (protocol >= 4): the column
// is left untouched server-side rather than set to NULL.
func (q *Query) BindUnset(pos int) *Query {
	if pos < 0 || pos >= len(q.stmt.Values) {
		q.errs = append(q.errs, fmt.Errorf("bind %d: no bind marker at that position", pos))
		return q
	}
	q.stmt.Values[pos] = frame.UnsetValue(q.stmt.Values[pos].Type)
	return q
}

func (q *Query) growValues(pos int) {
	for i := len(q.stmt.Values); i <= pos; i++ {
		q.stmt.Values = append(q.stmt.Values, frame.Value{})
	}
}
