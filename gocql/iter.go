package gocql

import (
	"fmt"

	cqldriver "github.com/kulezi/cqldriver"
	"github.com/kulezi/cqldriver/frame"
)

// Iter wraps a cqldriver.Iter, adapting it to gocql's Scanner-shaped API:
// Next advances the row pointer, Scan decodes the current row.
type Iter struct {
	it  *cqldriver.Iter
	row frame.Row
	err error
}

func (it *Iter) Columns() []ColumnInfo {
	if it.it == nil {
		return nil
	}
	cols := it.it.Columns()
	out := make([]ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = ColumnInfo{
			Keyspace: c.Keyspace,
			Table:    c.Table,
			Name:     c.Name,
			TypeInfo: wrapOption(&c.Type),
		}
	}
	return out
}

// Next advances the row pointer; it returns false once the result set is
// exhausted or an error occurred (retrievable via Err).
func (it *Iter) Next() bool {
	if it.it == nil || it.err != nil {
		return false
	}
	row, err := it.it.Next()
	if err != nil {
		it.err = err
		return false
	}
	it.row = row
	return row != nil
}

// Scan decodes the current row (the one Next last advanced to) into dst.
func (it *Iter) Scan(dst ...interface{}) error {
	if it.err != nil {
		return it.err
	}
	if it.row == nil {
		return fmt.Errorf("gocql: Scan called without a successful call to Next")
	}
	cols := it.it.Columns()
	if len(cols) != len(dst) {
		return fmt.Errorf("gocql: column count mismatch expected %d, got %d", len(dst), len(cols))
	}
	for i := range dst {
		if err := it.row.Unmarshal(i, dst[i]); err != nil {
			it.row = nil
			return err
		}
	}
	return nil
}

// Err returns the error, if any, that stopped iteration; it also closes
// the iterator's underlying page cursor.
func (it *Iter) Err() error {
	if it.it != nil {
		if cerr := it.it.Close(); cerr != nil && it.err == nil {
			it.err = cerr
		}
	}
	return it.err
}

func (it *Iter) PageState() []byte {
	if it.it == nil {
		return nil
	}
	return it.it.PageState()
}

func (it *Iter) Close() error {
	return it.Err()
}
