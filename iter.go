package cqldriver

import (
	"context"
	"fmt"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/transport"
)

// ErrClosedIter is returned by Next once the iterator has been closed,
// either explicitly or because the result set was exhausted.
var ErrClosedIter = fmt.Errorf("iter is closed")

// Iter is a paged, lazily-fetched row set (spec §5's iterator component):
// each call into a new page blocks on one EXECUTE/QUERY round trip, and
// pages already delivered are never re-fetched.
type Iter struct {
	ctx     context.Context
	session *Session
	stmt    transport.Statement

	rows    []frame.Row
	pos     int
	paging  []byte
	hasMore bool
	started bool

	meta   *frame.ResultMetadata
	err    error
	closed bool
}

// Next returns the next row, fetching a new page on demand. It returns
// (nil, nil) once the result set is exhausted and (nil, err) on failure;
// either case closes the iterator.
func (it *Iter) Next() (frame.Row, error) {
	if it.closed {
		return nil, ErrClosedIter
	}

	for it.pos >= len(it.rows) {
		if it.started && !it.hasMore {
			return nil, it.Close()
		}
		if !it.fetch() {
			return nil, it.Close()
		}
	}

	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *Iter) fetch() bool {
	res, err := it.session.execute(it.ctx, &it.stmt, it.paging)
	it.started = true
	if err != nil {
		it.err = err
		return false
	}

	it.rows = res.Rows
	it.pos = 0
	it.paging = res.PagingState
	it.hasMore = res.HasMorePages
	if res.Metadata != nil {
		it.meta = res.Metadata
	}
	return true
}

// Scan decodes the next row's columns into dst, in column order.
func (it *Iter) Scan(dst ...interface{}) error {
	row, err := it.Next()
	if err != nil {
		return err
	}
	if row == nil {
		return ErrNoMoreRows
	}
	if it.meta == nil || len(it.meta.Columns) != len(dst) {
		return fmt.Errorf("scan: got %d destinations, result has %d columns", len(dst), len(row))
	}
	for i := range dst {
		if err := row.Unmarshal(i, dst[i]); err != nil {
			return fmt.Errorf("scan column %d (%s): %w", i, it.meta.Columns[i].Name, err)
		}
	}
	return nil
}

// ErrNoMoreRows is returned by Scan once the result set is exhausted.
var ErrNoMoreRows = fmt.Errorf("no more rows left")

// Close stops the iteration; safe to call multiple times. Returns any
// error that ended iteration early (nil on a clean exhaustion).
func (it *Iter) Close() error {
	it.closed = true
	return it.err
}

// Columns returns the result set's column metadata, valid once the first
// page has been fetched.
func (it *Iter) Columns() []frame.ColumnSpec {
	if it.meta == nil {
		return nil
	}
	return it.meta.Columns
}

// PageState returns the paging state as of the last fetched page, usable
// to resume iteration later via Query.SetPageState.
func (it *Iter) PageState() []byte { return it.paging }
