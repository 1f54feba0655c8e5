package gocql

import (
	"context"
	"errors"
	"fmt"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/transport"
)

// SingleHostQueryExecutor allows quick diagnostic queries against a
// single node without going through a full Session/Cluster: one
// connection, no pool, consistency ONE, default retry policy.
type SingleHostQueryExecutor struct {
	conn *transport.Conn
}

func (e SingleHostQueryExecutor) Exec(stmt string, _ ...interface{}) error {
	qStmt := transport.Statement{Content: stmt, Consistency: frame.ONE}
	_, err := e.conn.Query(context.Background(), qStmt, nil)
	return err
}

// Iter executes stmt on the single open connection and returns a
// Scanner over its pages, retrying same-node per the default retry
// policy on a recoverable server error.
func (e SingleHostQueryExecutor) Iter(stmt string, _ ...interface{}) Scanner {
	qStmt := transport.Statement{Content: stmt, Consistency: frame.ONE}
	return newSingleHostCursor(qStmt, e.conn)
}

func (e SingleHostQueryExecutor) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}

// NewSingleHostQueryExecutor dials the first host in cfg and returns an
// executor bound to that single connection. Caller must Close it.
func NewSingleHostQueryExecutor(cfg *ClusterConfig) (e SingleHostQueryExecutor, err error) {
	if len(cfg.Hosts) < 1 {
		return e, errors.New("gocql: no hosts given")
	}

	scfg, err := sessionConfigFromGocql(cfg)
	if err != nil {
		return e, err
	}

	connCfg := transport.DefaultConnConfig(cfg.Keyspace)
	connCfg.DefaultConsistency = scfg.Consistency
	connCfg.Authenticator = scfg.Authenticator
	connCfg.TLS = scfg.TLS

	conn, err := transport.OpenConn(context.Background(), cfg.Hosts[0], nil, connCfg)
	if err != nil {
		return e, err
	}
	return SingleHostQueryExecutor{conn}, nil
}

// singleHostIter pages stmt over one fixed connection, outside of a
// Session's host selection policy and prepared cache.
type singleHostIter struct {
	conn   *transport.Conn
	stmt   transport.Statement
	rd     transport.RetryDecider
	paging []byte

	rows []frame.Row
	pos  int
	err  error
	done bool
}

func newSingleHostCursor(stmt transport.Statement, conn *transport.Conn) *singleHostIter {
	return &singleHostIter{conn: conn, stmt: stmt, rd: transport.DefaultRetryPolicy{}.NewRetryDecider()}
}

func (it *singleHostIter) fetch() bool {
	for {
		res, err := it.conn.Query(context.Background(), it.stmt, it.paging)
		if err == nil {
			it.rows = res.Rows
			it.pos = 0
			it.paging = res.PagingState
			it.done = !res.HasMorePages
			return true
		}
		ri := transport.RetryInfo{Error: err, Idempotent: true, Consistency: it.stmt.Consistency}
		if it.rd.Decide(ri) != transport.RetrySameNode {
			it.err = err
			return false
		}
	}
}

func (it *singleHostIter) Next() bool {
	for it.pos >= len(it.rows) {
		if it.done || it.err != nil {
			return false
		}
		if !it.fetch() {
			return false
		}
	}
	it.pos++
	return true
}

func (it *singleHostIter) Scan(dst ...interface{}) error {
	if it.err != nil {
		return it.err
	}
	if it.pos < 1 || it.pos > len(it.rows) {
		return errors.New("gocql: Scan called without a successful call to Next")
	}
	row := it.rows[it.pos-1]
	if len(row) != len(dst) {
		return fmt.Errorf("gocql: column count mismatch expected %d, got %d", len(dst), len(row))
	}
	for i := range dst {
		if err := row.Unmarshal(i, dst[i]); err != nil {
			return err
		}
	}
	return nil
}

func (it *singleHostIter) Err() error { return it.err }
