package cqldriver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/frame/response"
	"github.com/kulezi/cqldriver/transport"
)

// NoHostAvailableError is spec §7's NoHostAvailable: the host selection
// policy's plan was exhausted without a single successful attempt, paired
// with every host tried and the error it raised so the caller can tell a
// transient blip from a cluster-wide outage.
type NoHostAvailableError struct {
	TriedHosts map[string]error
}

func (e *NoHostAvailableError) Error() string {
	return fmt.Sprintf("no host available, tried %d host(s): %v", len(e.TriedHosts), e.TriedHosts)
}

// Query builds one CQL statement execution: an unprepared Query carries
// raw CQL text, a prepared one (from Session.Prepare) carries a queryId
// and typed bind markers.
type Query struct {
	session *Session
	stmt    transport.Statement

	pagingState []byte
	errs        []error
}

// Result is one page of a query's response, translated from the server's
// RESULT frame.
type Result transport.QueryResult

func (q *Query) SetConsistency(c frame.Consistency) *Query       { q.stmt.Consistency = c; return q }
func (q *Query) SetSerialConsistency(c frame.Consistency) *Query { q.stmt.SerialConsistency = c; return q }
func (q *Query) SetPageSize(n int32) *Query                      { q.stmt.PageSize = n; return q }
func (q *Query) SetPageState(v []byte) *Query                    { q.pagingState = v; return q }
func (q *Query) SetIdempotent(v bool) *Query                     { q.stmt.Idempotent = v; return q }
func (q *Query) SetCompression(v bool) *Query                    { q.stmt.Compression = v; return q }

func (q *Query) PageState() []byte  { return q.pagingState }
func (q *Query) Idempotent() bool   { return q.stmt.Idempotent }
func (q *Query) IsPrepared() bool   { return q.stmt.ID != nil }

// Exec runs the statement and returns its first page of results; used for
// INSERT/UPDATE/DELETE/DDL. Errs accumulated by Bind calls are reported
// here instead of being swallowed.
func (q *Query) Exec(ctx context.Context) (Result, error) {
	if len(q.errs) > 0 {
		return Result{}, fmt.Errorf("query has %d unresolved bind error(s): %w", len(q.errs), q.errs[0])
	}

	res, err := q.session.execute(ctx, &q.stmt, q.pagingState)
	if err != nil {
		return Result{}, err
	}
	q.pagingState = res.PagingState
	return Result(res), nil
}

// Iter starts a paged iteration over the statement's result set; the
// first page is fetched lazily, on the first call to Iter.Next.
func (q *Query) Iter(ctx context.Context) *Iter {
	return &Iter{
		ctx:     ctx,
		session: q.session,
		stmt:    q.stmt.Clone(),
		paging:  q.pagingState,
		hasMore: true,
		meta:    q.stmt.Metadata,
	}
}

// routingToken computes the Murmur3 token of stmt's partition key, per
// https://github.com/scylladb/scylladb/blob/master/compound_compat.hh's
// composite-key encoding: each component is length-prefixed and
// zero-terminated, except a lone component which is hashed bare.
func routingToken(stmt *transport.Statement) (transport.Token, bool) {
	if len(stmt.PkIndexes) == 0 {
		return 0, false
	}
	if len(stmt.PkIndexes) == 1 {
		return transport.MurmurToken(stmt.Values[stmt.PkIndexes[0]].Bytes), true
	}

	var buf frame.Buffer
	for _, idx := range stmt.PkIndexes {
		v := stmt.Values[idx]
		buf.WriteShort(frame.Short(v.N))
		buf.Write(v.Bytes)
		buf.WriteByte(0)
	}
	return transport.MurmurToken(buf.Bytes()), true
}

func (s *Session) queryInfo(stmt *transport.Statement) transport.QueryInfo {
	if token, ok := routingToken(stmt); ok {
		return transport.NewTokenAwareQueryInfo(token, s.cfg.Keyspace)
	}
	return transport.NewQueryInfo()
}

// execute runs stmt against the cluster with retries (spec §4.7): a
// recoverable server error consults the RetryDecider; an UNPREPARED
// error reprepares on the coordinator that raised it and retries once,
// fail-fast, without consuming a retry attempt.
func (s *Session) execute(ctx context.Context, stmt *transport.Statement, pagingState []byte) (transport.QueryResult, error) {
	info := s.queryInfo(stmt)
	rd := s.cfg.RetryPolicy.NewRetryDecider()

	triedHosts := make(map[string]error)
	var sameNode *transport.Node
	for i := 0; ; i++ {
		n := sameNode
		sameNode = nil
		if n == nil {
			n = s.cluster.Policy().Node(info, i)
		}
		if n == nil {
			return transport.QueryResult{}, &NoHostAvailableError{TriedHosts: triedHosts}
		}

		conn, err := n.Conn(info)
		if err != nil {
			triedHosts[n.Addr] = err
			continue
		}

		res, err := s.executeOnNode(ctx, n, conn, stmt, pagingState)
		if err == nil {
			return res, nil
		}
		triedHosts[n.Addr] = err

		ri := transport.RetryInfo{Error: err, Idempotent: stmt.Idempotent, Consistency: stmt.Consistency}
		switch rd.Decide(ri) {
		case transport.RetrySameNode:
			sameNode = n
			i--
			continue
		case transport.RetryNextNode:
			continue
		default:
			return transport.QueryResult{}, err
		}
	}
}

// executeOnNode sends one request to n's connection, transparently
// reprepearing and retrying once on UNPREPARED before giving up on this
// node (spec §4.6).
func (s *Session) executeOnNode(ctx context.Context, n *transport.Node, conn *transport.Conn, stmt *transport.Statement, pagingState []byte) (transport.QueryResult, error) {
	res, err := runOn(ctx, conn, stmt, pagingState)
	if err == nil {
		return res, nil
	}

	if _, ok := err.(*response.Unprepared); ok && stmt.ID != nil {
		fresh, rerr := s.cluster.Repreparer().ReprepareOnNode(ctx, n, s.cfg.Keyspace, stmt.Content)
		if rerr != nil {
			s.prepared.Invalidate(s.cfg.Keyspace, stmt.Content)
			return transport.QueryResult{}, err
		}
		if !bytes.Equal(fresh.ID, stmt.ID) {
			s.prepared.Invalidate(s.cfg.Keyspace, stmt.Content)
			return transport.QueryResult{}, transport.PreparedStatementIdMismatch(s.cfg.Keyspace, stmt.Content, stmt.ID, fresh.ID)
		}
		stmt.ID = fresh.ID
		stmt.ResultMetadataID = fresh.ResultMetadataID
		stmt.Metadata = fresh.Metadata
		go s.cluster.Repreparer().ReprepareOnAllHosts(context.Background(), s.cluster.Nodes().Snapshot(), s.cfg.Keyspace, stmt.Content)
		return runOn(ctx, conn, stmt, pagingState)
	}
	return transport.QueryResult{}, err
}

func runOn(ctx context.Context, conn *transport.Conn, stmt *transport.Statement, pagingState []byte) (transport.QueryResult, error) {
	if stmt.ID != nil {
		return conn.Execute(ctx, *stmt, pagingState)
	}
	return conn.Query(ctx, *stmt, pagingState)
}
