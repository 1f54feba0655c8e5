package gocql

import (
	"context"

	cqldriver "github.com/kulezi/cqldriver"
)

// Query wraps a cqldriver.Query, adapting its fluent API to gocql's.
type Query struct {
	ctx   context.Context
	query *cqldriver.Query
	err   error
}

func (q *Query) Bind(values ...interface{}) *Query {
	if q.err != nil {
		return q
	}
	for i, v := range values {
		if _, ok := v.(unsetColumn); ok {
			q.query.BindUnset(i)
			continue
		}
		q.query.Bind(i, v)
	}
	return q
}

func (q *Query) Exec() error {
	if q.err != nil {
		return q.err
	}
	_, err := q.query.Exec(q.ctx)
	return err
}

func (q *Query) Scan(values ...interface{}) error {
	if q.err != nil {
		return q.err
	}
	it := q.query.Iter(q.ctx)
	defer it.Close()
	return it.Scan(values...)
}

func (q *Query) Iter() *Iter {
	if q.err != nil {
		return &Iter{err: q.err}
	}
	return &Iter{it: q.query.Iter(q.ctx)}
}

// Release is a no-op: cqldriver has no query-object pool to return to.
func (q *Query) Release() {}

func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

func (q *Query) PageSize(n int) *Query {
	if q.err == nil {
		q.query.SetPageSize(int32(n))
	}
	return q
}

func (q *Query) PageState(state []byte) *Query {
	if q.err == nil {
		q.query.SetPageState(state)
	}
	return q
}

func (q *Query) Idempotent(value bool) *Query {
	if q.err == nil {
		q.query.SetIdempotent(value)
	}
	return q
}

func (q *Query) Consistency(c Consistency) *Query {
	if q.err == nil {
		q.query.SetConsistency(c)
	}
	return q
}

func (q *Query) SerialConsistency(cons SerialConsistency) *Query {
	if q.err == nil {
		q.query.SetSerialConsistency(Consistency(cons))
	}
	return q
}

// CustomPayload, Trace, and Observer have no cqldriver equivalent yet
// (the Non-goal excluding a tracing/metrics backend applies here too);
// they're accepted for source compatibility and otherwise ignored.
func (q *Query) CustomPayload(map[string][]byte) *Query                        { return q }
func (q *Query) Trace(Tracer) *Query                                           { return q }
func (q *Query) Observer(QueryObserver) *Query                                 { return q }
func (q *Query) DefaultTimestamp(bool) *Query                                  { return q }
func (q *Query) WithTimestamp(int64) *Query                                    { return q }
func (q *Query) RoutingKey([]byte) *Query                                      { return q }
func (q *Query) Prefetch(float64) *Query                                       { return q }
func (q *Query) RetryPolicy(RetryPolicy) *Query                                { return q }
func (q *Query) SetSpeculativeExecutionPolicy(SpeculativeExecutionPolicy) *Query { return q }

func (q *Query) NoSkipMetadata() *Query { return q }
