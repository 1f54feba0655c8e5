package gocql

import (
	"context"

	cqldriver "github.com/kulezi/cqldriver"
)

// Session is a drop-in wrapper over cqldriver.Session.
type Session struct {
	session *cqldriver.Session
}

func NewSession(cfg ClusterConfig) (*Session, error) {
	scfg, err := sessionConfigFromGocql(&cfg)
	if err != nil {
		return nil, err
	}
	session, err := cqldriver.NewSession(context.Background(), scfg)
	if err != nil {
		return nil, err
	}
	return &Session{session}, nil
}

// Query prepares stmt (real gocql auto-prepares every query) and returns
// a bound Query ready for Bind/Exec/Scan/Iter. A failed PREPARE is
// reported lazily, by every subsequent call on the returned Query.
func (s *Session) Query(stmt string, values ...interface{}) *Query {
	q, err := s.session.Prepare(context.Background(), stmt)
	query := &Query{ctx: context.Background(), query: q, err: err}
	if len(values) > 0 {
		query.Bind(values...)
	}
	return query
}

func (s *Session) Close() {
	s.session.Close()
}
