package cqldriver

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/kulezi/cqldriver/frame"
	"github.com/kulezi/cqldriver/transport"
	"go.uber.org/atomic"
)

type EventType = string

const (
	TopologyChange EventType = "TOPOLOGY_CHANGE"
	StatusChange   EventType = "STATUS_CHANGE"
	SchemaChange   EventType = "SCHEMA_CHANGE"
)

var (
	ErrNoHosts      = fmt.Errorf("session config: no hosts given")
	ErrEventType    = fmt.Errorf("session config: invalid event type")
	errNoConnection = fmt.Errorf("no connection available to execute the request on")
)

// sessionIDCounter hands every Session a unique identity for its
// PreparedCache, so two sessions against the same cluster never collide
// on a cache key even when they prepare identical CQL text.
var sessionIDCounter atomic.Uint64

// SessionConfig configures a Session: contact points, authentication,
// transport tuning, and the pluggable policies (spec §6's collaborators).
type SessionConfig struct {
	Hosts    []string
	Keyspace string
	Events   []EventType

	Consistency frame.Consistency
	Timeout     time.Duration

	Authenticator transport.Authenticator
	TLS           *tls.Config

	Policy             transport.PolicyFactory
	RetryPolicy        transport.RetryPolicy
	ReconnectionPolicy transport.ReconnectionPolicy
	HeartbeatInterval  time.Duration

	Logger transport.Logger
}

// DefaultSessionConfig returns a config using round-robin host selection
// and the default retry policy, matching the teacher's zero-configuration
// defaults.
func DefaultSessionConfig(keyspace string, hosts ...string) SessionConfig {
	return SessionConfig{
		Hosts:             hosts,
		Keyspace:          keyspace,
		Consistency:       frame.QUORUM,
		Timeout:           10 * time.Second,
		Policy:            RoundRobin(),
		RetryPolicy:       transport.DefaultRetryPolicy{},
		HeartbeatInterval: 30 * time.Second,
	}
}

func (cfg SessionConfig) clone() SessionConfig {
	v := cfg
	v.Hosts = append([]string(nil), cfg.Hosts...)
	v.Events = append([]EventType(nil), cfg.Events...)
	return v
}

func (cfg *SessionConfig) validate() error {
	if len(cfg.Hosts) == 0 {
		return ErrNoHosts
	}
	for _, e := range cfg.Events {
		if e != TopologyChange && e != StatusChange && e != SchemaChange {
			return ErrEventType
		}
	}
	if cfg.Policy == nil {
		cfg.Policy = RoundRobin()
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = transport.DefaultRetryPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = transport.DefaultLogger{}
	}
	return nil
}

// RoundRobin builds a policy that cycles every known node regardless of
// datacenter or token ownership.
func RoundRobin() transport.PolicyFactory {
	return func(nodes *transport.NodeSet, _ func() transport.Ring) transport.HostSelectionPolicy {
		return transport.NewRoundRobinPolicy(nodes)
	}
}

// TokenAware builds a policy that prefers the replicas owning a bound
// statement's routing token, falling back to round robin otherwise.
func TokenAware() transport.PolicyFactory {
	return func(nodes *transport.NodeSet, ring func() transport.Ring) transport.HostSelectionPolicy {
		return transport.NewSimpleTokenAwarePolicy(nodes, ring)
	}
}

// DCAwareRoundRobin builds a policy that exhausts localDC's nodes before
// trying remote ones.
func DCAwareRoundRobin(localDC string) transport.PolicyFactory {
	return func(nodes *transport.NodeSet, _ func() transport.Ring) transport.HostSelectionPolicy {
		return transport.NewDCAwareRoundRobin(nodes, localDC)
	}
}

// NetworkTopologyTokenAware builds a policy that prefers local replicas,
// then remote replicas, then falls back to DC-aware round robin.
func NetworkTopologyTokenAware(localDC string) transport.PolicyFactory {
	return func(nodes *transport.NodeSet, ring func() transport.Ring) transport.HostSelectionPolicy {
		return transport.NewNetworkTopologyTokenAwarePolicy(nodes, ring, localDC)
	}
}

// Session is a live connection to a cluster: a topology-aware pool of
// connections plus a PreparedCache shared by every Query it produces.
type Session struct {
	cfg      SessionConfig
	cluster  *transport.Cluster
	prepared *transport.PreparedCache
	version  frame.ProtocolVersion
}

// NewSession dials every contact point, discovers the cluster's topology,
// and returns a ready-to-use Session.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	cfg = cfg.clone()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	connCfg := transport.DefaultConnConfig(cfg.Keyspace)
	connCfg.Authenticator = cfg.Authenticator
	connCfg.TLS = cfg.TLS
	connCfg.DefaultConsistency = cfg.Consistency
	if cfg.Timeout > 0 {
		connCfg.Timeout = cfg.Timeout
	}
	if cfg.HeartbeatInterval > 0 {
		connCfg.HeartbeatInterval = cfg.HeartbeatInterval
	}

	cluster, err := transport.NewCluster(ctx, connCfg, cfg.Policy, cfg.Logger, cfg.Hosts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		cluster:  cluster,
		prepared: transport.NewPreparedCache(sessionIDCounter.Inc()),
		version:  connCfg.Version,
	}
	return s, nil
}

// Close tears down every connection in the cluster's pools.
func (s *Session) Close() {
	s.cluster.Close()
}

// Query starts building a new (initially unprepared) statement.
func (s *Session) Query(content string) *Query {
	return &Query{
		session: s,
		stmt:    transport.Statement{Content: content, Consistency: s.cfg.Consistency},
	}
}

// Prepare sends PREPARE for content (or returns the cached entry from a
// prior call with the same keyspace and text) and returns a bound Query
// ready to execute.
func (s *Session) Prepare(ctx context.Context, content string) (*Query, error) {
	entry, err := s.getPrepared(ctx, s.cfg.Keyspace, content)
	if err != nil {
		return nil, err
	}
	return &Query{
		session: s,
		stmt:    withDefaults(entry.Statement(content), s.cfg.Consistency),
	}, nil
}

func withDefaults(stmt transport.Statement, consistency frame.Consistency) transport.Statement {
	stmt.Consistency = consistency
	return stmt
}

func (s *Session) getPrepared(ctx context.Context, keyspace, cql string) (*transport.PreparedEntry, error) {
	return s.prepared.GetOrPrepare(ctx, keyspace, cql, func(ctx context.Context) (transport.Statement, error) {
		return s.prepareOn(ctx, keyspace, cql)
	})
}

func (s *Session) prepareOn(ctx context.Context, keyspace, cql string) (transport.Statement, error) {
	n := s.cluster.Policy().Node(transport.NewQueryInfo(), 0)
	if n == nil {
		return transport.Statement{}, errNoConnection
	}
	return n.Prepare(ctx, transport.Statement{Content: cql, Consistency: frame.ALL}, keyspace)
}
