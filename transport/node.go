package transport

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/kulezi/cqldriver/frame"
	"go.uber.org/atomic"
)

type nodeStatus = atomic.Bool

const (
	statusDown = false
	statusUP   = true
)

// Node is one cluster member: its pool of connections plus the topology
// metadata (datacenter/rack) used for DC-aware routing (spec §5).
type Node struct {
	HostID     frame.UUID
	Addr       string
	Datacenter string
	Rack       string
	Distance   HostDistance
	pool       *ConnPool
	status     nodeStatus
}

func NewNode(hostID frame.UUID, addr, datacenter, rack string) *Node {
	return &Node{HostID: hostID, Addr: addr, Datacenter: datacenter, Rack: rack}
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{addr: %s, dc: %s, rack: %s}", n.Addr, n.Datacenter, n.Rack)
}

func (n *Node) IsUp() bool { return n.status.Load() }

func (n *Node) setStatus(v bool) { n.status.Store(v) }

// Init opens this node's connection pool, marking the node UP on success
// and DOWN (logged, not fatal) on failure so the cluster can keep routing
// around it and retry later (spec §5's reconnection policy).
func (n *Node) Init(ctx context.Context, cfg ConnConfig) {
	if n.pool != nil {
		return
	}
	pool, err := NewConnPool(ctx, n.Addr, cfg, n.Distance)
	if err != nil {
		log.Printf("node %v: failed to open connection pool: %v; marking DOWN", n, err)
		n.setStatus(statusDown)
		return
	}
	n.pool = pool
	n.setStatus(statusUP)
	pool.WatchAllClosed(func() { n.setStatus(statusDown) })
}

func (n *Node) Close() {
	if n.pool != nil {
		n.pool.Close()
	}
	n.setStatus(statusDown)
}

func (n *Node) LeastBusyConn() (*Conn, error) {
	if !n.IsUp() {
		return nil, fmt.Errorf("node %v is down", n)
	}
	return n.pool.LeastBusyConn()
}

func (n *Node) Conn(qi QueryInfo) (*Conn, error) {
	if !n.IsUp() {
		return nil, fmt.Errorf("node %v is down", n)
	}
	if qi.TokenAware {
		return n.pool.Conn(qi.Token)
	}
	return n.LeastBusyConn()
}

func (n *Node) Prepare(ctx context.Context, s Statement, keyspace string) (Statement, error) {
	conn, err := n.LeastBusyConn()
	if err != nil {
		return Statement{}, err
	}
	return conn.Prepare(ctx, s, keyspace)
}

var schemaVersionQuery = Statement{
	Content:     "SELECT schema_version FROM system.local WHERE key='local'",
	Consistency: frame.ONE,
}

func (n *Node) FetchSchemaVersion(ctx context.Context) (frame.UUID, error) {
	conn, err := n.LeastBusyConn()
	if err != nil {
		return frame.UUID{}, err
	}

	res, err := conn.Query(ctx, schemaVersionQuery, nil)
	if err != nil {
		return frame.UUID{}, err
	}
	if len(res.Rows) < 1 || len(res.Rows[0]) < 1 {
		return frame.UUID{}, fmt.Errorf("schema_version query returned no rows")
	}

	var version frame.UUID
	if err := res.Rows[0].Unmarshal(0, &version); err != nil {
		return frame.UUID{}, fmt.Errorf("parsing schema_version: %w", err)
	}
	return version, nil
}

// NodeSet is a concurrency-safe, swappable view of the cluster's current
// member list, shared between every HostSelectionPolicy implementation so
// a topology refresh is visible to all of them at once.
type NodeSet struct {
	mu     sync.RWMutex
	nodes  []*Node
	offset atomic.Uint32
}

func NewNodeSet(nodes []*Node) *NodeSet {
	return &NodeSet{nodes: nodes}
}

func (s *NodeSet) Snapshot() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

func (s *NodeSet) Set(nodes []*Node) {
	s.mu.Lock()
	s.nodes = nodes
	s.mu.Unlock()
}

// NextOffset hands out a monotonically increasing counter used to rotate
// the round-robin starting point across calls.
func (s *NodeSet) NextOffset() uint32 {
	return s.offset.Inc()
}

// RingEntry is one token range boundary: the node owning tokens up to and
// including token.
type RingEntry struct {
	node  *Node
	token Token
}

type Ring []RingEntry

func (r Ring) Less(i, j int) bool { return r[i].token < r[j].token }
func (r Ring) Len() int           { return len(r) }
func (r Ring) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

// replicaIter walks the ring starting at offset, wrapping around once.
type replicaIter struct {
	ring    Ring
	offset  int
	fetched int
}

func (r *replicaIter) Next() *Node {
	if r.fetched >= len(r.ring) {
		return nil
	}
	ret := r.ring[r.offset].node
	r.offset++
	r.fetched++
	if r.offset >= len(r.ring) {
		r.offset = 0
	}
	return ret
}

// tokenLowerBound returns the position of the first entry with a token
// greater than or equal to token, wrapping to 0 when token exceeds every
// entry (the ring is circular).
func (r Ring) tokenLowerBound(token Token) int {
	start, end := 0, len(r)
	for start < end {
		mid := int(uint(start+end) >> 1)
		if r[mid].token < token {
			start = mid + 1
		} else {
			end = mid
		}
	}
	if end >= len(r) {
		end = 0
	}
	return end
}

// ReplicasForToken returns up to limit distinct nodes owning token, in
// ring order starting at its owning vnode; used by the token-aware
// policies to rank a statement's preferred coordinators (spec §5).
func (r Ring) ReplicasForToken(token Token, limit int) []*Node {
	if len(r) == 0 {
		return nil
	}
	it := replicaIter{ring: r, offset: r.tokenLowerBound(token)}

	seen := make(map[*Node]bool, limit)
	out := make([]*Node, 0, limit)
	for len(out) < limit {
		n := it.Next()
		if n == nil {
			break
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
