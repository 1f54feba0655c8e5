package transport

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kulezi/cqldriver/frame"
	"go.uber.org/atomic"
)

// PolicyFactory builds a HostSelectionPolicy bound to a cluster's live
// NodeSet and ring, so the policy always sees the current topology.
type PolicyFactory func(nodes *NodeSet, ring func() Ring) HostSelectionPolicy

// Cluster owns the set of known nodes, their connection pools, and the
// token ring used for token-aware routing (spec §4.4's topology half of
// the host pool component).
type Cluster struct {
	connCfg    ConnConfig
	nodes      *NodeSet
	ring       atomic.Value // Ring
	policy     HostSelectionPolicy
	repreparer *Repreparer
	logger     Logger
}

// NewCluster dials every seed host, builds the initial token ring from
// system.local/system.peers, and constructs the pluggable policy bound to
// the resulting NodeSet.
func NewCluster(ctx context.Context, connCfg ConnConfig, newPolicy PolicyFactory, logger Logger, hosts ...string) (*Cluster, error) {
	if logger == nil {
		logger = DefaultLogger{}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no contact points given")
	}

	nodes := make([]*Node, 0, len(hosts))
	for _, h := range hosts {
		n := NewNode(frame.UUID{}, h, "", "")
		n.Init(ctx, connCfg)
		nodes = append(nodes, n)
	}

	c := &Cluster{
		connCfg:    connCfg,
		nodes:      NewNodeSet(nodes),
		repreparer: NewRepreparer(logger),
		logger:     logger,
	}
	c.ring.Store(Ring(nil))

	if newPolicy != nil {
		c.policy = newPolicy(c.nodes, c.Ring)
	}

	if err := c.RefreshTopology(ctx); err != nil {
		c.logger.Printf("initial topology refresh failed, continuing with contact points only: %v", err)
	}
	return c, nil
}

func (c *Cluster) Ring() Ring {
	r, _ := c.ring.Load().(Ring)
	return r
}

func (c *Cluster) Policy() HostSelectionPolicy { return c.policy }

func (c *Cluster) Nodes() *NodeSet { return c.nodes }

func (c *Cluster) Repreparer() *Repreparer { return c.repreparer }

func (c *Cluster) Close() {
	for _, n := range c.nodes.Snapshot() {
		n.Close()
	}
}

type topologyRow struct {
	hostID     frame.UUID
	addr       string
	datacenter string
	rack       string
	tokens     []string
}

// RefreshTopology re-reads system.local/system.peers from any live
// connection and rebuilds the node set and token ring from the result.
// Nodes already known keep their existing pool; only newly discovered
// peers get a fresh one opened.
func (c *Cluster) RefreshTopology(ctx context.Context) error {
	conn, err := c.anyConn()
	if err != nil {
		return fmt.Errorf("no live connection to refresh topology: %w", err)
	}

	rows, err := c.queryTopology(ctx, conn)
	if err != nil {
		return err
	}

	existing := make(map[string]*Node)
	for _, n := range c.nodes.Snapshot() {
		existing[n.Addr] = n
	}

	nodes := make([]*Node, 0, len(rows))
	var ring Ring
	for _, row := range rows {
		n, ok := existing[row.addr]
		if !ok {
			n = NewNode(row.hostID, row.addr, row.datacenter, row.rack)
			n.Init(ctx, c.connCfg)
		} else {
			n.HostID = row.hostID
			n.Datacenter = row.datacenter
			n.Rack = row.rack
		}
		nodes = append(nodes, n)

		for _, tokStr := range row.tokens {
			tok, err := strconv.ParseInt(tokStr, 10, 64)
			if err != nil {
				continue
			}
			ring = append(ring, RingEntry{node: n, token: Token(tok)})
		}
	}

	for addr, n := range existing {
		found := false
		for _, row := range rows {
			if row.addr == addr {
				found = true
				break
			}
		}
		if !found {
			n.Close()
		}
	}

	sort.Sort(ring)
	c.nodes.Set(nodes)
	c.ring.Store(ring)
	return nil
}

func (c *Cluster) anyConn() (*Conn, error) {
	for _, n := range c.nodes.Snapshot() {
		if conn, err := n.LeastBusyConn(); err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("no node is up")
}

var localTopologyQuery = Statement{
	Content:     "SELECT host_id, data_center, rack, tokens, rpc_address FROM system.local",
	Consistency: frame.ONE,
}

var peersTopologyQuery = Statement{
	Content:     "SELECT host_id, data_center, rack, tokens, peer FROM system.peers",
	Consistency: frame.ONE,
}

func (c *Cluster) queryTopology(ctx context.Context, conn *Conn) ([]topologyRow, error) {
	local, err := conn.Query(ctx, localTopologyQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("querying system.local: %w", err)
	}
	peers, err := conn.Query(ctx, peersTopologyQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("querying system.peers: %w", err)
	}

	var out []topologyRow
	for _, row := range local.Rows {
		r, err := parseLocalRow(row)
		if err != nil {
			c.logger.Printf("skipping malformed system.local row: %v", err)
			continue
		}
		out = append(out, r)
	}
	for _, row := range peers.Rows {
		r, err := parsePeerRow(row)
		if err != nil {
			c.logger.Printf("skipping malformed system.peers row: %v", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func parseLocalRow(row frame.Row) (topologyRow, error) {
	if len(row) < 5 {
		return topologyRow{}, fmt.Errorf("system.local row has %d columns, want 5", len(row))
	}
	var r topologyRow
	if err := row.Unmarshal(0, &r.hostID); err != nil {
		return topologyRow{}, err
	}
	var dc, rack, addr interface{}
	if err := row.Unmarshal(1, &dc); err != nil {
		return topologyRow{}, err
	}
	if err := row.Unmarshal(2, &rack); err != nil {
		return topologyRow{}, err
	}
	if err := row.Unmarshal(4, &addr); err != nil {
		return topologyRow{}, err
	}
	r.datacenter, _ = dc.(string)
	r.rack, _ = rack.(string)
	r.tokens = textSetValues(row, 3)
	if ip, ok := addr.(interface{ String() string }); ok {
		r.addr = ip.String()
	}
	return r, nil
}

func parsePeerRow(row frame.Row) (topologyRow, error) {
	if len(row) < 5 {
		return topologyRow{}, fmt.Errorf("system.peers row has %d columns, want 5", len(row))
	}
	var r topologyRow
	if err := row.Unmarshal(0, &r.hostID); err != nil {
		return topologyRow{}, err
	}
	var dc, rack, peer interface{}
	if err := row.Unmarshal(1, &dc); err != nil {
		return topologyRow{}, err
	}
	if err := row.Unmarshal(2, &rack); err != nil {
		return topologyRow{}, err
	}
	if err := row.Unmarshal(4, &peer); err != nil {
		return topologyRow{}, err
	}
	r.datacenter, _ = dc.(string)
	r.rack, _ = rack.(string)
	r.tokens = textSetValues(row, 3)
	if ip, ok := peer.(interface{ String() string }); ok {
		r.addr = ip.String()
	}
	return r, nil
}

// textSetValues unmarshals column i (a set<text>) into its string
// elements, tolerating a null/absent set.
func textSetValues(row frame.Row, i int) []string {
	var raw interface{}
	if err := row.Unmarshal(i, &raw); err != nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
