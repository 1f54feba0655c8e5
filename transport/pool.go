package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// HostDistance classifies a node relative to the driver's local
// datacenter, driving the per-distance pool sizing in ConnConfig (spec
// §4.4). Every Node currently resolves to Local: datacenter-distance
// classification during topology refresh is not wired yet (see
// DESIGN.md), so Remote and Ignored are reachable only by a caller
// setting them explicitly.
type HostDistance int

const (
	Local HostDistance = iota
	Remote
	Ignored
)

// poolState models spec §5's connection-pool lifecycle: a pool starts in
// Init while it learns the node's shard count and opens its first
// connections, serves traffic once active, and moves through Closing and
// ShuttingDown to Shutdown exactly once, never backwards.
type poolState int32

const (
	poolInit poolState = iota
	poolActive
	poolClosing
	poolShuttingDown
	poolShutdown
)

// ConnPool is one node's set of connections: either one connection per
// Scylla shard (chosen by ScyllaShardToken so token-aware requests land
// on the connection already pinned to their data's shard), or — for a
// non-sharded Cassandra node — a grown-on-demand slice of up to
// MaxConnectionsPerHost[distance] plain connections.
type ConnPool struct {
	addr     string
	cfg      ConnConfig
	distance HostDistance

	mu       sync.RWMutex
	sharded  bool
	perShard []*Conn // len == nrShards when sharded
	conns    []*Conn // 0..maxConnections when not sharded
	nrShards int

	state        atomic.Int32
	reconnection ReconnectionPolicy
	closeCh      chan struct{}
	closeOnce    sync.Once

	// growing single-flights both foreground (canCreateForeground) and
	// background connection creation so a burst of borrows never opens
	// more than one new connection at a time.
	growing      atomic.Bool
	lastGrowTime atomic.Int64
}

// NewConnPool dials the node once to learn its shard count (if any), then
// opens the remaining connections (one per shard when sharded, up to
// CoreConnectionsPerHost[distance] otherwise); a pool with zero live
// connections after this call is an error, but individual connection
// failures are tolerated and retried in the background.
func NewConnPool(ctx context.Context, addr string, cfg ConnConfig, distance HostDistance) (*ConnPool, error) {
	first, err := OpenConn(ctx, addr, nil, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening initial connection to %s: %w", addr, err)
	}

	shard := first.Shard()
	p := &ConnPool{
		addr:         addr,
		cfg:          cfg,
		distance:     distance,
		reconnection: NewExponentialReconnectionPolicy(time.Second, time.Minute),
		closeCh:      make(chan struct{}),
	}

	if shard.NrShards <= 1 {
		p.sharded = false
		p.nrShards = 1

		core := p.coreConnections()
		p.conns = make([]*Conn, 0, core)
		p.conns = append(p.conns, first)
		for i := 1; i < core; i++ {
			conn, err := OpenConn(ctx, addr, nil, cfg)
			if err != nil {
				go p.reconnectPlain()
				continue
			}
			p.conns = append(p.conns, conn)
		}

		p.state.Store(int32(poolActive))
		return p, nil
	}

	p.sharded = true
	p.nrShards = shard.NrShards
	p.perShard = make([]*Conn, shard.NrShards)
	p.perShard[0] = first

	for s := 1; s < shard.NrShards; s++ {
		conn, err := OpenShardConn(ctx, addr, s, shard, cfg)
		if err != nil {
			go p.reconnectShard(s, shard)
			continue
		}
		p.perShard[s] = conn
	}

	p.state.Store(int32(poolActive))
	return p, nil
}

func (p *ConnPool) coreConnections() int {
	if n := p.cfg.CoreConnectionsPerHost[p.distance]; n > 0 {
		return n
	}
	return 1
}

func (p *ConnPool) maxConnections() int {
	if n := p.cfg.MaxConnectionsPerHost[p.distance]; n > 0 {
		return n
	}
	return p.coreConnections()
}

func (p *ConnPool) reconnectShard(shardIdx int, shard ShardInfo) {
	sched := p.reconnection.NewSchedule()
	for {
		select {
		case <-p.closeCh:
			return
		case <-time.After(sched.Next()):
		}
		if poolState(p.state.Load()) != poolActive {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		conn, err := OpenShardConn(ctx, p.addr, shardIdx, shard, p.cfg)
		cancel()
		if err != nil {
			continue
		}

		p.mu.Lock()
		p.perShard[shardIdx] = conn
		p.mu.Unlock()
		return
	}
}

// reconnectPlain retries opening one more connection toward this pool's
// core count after an initial attempt failed during NewConnPool, using
// the same backoff schedule as per-shard reconnection.
func (p *ConnPool) reconnectPlain() {
	sched := p.reconnection.NewSchedule()
	for {
		select {
		case <-p.closeCh:
			return
		case <-time.After(sched.Next()):
		}
		if poolState(p.state.Load()) != poolActive {
			return
		}

		p.mu.RLock()
		n := len(p.conns)
		p.mu.RUnlock()
		if n >= p.coreConnections() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		conn, err := OpenConn(ctx, p.addr, nil, p.cfg)
		cancel()
		if err != nil {
			continue
		}

		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.mu.Unlock()
		return
	}
}

func leastBusyAmong(conns []*Conn) (*Conn, int) {
	var best *Conn
	bestLoad := -1
	for _, c := range conns {
		if c == nil || c.Closed() {
			continue
		}
		load := c.InFlight()
		if bestLoad == -1 || load < bestLoad {
			best, bestLoad = c, load
		}
	}
	return best, bestLoad
}

// LeastBusyConn returns the connection with the fewest in-flight
// requests, used for statements with no routing token. It fails with
// PoolBusy once that connection is itself at MaxRequestsPerConnection,
// and opportunistically grows a non-sharded pool toward its max when the
// load crosses MaxInflightThresholdToConsiderResizing (spec §4.4 steps
// 3-4).
func (p *ConnPool) LeastBusyConn() (*Conn, error) {
	p.mu.RLock()
	var candidates []*Conn
	if p.sharded {
		candidates = p.perShard
	} else {
		candidates = p.conns
	}
	best, load := leastBusyAmong(candidates)
	p.mu.RUnlock()

	if best == nil {
		if !p.sharded {
			if conn, err := p.tryForegroundOpen(); err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("no live connections in pool for %s", p.addr)
	}

	if max := p.cfg.MaxRequestsPerConnection; max > 0 && load >= max {
		if !p.sharded {
			p.maybeGrow(load)
		}
		return nil, PoolBusy(p.addr, max, load)
	}
	if !p.sharded {
		p.maybeGrow(load)
	}
	return best, nil
}

// Conn returns the connection owning token's shard, falling back to the
// least busy live connection when that shard's connection is down or the
// pool isn't sharded at all.
func (p *ConnPool) Conn(token Token) (*Conn, error) {
	if !p.sharded {
		return p.LeastBusyConn()
	}

	p.mu.RLock()
	shard := ScyllaShardToken(token, p.nrShards)
	var c *Conn
	if shard >= 0 && shard < len(p.perShard) {
		c = p.perShard[shard]
	}
	p.mu.RUnlock()

	if c == nil || c.Closed() {
		return p.LeastBusyConn()
	}
	if max, load := p.cfg.MaxRequestsPerConnection, c.InFlight(); max > 0 && load >= max {
		return nil, PoolBusy(p.addr, max, load)
	}
	return c, nil
}

// tryForegroundOpen opens one more connection synchronously when the
// pool hasn't yet reached its core count and no growth is already under
// way (spec §4.4's canCreateForeground gate / single-flight
// createOpenConnection).
func (p *ConnPool) tryForegroundOpen() (*Conn, error) {
	p.mu.RLock()
	n := len(p.conns)
	p.mu.RUnlock()
	if n >= p.coreConnections() {
		return nil, fmt.Errorf("pool for %s already holds its core connection count", p.addr)
	}
	if !p.growing.CAS(false, true) {
		return nil, fmt.Errorf("pool for %s is already opening a connection", p.addr)
	}
	defer p.growing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	conn, err := OpenConn(ctx, p.addr, nil, p.cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
	return conn, nil
}

// maybeGrow kicks off a single-flight background connection open once
// load crosses the resize threshold, bounded by maxConnections and
// PoolResizeCooldown; it never blocks the caller that triggered it.
func (p *ConnPool) maybeGrow(load int) {
	threshold := p.cfg.MaxInflightThresholdToConsiderResizing[p.distance]
	if threshold <= 0 || load < threshold {
		return
	}

	p.mu.RLock()
	n := len(p.conns)
	p.mu.RUnlock()
	if n >= p.maxConnections() {
		return
	}

	now := time.Now().UnixNano()
	if cooldown := p.cfg.PoolResizeCooldown; cooldown > 0 {
		if last := p.lastGrowTime.Load(); time.Duration(now-last) < cooldown {
			return
		}
	}
	if !p.growing.CAS(false, true) {
		return
	}
	p.lastGrowTime.Store(now)
	go p.growOnce()
}

func (p *ConnPool) growOnce() {
	defer p.growing.Store(false)
	if poolState(p.state.Load()) != poolActive {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	conn, err := OpenConn(ctx, p.addr, nil, p.cfg)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
}

// WatchAllClosed polls the pool until every connection it holds has
// died, then calls onAllClosed once and stops (spec §4.4's
// AllConnectionClosed election, used by Node to flip itself DOWN and
// fall back to the cluster's node-level reconnection on the next
// topology refresh).
func (p *ConnPool) WatchAllClosed(onAllClosed func()) {
	go func() {
		interval := p.cfg.Timeout
		if interval <= 0 {
			interval = 5 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.closeCh:
				return
			case <-ticker.C:
				if poolState(p.state.Load()) == poolActive && p.Size() == 0 {
					onAllClosed()
					return
				}
			}
		}
	}()
}

// Close tears down every connection and stops background reconnection
// and growth; safe to call more than once.
func (p *ConnPool) Close() {
	p.closeOnce.Do(func() {
		p.state.Store(int32(poolClosing))
		close(p.closeCh)
		p.state.Store(int32(poolShuttingDown))

		p.mu.Lock()
		defer p.mu.Unlock()
		for _, c := range p.perShard {
			if c != nil {
				c.Close()
			}
		}
		for _, c := range p.conns {
			if c != nil {
				c.Close()
			}
		}
		p.state.Store(int32(poolShutdown))
	})
}

func (p *ConnPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, c := range p.perShard {
		if c != nil && !c.Closed() {
			n++
		}
	}
	for _, c := range p.conns {
		if c != nil && !c.Closed() {
			n++
		}
	}
	return n
}
