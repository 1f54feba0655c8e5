package transport

import (
	"context"
	"sync"
)

// maxInFlightReprepares bounds the reprepare coordinator's concurrency
// (spec §4.6) so a schema change fanning out across a large cluster can't
// open unbounded PREPARE requests at once.
const maxInFlightReprepares = 64

// Repreparer reprepares a statement across a cluster's reachable nodes on
// their existing connections. Per-host failures are logged and otherwise
// ignored: reprepare is best-effort everywhere except the node that just
// raised UNPREPARED, which is handled synchronously by the caller instead.
type Repreparer struct {
	sem    chan struct{}
	logger Logger
}

func NewRepreparer(logger Logger) *Repreparer {
	if logger == nil {
		logger = DefaultLogger{}
	}
	return &Repreparer{sem: make(chan struct{}, maxInFlightReprepares), logger: logger}
}

// ReprepareOnAllHosts reprepares cql against keyspace on every up node in
// nodes, bounded to maxInFlightReprepares concurrent PREPAREs.
func (r *Repreparer) ReprepareOnAllHosts(ctx context.Context, nodes []*Node, keyspace, cql string) {
	var wg sync.WaitGroup
	for _, n := range nodes {
		if !n.IsUp() {
			continue
		}
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		wg.Add(1)
		go func(n *Node) {
			defer wg.Done()
			defer func() { <-r.sem }()
			if _, err := n.Prepare(ctx, Statement{Content: cql}, keyspace); err != nil {
				r.logger.Printf("reprepare on %v failed: %v", n, err)
			}
		}(n)
	}
	wg.Wait()
}

// ReprepareOnNode synchronously reprepares cql on one node, used fail-fast
// from EXECUTE's UNPREPARED handling (spec §4.6): the pipeline needs the
// fresh queryId before it can retry, so this one call is not fire-and-forget.
func (r *Repreparer) ReprepareOnNode(ctx context.Context, n *Node, keyspace, cql string) (Statement, error) {
	return n.Prepare(ctx, Statement{Content: cql}, keyspace)
}
