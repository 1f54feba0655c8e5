package transport

import (
	"github.com/kulezi/cqldriver/frame"
)

// QueryInfo is what a HostSelectionPolicy needs to rank nodes for one
// statement: its routing token when known, and the keyspace it targets
// (spec §5's load-balancing collaborator).
type QueryInfo struct {
	TokenAware  bool
	Token       Token
	Keyspace    string
	LocalDC     string
}

// NewQueryInfo builds an untargeted QueryInfo, used for statements with no
// partition key (DDL, USE, unbound queries).
func NewQueryInfo() QueryInfo {
	return QueryInfo{}
}

// NewTokenAwareQueryInfo builds a QueryInfo carrying a routing token, used
// whenever the statement's bound values let the caller compute one.
func NewTokenAwareQueryInfo(token Token, keyspace string) QueryInfo {
	return QueryInfo{TokenAware: true, Token: token, Keyspace: keyspace}
}

// HostSelectionPolicy orders candidate nodes for one statement. Node(i) is
// called with increasing i until it returns nil, giving the pipeline a
// target/fallback sequence per spec §5.
type HostSelectionPolicy interface {
	// Node returns the i-th candidate node for qi, or nil once exhausted.
	Node(qi QueryInfo, i int) *Node
}

// RoundRobinPolicy cycles through every known node, ignoring tokens and
// datacenters entirely.
type RoundRobinPolicy struct {
	nodes *NodeSet
}

func NewRoundRobinPolicy(nodes *NodeSet) *RoundRobinPolicy {
	return &RoundRobinPolicy{nodes: nodes}
}

func (p *RoundRobinPolicy) Node(_ QueryInfo, i int) *Node {
	all := p.nodes.Snapshot()
	if len(all) == 0 || i >= len(all) {
		return nil
	}
	offset := int(p.nodes.NextOffset())
	return all[(offset+i)%len(all)]
}

// SimpleTokenAwarePolicy routes to the token's replicas first (per the
// cluster's current Ring), then falls back to round robin over every node,
// replicas included.
type SimpleTokenAwarePolicy struct {
	nodes *NodeSet
	ring  func() Ring
}

func NewSimpleTokenAwarePolicy(nodes *NodeSet, ring func() Ring) *SimpleTokenAwarePolicy {
	return &SimpleTokenAwarePolicy{nodes: nodes, ring: ring}
}

func (p *SimpleTokenAwarePolicy) Node(qi QueryInfo, i int) *Node {
	all := p.nodes.Snapshot()
	if len(all) == 0 {
		return nil
	}
	if qi.TokenAware {
		replicas := p.ring().ReplicasForToken(qi.Token, len(all))
		if i < len(replicas) {
			return replicas[i]
		}
		i -= len(replicas)
	}
	offset := int(p.nodes.NextOffset())
	if i >= len(all) {
		return nil
	}
	return all[(offset+i)%len(all)]
}

// DCAwareRoundRobinPolicy prefers nodes in LocalDC, falling back to remote
// datacenters only once every local node has been exhausted.
type DCAwareRoundRobinPolicy struct {
	nodes   *NodeSet
	localDC string
}

func NewDCAwareRoundRobin(nodes *NodeSet, localDC string) *DCAwareRoundRobinPolicy {
	return &DCAwareRoundRobinPolicy{nodes: nodes, localDC: localDC}
}

func (p *DCAwareRoundRobinPolicy) Node(_ QueryInfo, i int) *Node {
	all := p.nodes.Snapshot()
	local := make([]*Node, 0, len(all))
	remote := make([]*Node, 0, len(all))
	for _, n := range all {
		if n.Datacenter == p.localDC {
			local = append(local, n)
		} else {
			remote = append(remote, n)
		}
	}
	offset := int(p.nodes.NextOffset())
	if i < len(local) {
		return local[(offset+i)%len(local)]
	}
	i -= len(local)
	if i < len(remote) {
		return remote[(offset+i)%len(remote)]
	}
	return nil
}

// NetworkTopologyTokenAwarePolicy is SimpleTokenAwarePolicy plus a
// datacenter preference: local-DC replicas first, then remote replicas,
// then local-DC round robin, then remote round robin.
type NetworkTopologyTokenAwarePolicy struct {
	nodes   *NodeSet
	ring    func() Ring
	localDC string
}

func NewNetworkTopologyTokenAwarePolicy(nodes *NodeSet, ring func() Ring, localDC string) *NetworkTopologyTokenAwarePolicy {
	return &NetworkTopologyTokenAwarePolicy{nodes: nodes, ring: ring, localDC: localDC}
}

func (p *NetworkTopologyTokenAwarePolicy) Node(qi QueryInfo, i int) *Node {
	all := p.nodes.Snapshot()
	if len(all) == 0 {
		return nil
	}

	var localReplicas, remoteReplicas []*Node
	if qi.TokenAware {
		for _, n := range p.ring().ReplicasForToken(qi.Token, len(all)) {
			if n.Datacenter == p.localDC {
				localReplicas = append(localReplicas, n)
			} else {
				remoteReplicas = append(remoteReplicas, n)
			}
		}
	}
	if i < len(localReplicas) {
		return localReplicas[i]
	}
	i -= len(localReplicas)
	if i < len(remoteReplicas) {
		return remoteReplicas[i]
	}
	i -= len(remoteReplicas)

	local := make([]*Node, 0, len(all))
	remote := make([]*Node, 0, len(all))
	for _, n := range all {
		if n.Datacenter == p.localDC {
			local = append(local, n)
		} else {
			remote = append(remote, n)
		}
	}
	offset := int(p.nodes.NextOffset())
	if i < len(local) {
		return local[(offset+i)%len(local)]
	}
	i -= len(local)
	if i < len(remote) {
		return remote[(offset+i)%len(remote)]
	}
	return nil
}
