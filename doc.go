// Package cqldriver is a Cassandra/Scylla native-protocol client: wire
// codec, prepared-statement cache with single-flight reprepare, per-host
// shard-aware connection pooling, and a paged lazy row-set iterator.
//
// A Session is built from a SessionConfig and a set of contact points; it
// owns a transport.Cluster (topology, pools, host selection policy) and a
// PreparedCache shared by every Query it produces.
package cqldriver
