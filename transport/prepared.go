package transport

import (
	"context"
	"sync"

	"github.com/kulezi/cqldriver/frame"
	"go.uber.org/atomic"
)

// prepareKey is the cache key of spec §4.5: session identity plus keyspace
// plus CQL text, so two sessions (or two keyspaces) never share a prepared
// statement's queryId.
type prepareKey struct {
	session  uint64
	keyspace string
	cql      string
}

// PreparedEntry is one cached prepared statement. ResultMetadata is held
// behind an atomic.Value so a mid-stream RESULT carrying a new
// resultMetadataId can swap it without a lock on the read path (spec
// §4.8's rotation, §5's lock-free replacement).
type PreparedEntry struct {
	ID               []byte
	ResultMetadataID []byte
	VariablesMeta    frame.ResultMetadata
	PkIndexes        []int

	resultMeta atomic.Value // *frame.ResultMetadata
}

func newPreparedEntry(s Statement) *PreparedEntry {
	e := &PreparedEntry{
		ID:               s.ID,
		ResultMetadataID: s.ResultMetadataID,
		PkIndexes:        s.PkIndexes,
	}
	e.resultMeta.Store(s.Metadata)
	return e
}

func (e *PreparedEntry) ResultMetadata() *frame.ResultMetadata {
	m, _ := e.resultMeta.Load().(*frame.ResultMetadata)
	return m
}

// UpdateResultMetadata atomically swaps in a new result metadata pointer.
// Nothing in the request pipeline calls it: a RESULT carrying a different
// resultMetadataId updates only the Iter that received it, not this entry.
func (e *PreparedEntry) UpdateResultMetadata(id []byte, meta *frame.ResultMetadata) {
	e.ResultMetadataID = id
	e.resultMeta.Store(meta)
}

// Statement builds a fresh bound Statement from this entry, cloning its
// variables metadata so concurrent callers don't share mutable Values.
func (e *PreparedEntry) Statement(cql string) Statement {
	return Statement{
		Content:          cql,
		ID:               e.ID,
		ResultMetadataID: e.ResultMetadataID,
		Values:           make([]frame.Value, len(e.VariablesMeta.Columns)),
		PkIndexes:        e.PkIndexes,
		Metadata:         e.ResultMetadata(),
	}
}

type prepareSlot struct {
	done  chan struct{}
	entry *PreparedEntry
	err   error
}

// PreparedCache is the single-flight prepared-statement cache of spec
// §4.5: concurrent GetOrPrepare calls for the same key collapse into one
// PREPARE round trip, and a failed PREPARE is never cached.
type PreparedCache struct {
	sessionID uint64

	mu    sync.Mutex
	slots map[prepareKey]*prepareSlot
}

func NewPreparedCache(sessionID uint64) *PreparedCache {
	return &PreparedCache{sessionID: sessionID, slots: make(map[prepareKey]*prepareSlot)}
}

// GetOrPrepare returns the cached entry for (keyspace, cql), calling
// prepare exactly once per key even under concurrent callers; prepare's
// own error is returned to every waiter and nothing is cached.
func (c *PreparedCache) GetOrPrepare(ctx context.Context, keyspace, cql string, prepare func(context.Context) (Statement, error)) (*PreparedEntry, error) {
	key := prepareKey{session: c.sessionID, keyspace: keyspace, cql: cql}

	c.mu.Lock()
	if slot, ok := c.slots[key]; ok {
		c.mu.Unlock()
		return c.wait(ctx, slot)
	}

	slot := &prepareSlot{done: make(chan struct{})}
	c.slots[key] = slot
	c.mu.Unlock()

	stmt, err := prepare(ctx)
	if err != nil {
		c.mu.Lock()
		delete(c.slots, key)
		c.mu.Unlock()
		slot.err = err
		close(slot.done)
		return nil, err
	}

	slot.entry = newPreparedEntry(stmt)
	close(slot.done)
	return slot.entry, nil
}

func (c *PreparedCache) wait(ctx context.Context, slot *prepareSlot) (*PreparedEntry, error) {
	select {
	case <-slot.done:
		return slot.entry, slot.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops a cached entry, used after an UNPREPARED error that the
// Repreparer could not resolve (the statement's shape may have changed).
func (c *PreparedCache) Invalidate(keyspace, cql string) {
	c.mu.Lock()
	delete(c.slots, prepareKey{session: c.sessionID, keyspace: keyspace, cql: cql})
	c.mu.Unlock()
}
