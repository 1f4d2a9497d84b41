// Package recordcache provides a small TTL-bounded LRU cache mapping a
// record-id to the batch-id/agent-id needed to resolve a late-arriving
// DimensionResult once the orchestrator's in-flight table has already
// forgotten the task (§4.3, "Unknown task-id on result arrival"). It is
// adapted from pkg/cachegc, generalised from an
// interface{}-keyed cache to this one lookup shape.
package recordcache

import (
	"time"

	"github.com/hashicorp/golang-lru/simplelru"

	"go.evalmesh.dev/engine/pkg/eval"
)

// Entry is the cached lookup result for a record-id.
type Entry struct {
	BatchID string
	AgentID string
}

// Cache is a local in-memory cache of recent record lookups, bounded by
// both entry count (LRU eviction) and age (TTL expiry).
type Cache struct {
	lru simplelru.LRUCache
	ttl time.Duration
}

type cacheEntry struct {
	entry       Entry
	lastUpdated time.Time
}

// New creates a cache holding at most size entries, each valid for ttl.
func New(size int, ttl time.Duration) (*Cache, error) {
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: lru, ttl: ttl}, nil
}

// Put records a lookup for future late-result resolution.
func (c *Cache) Put(recordID string, e Entry) {
	c.lru.Add(recordID, &cacheEntry{entry: e, lastUpdated: time.Now()})
}

// PutFromRecord is a convenience wrapper around Put for a eval.Record.
func (c *Cache) PutFromRecord(r eval.Record) {
	c.Put(r.RecordID, Entry{BatchID: r.BatchID, AgentID: r.AgentID})
}

// Get returns a cached lookup, ignoring (and evicting) expired entries.
func (c *Cache) Get(recordID string) (Entry, bool) {
	v, ok := c.lru.Get(recordID)
	if !ok {
		return Entry{}, false
	}
	ce := v.(*cacheEntry)
	if time.Since(ce.lastUpdated) > c.ttl {
		c.lru.Remove(recordID)
		return Entry{}, false
	}
	return ce.entry, true
}
