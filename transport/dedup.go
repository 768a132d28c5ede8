package transport

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultDedupSize = 10000

// Deduplicator suppresses repeated deliveries of the same transport message.
// An id is remembered from Begin until ttl has passed, so memory stays
// bounded over long uptimes.
type Deduplicator struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, time.Time]
}

func NewDeduplicator(ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		seen: expirable.NewLRU[string, time.Time](DefaultDedupSize, nil, ttl),
	}
}

// Begin reports whether id is new. Empty ids are never deduplicated.
func (d *Deduplicator) Begin(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(id); ok {
		return false
	}
	d.seen.Add(id, time.Now())
	return true
}

func (d *Deduplicator) Len() int {
	return d.seen.Len()
}
