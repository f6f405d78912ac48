// Package metrics provides small, dependency-free counters used to expose
// the buffered reader's cache behavior to an embedding application, in the
// same spirit as a playback performance monitor: cheap to update on a hot
// path, safe to read concurrently from a debug/status endpoint.
package metrics

import "sync"

// Counter is a concurrency-safe monotonically increasing counter.
type Counter struct {
	mu sync.Mutex
	n  uint64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += delta
	return c.n
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// CacheStats tracks hit/miss counts for the buffered reader's read path so
// an embedder can watch cache effectiveness (e.g. to decide the ring is
// undersized for a given bitrate) without instrumenting the reader itself.
type CacheStats struct {
	Hits   Counter
	Misses Counter
}

// HitRate returns the fraction of reads served from the ring, or 0 if no
// reads have been recorded yet.
func (s *CacheStats) HitRate() float64 {
	hits := s.Hits.Value()
	misses := s.Misses.Value()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
