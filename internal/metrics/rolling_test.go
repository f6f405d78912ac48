package metrics

import (
	"sync"
	"testing"
)

func TestCounterAddValue(t *testing.T) {
	var c Counter
	if v := c.Add(3); v != 3 {
		t.Errorf("Add(3) = %d, want 3", v)
	}
	if v := c.Add(4); v != 7 {
		t.Errorf("Add(4) = %d, want 7", v)
	}
	if v := c.Value(); v != 7 {
		t.Errorf("Value() = %d, want 7", v)
	}
}

func TestCounterConcurrentAdd(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
		}()
	}
	wg.Wait()
	if v := c.Value(); v != 100 {
		t.Errorf("Value() = %d, want 100", v)
	}
}

func TestCacheStatsHitRate(t *testing.T) {
	var s CacheStats
	if rate := s.HitRate(); rate != 0 {
		t.Errorf("HitRate() with no samples = %f, want 0", rate)
	}
	s.Hits.Add(3)
	s.Misses.Add(1)
	if rate := s.HitRate(); rate != 0.75 {
		t.Errorf("HitRate() = %f, want 0.75", rate)
	}
}
