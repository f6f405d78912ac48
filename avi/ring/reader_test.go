package ring

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brightpath/avidemux/internal/config"
)

func writeTestFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251) // a prime period so chunk-boundary aliasing is easy to spot
	}
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, data
}

func testConfig() config.Config {
	return config.Config{ChunkSize: 16, RingChunks: 4, MaxIndexEntries: 100, PreloadGrace: 5 * time.Millisecond}
}

func TestPassthroughReadMatchesFile(t *testing.T) {
	path, data := writeTestFile(t, 200)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 50)
	n, err := r.Read(buf)
	if err != nil || n != 50 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(buf, data[:50]) {
		t.Error("passthrough read content mismatch")
	}
	if r.Position() != 50 {
		t.Errorf("Position() = %d, want 50", r.Position())
	}
}

func TestCachedReadMatchesPassthrough(t *testing.T) {
	path, data := writeTestFile(t, 200)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	got := make([]byte, 0, len(data))
	buf := make([]byte, 7) // an odd stride so reads straddle chunk boundaries
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			break
		}
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("cached read content mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

func TestSeekBackwardTriggersResetAndStillReadsCorrectly(t *testing.T) {
	path, data := writeTestFile(t, 200)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	buf := make([]byte, 100)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if _, err := r.Seek(10, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf2 := make([]byte, 30)
	n, err := r.Read(buf2)
	if err != nil {
		t.Fatalf("Read after backward seek: %v", err)
	}
	if !bytes.Equal(buf2[:n], data[10:10+n]) {
		t.Error("read after backward seek returned wrong bytes")
	}
}

func TestSetPreloadEnabledIdempotent(t *testing.T) {
	path, data := writeTestFile(t, 64)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	r.SetPreloadEnabled(true) // second call must be a no-op, not re-sync position
	r.SetPreloadEnabled(false)
	r.SetPreloadEnabled(false)

	buf := make([]byte, len(data))
	n, err := r.Read(buf)
	if err != nil || n != len(data) {
		t.Fatalf("Read after toggling: n=%d err=%v", n, err)
	}
	if !bytes.Equal(buf, data) {
		t.Error("content mismatch after idempotent enable/disable")
	}
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	path, _ := writeTestFile(t, 20)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	if _, err := r.Seek(20, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 10)
	n, err := r.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("Read at EOF: n=%d err=%v, want 0, io.EOF", n, err)
	}
}

func TestClosingDuringActivePreloadDoesNotHang(t *testing.T) {
	path, _ := writeTestFile(t, 10000)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.SetPreloadEnabled(true)

	done := make(chan error, 1)
	go func() { done <- r.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return promptly while the worker was active")
	}
}

func TestChunkLenNeverExceedsRingMinusOne(t *testing.T) {
	path, _ := writeTestFile(t, 10000)
	cfg := testConfig()
	r, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	// Give the worker plenty of ticks to fill the ring to capacity.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		full := r.chunkLen >= r.ringN-1
		r.mu.Unlock()
		if full {
			break
		}
		time.Sleep(time.Millisecond)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chunkLen > r.ringN-1 {
		t.Errorf("chunkLen = %d, must never exceed ringN-1 = %d", r.chunkLen, r.ringN-1)
	}
}

func TestStatsRecordHitsAndMisses(t *testing.T) {
	path, _ := writeTestFile(t, 1000)
	r, err := Open(path, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	r.SetPreloadEnabled(true)
	buf := make([]byte, 8)
	for i := 0; i < 50; i++ {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	stats := r.Stats()
	if stats.Hits.Value()+stats.Misses.Value() == 0 {
		t.Error("expected at least one recorded hit or miss")
	}
}
