// Package ring implements the buffered, read-ahead byte stream that sits
// between the AVI parser and a slow block-oriented storage backend: a
// fixed-size ring of chunk buffers kept filled by one background worker,
// served to the consumer on a cache hit (the lock is held only for the
// coverage check, the copy runs outside it) and falling back to a
// synchronous positioned read on a miss.
//
// Two modes are supported. Passthrough (the default after Open) forwards
// every Read/Seek straight to the underlying file and is meant for the
// frequent small seeks of header parsing. Cached mode, entered with
// SetPreloadEnabled(true), serves reads from the ring and lets the worker
// drive ahead of the consumer.
package ring

import (
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brightpath/avidemux/internal/config"
	"github.com/brightpath/avidemux/internal/metrics"
)

// Reader is a random-access byte stream over a file, backed by a
// background read-ahead worker. The zero value is not usable; construct
// with Open.
type Reader struct {
	f        *os.File
	fileSize int64

	chunkSize int
	ringN     int
	buffers   [][]byte

	mu               sync.Mutex
	cond             *sync.Cond
	active           bool // mu-protected authoritative preload-enabled flag
	stop             bool
	firstChunkOffset int64
	chunkHead        int
	chunkLen         int
	currentOffset    int64 // consumer-owned; worker reads it only while holding mu

	preloadEnabled atomic.Bool // lock-free mirror of active, for the Read/Seek fast path
	grace          time.Duration

	stats  metrics.CacheStats
	logger *log.Logger
	verbose bool

	workerDone chan struct{}
}

// Open opens path and starts its background preload worker. The reader
// starts in passthrough mode; call SetPreloadEnabled(true) to switch to
// cached reads.
func Open(path string, cfg config.Config) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{
		f:          f,
		fileSize:   st.Size(),
		chunkSize:  cfg.ChunkSize,
		ringN:      cfg.RingChunks,
		buffers:    make([][]byte, cfg.RingChunks),
		grace:      cfg.PreloadGrace,
		logger:     log.Default(),
		workerDone: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	for i := range r.buffers {
		r.buffers[i] = make([]byte, cfg.ChunkSize)
	}

	go r.workerLoop()
	return r, nil
}

// SetLogger overrides the destination for the reader's diagnostic output.
// A nil logger is ignored.
func (r *Reader) SetLogger(l *log.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetVerbose enables the ring's debug-level trace (chunk evict/fill
// bookkeeping), off by default.
func (r *Reader) SetVerbose(v bool) { r.verbose = v }

// Stats returns the reader's cumulative cache hit/miss counters.
func (r *Reader) Stats() metrics.CacheStats { return r.stats }

// FileSize returns the file's size, fixed at Open.
func (r *Reader) FileSize() int64 { return r.fileSize }

// Position reports the current logical cursor.
func (r *Reader) Position() int64 { return r.currentOffset }

// PreloadEnabled reports whether the reader is currently in cached mode.
func (r *Reader) PreloadEnabled() bool { return r.preloadEnabled.Load() }

// SetPreloadEnabled toggles between passthrough and cached mode. Enabling
// captures the file's current OS cursor as the logical cursor, signals the
// worker, and waits out a short grace period to let the ring prime before
// returning. Disabling repositions the OS cursor to the logical cursor so
// a subsequent passthrough Read/Seek continues seamlessly. Calling with the
// same value twice in a row is a no-op.
func (r *Reader) SetPreloadEnabled(enable bool) {
	r.mu.Lock()
	if r.active == enable {
		r.mu.Unlock()
		return
	}

	if enable {
		if pos, err := r.f.Seek(0, io.SeekCurrent); err == nil {
			r.currentOffset = pos
		}
		r.active = true
		r.preloadEnabled.Store(true)
		r.cond.Broadcast()
		r.mu.Unlock()
		time.Sleep(r.grace)
		return
	}

	r.f.Seek(r.currentOffset, io.SeekStart)
	r.active = false
	r.preloadEnabled.Store(false)
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Read fills dst with up to len(dst) bytes starting at the current cursor,
// advances the cursor by the number of bytes copied, and returns that
// count. A short read is not an error; a read at or past end of file
// returns 0, io.EOF.
func (r *Reader) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if !r.preloadEnabled.Load() {
		n, err := r.f.Read(dst)
		r.currentOffset += int64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}

	current := r.currentOffset
	if current >= r.fileSize {
		return 0, io.EOF
	}
	size := int64(len(dst))
	if current+size > r.fileSize {
		size = r.fileSize - current
	}
	want := dst[:size]

	r.mu.Lock()
	if r.coveredLocked(current, size) {
		first, head, length := r.firstChunkOffset, r.chunkHead, r.chunkLen
		r.mu.Unlock()
		n := r.copyFromRing(want, current, first, head, length)
		r.currentOffset += int64(n)
		r.stats.Hits.Add(1)
		return n, nil
	}

	// Miss: the coverage check above ran under the lock, so the worker
	// cannot have filled the gap since. Fall back to a synchronous
	// positioned read while still holding the lock, matching the contract
	// that the file descriptor is only ever touched under the lock in
	// cached mode.
	n, err := r.f.ReadAt(want, current)
	if err == io.EOF && n > 0 {
		err = nil
	}
	r.currentOffset += int64(n)
	r.mu.Unlock()
	r.stats.Misses.Add(1)
	r.cond.Broadcast()
	return n, err
}

// coveredLocked reports whether [offset, offset+size) lies entirely within
// the currently cached chunk range. Caller must hold r.mu.
func (r *Reader) coveredLocked(offset, size int64) bool {
	if r.chunkLen == 0 {
		return false
	}
	end := r.firstChunkOffset + int64(r.chunkLen)*int64(r.chunkSize)
	return offset >= r.firstChunkOffset && offset+size <= end
}

// copyFromRing copies [current, current+len(dst)) out of the ring, given a
// snapshot of the ring's metadata taken while the coverage check held the
// lock. It runs without the lock: the chunks it walks are guaranteed not to
// be evicted by the worker this cycle, since eviction only removes chunks
// lying entirely before current_offset.
func (r *Reader) copyFromRing(dst []byte, current, first int64, head, length int) int {
	n := 0
	remaining := len(dst)
	cursor := current
	for i := 0; i < length && remaining > 0; i++ {
		chunkStart := first + int64(i)*int64(r.chunkSize)
		chunkEnd := chunkStart + int64(r.chunkSize)
		if cursor >= chunkEnd {
			continue
		}
		if cursor+int64(remaining) <= chunkStart {
			break
		}
		idx := (head + i) % r.ringN
		offsetInChunk := 0
		if cursor > chunkStart {
			offsetInChunk = int(cursor - chunkStart)
		}
		toCopy := r.chunkSize - offsetInChunk
		if toCopy > remaining {
			toCopy = remaining
		}
		copy(dst[n:n+toCopy], r.buffers[idx][offsetInChunk:offsetInChunk+toCopy])
		n += toCopy
		cursor += int64(toCopy)
		remaining -= toCopy
	}
	return n
}

// Seek repositions the cursor. In passthrough mode it's forwarded to the
// OS file descriptor. In cached mode it only updates the logical cursor;
// the worker reconciles the ring against the new position on its next
// tick. Seeking past end of file is allowed and leaves subsequent reads
// returning zero bytes.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if !r.preloadEnabled.Load() {
		pos, err := r.f.Seek(offset, whence)
		if err == nil {
			r.currentOffset = pos
		}
		return pos, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = r.currentOffset + offset
	case io.SeekEnd:
		newOffset = r.fileSize + offset
	default:
		return r.currentOffset, os.ErrInvalid
	}
	if newOffset < 0 {
		newOffset = 0
	}
	r.currentOffset = newOffset
	r.cond.Broadcast()
	return newOffset, nil
}

// Close stops the preload worker, waits for it to exit, and closes the
// underlying file. Safe to call once; a second call closes an
// already-closed file descriptor and returns that error.
func (r *Reader) Close() error {
	r.mu.Lock()
	r.stop = true
	r.cond.Broadcast()
	r.mu.Unlock()
	<-r.workerDone
	return r.f.Close()
}

// workerLoop is the sole background goroutine touching ring metadata
// outside of a consumer's miss path. It holds r.mu for the duration of
// exactly one evict/reset/fill step, then releases it before deciding
// whether to do another.
func (r *Reader) workerLoop() {
	defer close(r.workerDone)

	r.mu.Lock()
	for {
		for !r.active && !r.stop {
			r.cond.Wait()
		}
		if r.stop {
			r.mu.Unlock()
			return
		}

		progressed := r.stepLocked()
		if !progressed {
			r.cond.Wait()
			continue
		}

		// Give a waiting consumer (miss path, toggle) a chance at the
		// lock between fill/evict steps rather than monopolizing it
		// while there's a backlog of ring work to do.
		r.mu.Unlock()
		r.mu.Lock()
	}
}

// stepLocked performs at most one unit of ring work: reset, evict, or
// fill, in that priority order, and reports whether it changed anything.
// Caller must hold r.mu.
func (r *Reader) stepLocked() bool {
	current := r.currentOffset

	if current < r.firstChunkOffset {
		r.firstChunkOffset = 0
		r.chunkHead = 0
		r.chunkLen = 0
		if r.verbose {
			r.logger.Printf("ring: reset (cursor 0x%x behind ring)", current)
		}
		return true
	}

	if r.chunkLen > 0 && r.firstChunkOffset+int64(r.chunkSize) <= current {
		evicted := 0
		for r.chunkLen > 0 && r.firstChunkOffset+int64(r.chunkSize) <= current {
			r.firstChunkOffset += int64(r.chunkSize)
			r.chunkHead = (r.chunkHead + 1) % r.ringN
			r.chunkLen--
			evicted++
		}
		if r.verbose {
			r.logger.Printf("ring: evicted %d chunk(s), first_chunk_offset now 0x%x", evicted, r.firstChunkOffset)
		}
		return true
	}

	if r.chunkLen < r.ringN-1 {
		var idx int
		var fileOffset int64
		if r.chunkLen > 0 && r.firstChunkOffset <= current {
			idx = (r.chunkHead + r.chunkLen) % r.ringN
			fileOffset = r.firstChunkOffset + int64(r.chunkLen)*int64(r.chunkSize)
		} else {
			idx = 0
			fileOffset = current &^ (int64(r.chunkSize) - 1)
			r.chunkHead = 0
			r.firstChunkOffset = fileOffset
		}

		readSize := int64(r.chunkSize)
		if fileOffset+readSize > r.fileSize {
			readSize = r.fileSize - fileOffset
		}
		if readSize <= 0 {
			return false
		}

		n, err := r.f.ReadAt(r.buffers[idx][:readSize], fileOffset)
		if err != nil && err != io.EOF {
			r.logger.Printf("ring: preload read at 0x%x failed: %v", fileOffset, err)
			return false
		}
		if int64(n) != readSize {
			// Short read: leave the ring unchanged, the next tick
			// re-evaluates from scratch.
			return false
		}
		r.chunkLen++
		if r.verbose {
			r.logger.Printf("ring: filled chunk %d at 0x%x (%d bytes), chunk_len=%d", idx, fileOffset, n, r.chunkLen)
		}
		return true
	}

	return false
}
