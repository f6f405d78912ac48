// Package config holds the tunable constants of the buffered reader and
// index builder, loadable from the process environment so a constrained
// target can retune them (e.g. a smaller ring on a device with less PSRAM)
// without a recompile.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config mirrors the tunables spec'd for the buffered reader and index
// builder: chunk size and ring depth for the read-ahead cache, the index's
// entry cap, and the grace period given to the preload worker to prime the
// ring after SetPreloadEnabled(true).
type Config struct {
	ChunkSize       int           // must be a power of two
	RingChunks      int           // N, must be >= 2
	MaxIndexEntries int
	PreloadGrace    time.Duration
}

// Default returns the spec's documented defaults: 128 KiB chunks, a
// 32-chunk ring (4 MiB total), a 36000-entry index cap, and a 100ms
// preload-enable grace period.
func Default() Config {
	return Config{
		ChunkSize:       128 * 1024,
		RingChunks:      32,
		MaxIndexEntries: 36000,
		PreloadGrace:    100 * time.Millisecond,
	}
}

// Load reads an optional .env file (if present) and applies any of
// AVIDEMUX_CHUNK_SIZE, AVIDEMUX_RING_CHUNKS, AVIDEMUX_MAX_INDEX_ENTRIES, and
// AVIDEMUX_PRELOAD_GRACE_MS found in the environment on top of Default().
// Load never fails: a missing .env file or an absent variable is silently
// ignored, and a value that is not an integer or would leave the config
// invalid (non-power-of-two chunk size, ring depth below 2) is logged and
// the corresponding default is kept.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := Default()

	if v, ok := lookupInt("AVIDEMUX_CHUNK_SIZE"); ok {
		if v > 0 && v&(v-1) == 0 {
			cfg.ChunkSize = v
		} else {
			log.Printf("config: AVIDEMUX_CHUNK_SIZE=%d is not a positive power of two, keeping default %d", v, cfg.ChunkSize)
		}
	}

	if v, ok := lookupInt("AVIDEMUX_RING_CHUNKS"); ok {
		if v >= 2 {
			cfg.RingChunks = v
		} else {
			log.Printf("config: AVIDEMUX_RING_CHUNKS=%d is below the minimum of 2, keeping default %d", v, cfg.RingChunks)
		}
	}

	if v, ok := lookupInt("AVIDEMUX_MAX_INDEX_ENTRIES"); ok {
		if v > 0 {
			cfg.MaxIndexEntries = v
		} else {
			log.Printf("config: AVIDEMUX_MAX_INDEX_ENTRIES=%d must be positive, keeping default %d", v, cfg.MaxIndexEntries)
		}
	}

	if v, ok := lookupInt("AVIDEMUX_PRELOAD_GRACE_MS"); ok {
		if v >= 0 {
			cfg.PreloadGrace = time.Duration(v) * time.Millisecond
		} else {
			log.Printf("config: AVIDEMUX_PRELOAD_GRACE_MS=%d must be non-negative, keeping default %s", v, cfg.PreloadGrace)
		}
	}

	return cfg
}

func lookupInt(name string) (int, bool) {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, ignoring", name, s)
		return 0, false
	}
	return v, true
}
