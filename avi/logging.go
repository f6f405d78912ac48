package avi

import "log"

// Logger receives the package's diagnostic output (skipped oversized
// frames, parse and index-build summaries). Defaults to the standard
// library's default logger; an embedder can point it at its own sink.
var Logger = log.Default()

// Verbose gates the package's debug-level trace, off by default. Intended
// for interactive tools like cmd/avidump, not library use in a running
// service.
var Verbose = false

func logf(format string, args ...any) {
	Logger.Printf(format, args...)
}

func debugf(format string, args ...any) {
	if Verbose {
		Logger.Printf(format, args...)
	}
}
