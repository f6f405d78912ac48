package avi

import "errors"

// Sentinel errors returned by the demuxer. Callers should match against
// these with errors.Is rather than comparing formatted strings, since most
// call sites wrap them with positional context via fmt.Errorf("...: %w").
var (
	// ErrInvalidFormat is returned when the top-level RIFF/AVI signature,
	// or a header chunk required by the container format, is missing or
	// malformed.
	ErrInvalidFormat = errors.New("avi: invalid container format")

	// ErrTruncated is returned when a chunk header or payload promises
	// more bytes than the underlying stream actually has.
	ErrTruncated = errors.New("avi: truncated stream")

	// ErrBufferTooSmall identifies, in ReadFrame's log output, the case
	// where a caller-supplied buffer cannot hold the next frame's payload.
	// ReadFrame does not return it directly: the frame is skipped and
	// reading continues with the next chunk rather than failing the call.
	ErrBufferTooSmall = errors.New("avi: destination buffer too small for frame")

	// ErrProtocol is returned when a caller violates ReadFrame's contract,
	// e.g. passing a nil buffer for a stream that is actually present.
	ErrProtocol = errors.New("avi: protocol error")

	// ErrIndexUnavailable is returned by SeekToFrame when the file carries
	// no idx1 chunk (or it was empty), so frame-accurate seeking has
	// nothing to consult.
	ErrIndexUnavailable = errors.New("avi: no seek index available")

	// ErrIndexOutOfRange is returned by SeekToFrame when the requested
	// frame number lies beyond the last indexed video frame.
	ErrIndexOutOfRange = errors.New("avi: frame index out of range")
)
