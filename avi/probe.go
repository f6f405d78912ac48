package avi

import "github.com/brightpath/avidemux/avi/aviio"

// Probe reports whether b begins with a well-formed RIFF/AVI signature:
// "RIFF", a 4-byte size field, then "AVI ". It only inspects the first 12
// bytes and never reads past len(b), so it is safe to call with a short
// sniff buffer before committing to opening a file as an AVI container.
func Probe(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	riff := aviio.FourCC(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	kind := aviio.FourCC(uint32(b[8]) | uint32(b[9])<<8 | uint32(b[10])<<16 | uint32(b[11])<<24)
	return riff == aviio.RIFF && kind == aviio.AVI_
}
