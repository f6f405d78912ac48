// Package aviio decodes the little-endian packed records that make up an
// AVI 1.0 RIFF container: chunk headers, the main AVI header, stream
// headers, BITMAPINFOHEADER/WAVEFORMATEX stream formats, and idx1 index
// entries.
//
// Every record is decoded field-by-field from a raw byte slice at its
// documented on-disk offset rather than read into a Go struct with
// binary.Read, so the wire layout is normative and never at the mercy of
// struct alignment.
package aviio

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrInvalidFormat names a fixed signature that does not match what the
	// AVI 1.0 container format requires. No function in this package
	// returns it.
	ErrInvalidFormat = errors.New("aviio: invalid AVI format")
	// ErrShortRecord names a record with fewer bytes than its fixed size.
	// No function in this package returns it: the Read* decoders return
	// io.ReadFull's io.EOF or io.ErrUnexpectedEOF instead.
	ErrShortRecord = errors.New("aviio: short record")
)

// FourCC is a 4-byte ASCII tag stored as a 32-bit little-endian word.
type FourCC uint32

// NewFourCC packs a 4-character ASCII string into a FourCC. Panics if s is
// not exactly 4 bytes long; only ever called with compile-time constants.
func NewFourCC(s string) FourCC {
	if len(s) != 4 {
		panic("aviio: fourcc must be exactly 4 characters")
	}
	return FourCC(binary.LittleEndian.Uint32([]byte(s)))
}

func (f FourCC) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(f))
	return string(b[:])
}

// Well-known chunk, list-type, and stream-type tags.
var (
	RIFF FourCC = NewFourCC("RIFF")
	AVI_ FourCC = NewFourCC("AVI ")
	LIST FourCC = NewFourCC("LIST")
	hdrl FourCC = NewFourCC("hdrl")
	avih FourCC = NewFourCC("avih")
	strl FourCC = NewFourCC("strl")
	strh FourCC = NewFourCC("strh")
	strf FourCC = NewFourCC("strf")
	movi FourCC = NewFourCC("movi")
	idx1 FourCC = NewFourCC("idx1")
	vids FourCC = NewFourCC("vids")
	auds FourCC = NewFourCC("auds")

	Chunk00db FourCC = NewFourCC("00db") // uncompressed video frame, stream 0
	Chunk00dc FourCC = NewFourCC("00dc") // compressed video frame, stream 0
	Chunk01wb FourCC = NewFourCC("01wb") // audio data, stream 1
)

// Exported accessors for the unexported well-known tags above, so callers
// outside the package can recognize LIST types without re-deriving them.
func Hdrl() FourCC { return hdrl }
func Avih() FourCC { return avih }
func Strl() FourCC { return strl }
func Strh() FourCC { return strh }
func Strf() FourCC { return strf }
func Movi() FourCC { return movi }
func Idx1() FourCC { return idx1 }
func Vids() FourCC { return vids }
func Auds() FourCC { return auds }

// ChunkHeaderSize is the fixed on-disk size of a RIFF chunk header.
const ChunkHeaderSize = 8

// ChunkHeader is the 8-byte fourcc+size header preceding every RIFF chunk's
// payload. Size excludes any trailing pad byte.
type ChunkHeader struct {
	FourCC FourCC
	Size   uint32
}

// Padded reports the total bytes (header + data + pad) a chunk with this
// header occupies on disk.
func (h ChunkHeader) Padded() int64 {
	return ChunkHeaderSize + int64(h.Size) + int64(h.Size&1)
}

// ReadChunkHeader reads and decodes an 8-byte chunk header from r. A short
// read (including io.EOF with zero bytes consumed) is reported via the
// returned error; callers treat that as end of the enclosing chunk list.
func ReadChunkHeader(r io.Reader) (ChunkHeader, error) {
	var buf [ChunkHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ChunkHeader{}, err
	}
	return ChunkHeader{
		FourCC: FourCC(binary.LittleEndian.Uint32(buf[0:4])),
		Size:   binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// MainAVIHeaderSize is the fixed packed size of the avih record.
const MainAVIHeaderSize = 56

// MainAVIHeader is the AVI main header (the avih chunk's payload).
type MainAVIHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
}

// ReadMainAVIHeader decodes a 56-byte avih record from r.
func ReadMainAVIHeader(r io.Reader) (MainAVIHeader, error) {
	var buf [MainAVIHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return MainAVIHeader{}, err
	}
	le := binary.LittleEndian
	return MainAVIHeader{
		MicroSecPerFrame:    le.Uint32(buf[0:4]),
		MaxBytesPerSec:      le.Uint32(buf[4:8]),
		PaddingGranularity:  le.Uint32(buf[8:12]),
		Flags:               le.Uint32(buf[12:16]),
		TotalFrames:         le.Uint32(buf[16:20]),
		InitialFrames:       le.Uint32(buf[20:24]),
		Streams:             le.Uint32(buf[24:28]),
		SuggestedBufferSize: le.Uint32(buf[28:32]),
		Width:               le.Uint32(buf[32:36]),
		Height:              le.Uint32(buf[36:40]),
		// buf[40:56] is the reserved[4]uint32 tail; not surfaced.
	}, nil
}

// StreamHeaderSize is the fixed packed size of the strh record.
const StreamHeaderSize = 56

// StreamHeader is an AVI stream header (the strh chunk's payload).
type StreamHeader struct {
	Type                FourCC
	Handler             FourCC
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
}

// ReadStreamHeader decodes a 56-byte strh record from r.
func ReadStreamHeader(r io.Reader) (StreamHeader, error) {
	var buf [StreamHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StreamHeader{}, err
	}
	le := binary.LittleEndian
	return StreamHeader{
		Type:                FourCC(le.Uint32(buf[0:4])),
		Handler:             FourCC(le.Uint32(buf[4:8])),
		Flags:               le.Uint32(buf[8:12]),
		Priority:            le.Uint16(buf[12:14]),
		Language:            le.Uint16(buf[14:16]),
		InitialFrames:       le.Uint32(buf[16:20]),
		Scale:               le.Uint32(buf[20:24]),
		Rate:                le.Uint32(buf[24:28]),
		Start:               le.Uint32(buf[28:32]),
		Length:              le.Uint32(buf[32:36]),
		SuggestedBufferSize: le.Uint32(buf[36:40]),
		Quality:             le.Uint32(buf[40:44]),
		SampleSize:          le.Uint32(buf[44:48]),
		// buf[48:56] is the rcFrame rect; not surfaced.
	}, nil
}

// BitmapInfoHeaderSize is the fixed packed size of a BITMAPINFOHEADER.
const BitmapInfoHeaderSize = 40

// BitmapInfoHeader is the video strf payload (BITMAPINFOHEADER).
type BitmapInfoHeader struct {
	Size        uint32
	Width       int32
	Height      int32
	Planes      uint16
	BitCount    uint16
	Compression FourCC
	SizeImage   uint32
}

// ReadBitmapInfoHeader decodes the fixed 40-byte BITMAPINFOHEADER prefix of
// an strf payload from r. Any trailing palette/extra bytes are left for the
// caller to skip.
func ReadBitmapInfoHeader(r io.Reader) (BitmapInfoHeader, error) {
	var buf [BitmapInfoHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return BitmapInfoHeader{}, err
	}
	le := binary.LittleEndian
	return BitmapInfoHeader{
		Size:        le.Uint32(buf[0:4]),
		Width:       int32(le.Uint32(buf[4:8])),
		Height:      int32(le.Uint32(buf[8:12])),
		Planes:      le.Uint16(buf[12:14]),
		BitCount:    le.Uint16(buf[14:16]),
		Compression: FourCC(le.Uint32(buf[16:20])),
		SizeImage:   le.Uint32(buf[20:24]),
		// buf[24:40] (pels-per-meter, clr used/important) not surfaced.
	}, nil
}

// WaveFormatExSize is the fixed packed size of a WAVEFORMATEX.
const WaveFormatExSize = 18

// WaveFormatEx is the audio strf payload (WAVEFORMATEX).
type WaveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
}

// ReadWaveFormatEx decodes the fixed 18-byte WAVEFORMATEX prefix of an strf
// payload from r. Any CbSize trailing extra-format bytes are left for the
// caller to skip.
func ReadWaveFormatEx(r io.Reader) (WaveFormatEx, error) {
	var buf [WaveFormatExSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return WaveFormatEx{}, err
	}
	le := binary.LittleEndian
	return WaveFormatEx{
		FormatTag:      le.Uint16(buf[0:2]),
		Channels:       le.Uint16(buf[2:4]),
		SamplesPerSec:  le.Uint32(buf[4:8]),
		AvgBytesPerSec: le.Uint32(buf[8:12]),
		BlockAlign:     le.Uint16(buf[12:14]),
		BitsPerSample:  le.Uint16(buf[14:16]),
		CbSize:         le.Uint16(buf[16:18]),
	}, nil
}

// IndexEntrySize is the fixed packed size of one idx1 record.
const IndexEntrySize = 16

// IndexEntryKeyframe marks a keyframe in IndexEntry.Flags.
const IndexEntryKeyframe = 0x00000010

// IndexEntry is one 16-byte record of the legacy idx1 index.
type IndexEntry struct {
	ChunkID FourCC
	Flags   uint32
	Offset  uint32 // relative to the 'movi' fourcc
	Size    uint32
}

// ReadIndexEntry decodes a single 16-byte idx1 record from r.
func ReadIndexEntry(r io.Reader) (IndexEntry, error) {
	var buf [IndexEntrySize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return IndexEntry{}, err
	}
	le := binary.LittleEndian
	return IndexEntry{
		ChunkID: FourCC(le.Uint32(buf[0:4])),
		Flags:   le.Uint32(buf[4:8]),
		Offset:  le.Uint32(buf[8:12]),
		Size:    le.Uint32(buf[12:16]),
	}, nil
}

// Align rounds n up to the next even number, mirroring RIFF's WORD padding
// rule for chunk data.
func Align(n int64) int64 {
	return n + (n & 1)
}
