package aviio

import (
	"bytes"
	"io"
	"testing"
)

func TestFourCCRoundTrip(t *testing.T) {
	f := NewFourCC("RIFF")
	if got := f.String(); got != "RIFF" {
		t.Errorf("String() = %q, want %q", got, "RIFF")
	}
	if f != RIFF {
		t.Errorf("NewFourCC(\"RIFF\") != RIFF sentinel")
	}
}

func TestFourCCPanicsOnBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-4-byte fourcc")
		}
	}()
	NewFourCC("abc")
}

func TestReadChunkHeader(t *testing.T) {
	buf := append([]byte("00dc"), 0x04, 0x00, 0x00, 0x00)
	h, err := ReadChunkHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadChunkHeader: %v", err)
	}
	if h.FourCC != Chunk00dc {
		t.Errorf("FourCC = %v, want 00dc", h.FourCC)
	}
	if h.Size != 4 {
		t.Errorf("Size = %d, want 4", h.Size)
	}
	if h.Padded() != 12 {
		t.Errorf("Padded() = %d, want 12", h.Padded())
	}
}

func TestReadChunkHeaderShort(t *testing.T) {
	_, err := ReadChunkHeader(bytes.NewReader([]byte{1, 2, 3}))
	if err == nil {
		t.Fatal("expected error on short chunk header")
	}
}

func TestReadChunkHeaderOddSizePadded(t *testing.T) {
	buf := append([]byte("01wb"), 0x03, 0x00, 0x00, 0x00)
	h, err := ReadChunkHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadChunkHeader: %v", err)
	}
	if h.Padded() != 8+3+1 {
		t.Errorf("Padded() = %d, want %d", h.Padded(), 8+3+1)
	}
}

func TestReadMainAVIHeader(t *testing.T) {
	buf := make([]byte, MainAVIHeaderSize)
	putU32 := func(off int, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	putU32(0, 33333) // micro_sec_per_frame (30fps)
	putU32(16, 150)  // total_frames
	putU32(32, 320)  // width
	putU32(36, 240)  // height

	h, err := ReadMainAVIHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadMainAVIHeader: %v", err)
	}
	if h.MicroSecPerFrame != 33333 || h.TotalFrames != 150 || h.Width != 320 || h.Height != 240 {
		t.Errorf("unexpected header: %+v", h)
	}
}

func TestReadStreamHeaderVids(t *testing.T) {
	buf := make([]byte, StreamHeaderSize)
	copy(buf[0:4], "vids")
	copy(buf[4:8], "MJPG")
	buf[20] = 1 // scale = 1
	buf[24] = 30 // rate = 30

	h, err := ReadStreamHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadStreamHeader: %v", err)
	}
	if h.Type != Vids() {
		t.Errorf("Type = %v, want vids", h.Type)
	}
	if h.Handler.String() != "MJPG" {
		t.Errorf("Handler = %v, want MJPG", h.Handler)
	}
	if h.Scale != 1 || h.Rate != 30 {
		t.Errorf("Scale/Rate = %d/%d, want 1/30", h.Scale, h.Rate)
	}
}

func TestReadBitmapInfoHeader(t *testing.T) {
	buf := make([]byte, BitmapInfoHeaderSize)
	copy(buf[16:20], "MJPG")
	bih, err := ReadBitmapInfoHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadBitmapInfoHeader: %v", err)
	}
	if bih.Compression.String() != "MJPG" {
		t.Errorf("Compression = %v, want MJPG", bih.Compression)
	}
}

func TestReadWaveFormatExPCM(t *testing.T) {
	buf := make([]byte, WaveFormatExSize)
	buf[0] = 0x01 // PCM format tag
	buf[2] = 0x02 // channels = 2
	buf[4] = 0x44
	buf[5] = 0xAC // samples_per_sec = 0xAC44 = 44100, little-endian
	wfx, err := ReadWaveFormatEx(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadWaveFormatEx: %v", err)
	}
	if wfx.FormatTag != 1 {
		t.Errorf("FormatTag = %d, want 1", wfx.FormatTag)
	}
	if wfx.Channels != 2 {
		t.Errorf("Channels = %d, want 2", wfx.Channels)
	}
}

func TestReadIndexEntry(t *testing.T) {
	buf := make([]byte, IndexEntrySize)
	copy(buf[0:4], "00dc")
	buf[4] = byte(IndexEntryKeyframe)
	buf[8] = 0x10 // offset = 16
	buf[12] = 0x20 // size = 32

	e, err := ReadIndexEntry(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadIndexEntry: %v", err)
	}
	if e.ChunkID != Chunk00dc {
		t.Errorf("ChunkID = %v, want 00dc", e.ChunkID)
	}
	if e.Flags&IndexEntryKeyframe == 0 {
		t.Error("expected keyframe flag set")
	}
	if e.Offset != 16 || e.Size != 32 {
		t.Errorf("Offset/Size = %d/%d, want 16/32", e.Offset, e.Size)
	}
}

func TestAlign(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 2, 2: 2, 1001: 1002, 1000: 1000}
	for in, want := range cases {
		if got := Align(in); got != want {
			t.Errorf("Align(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestReadFullPropagatesEOF(t *testing.T) {
	_, err := ReadIndexEntry(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
