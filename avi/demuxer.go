// Package avi implements a streaming demuxer for the AVI 1.0 RIFF
// container: parsing the header LIST into stream info, iterating frames in
// file order, and frame-accurate seeking against a sparse index built from
// idx1. It never decodes frame payloads; codec identification is limited to
// recognizing the handful of fourccs the format commonly carries.
package avi

import (
	"fmt"
	"io"

	"github.com/brightpath/avidemux/avi/aviio"
	"github.com/brightpath/avidemux/avi/ring"
	"github.com/brightpath/avidemux/internal/config"
)

// VideoCodec identifies the video compression named by a stream's
// BITMAPINFOHEADER.biCompression fourcc.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecMJPEG
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecMJPEG:
		return "MJPEG"
	default:
		return "Unknown"
	}
}

func fourccToVideoCodec(f aviio.FourCC) VideoCodec {
	switch f.String() {
	case "MJPG", "mjpg":
		return VideoCodecMJPEG
	default:
		return VideoCodecUnknown
	}
}

// AudioCodec identifies the audio format named by a stream's
// WAVEFORMATEX.wFormatTag.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecPCM
	AudioCodecMP3
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecPCM:
		return "PCM"
	case AudioCodecMP3:
		return "MP3"
	default:
		return "Unknown"
	}
}

func formatTagToAudioCodec(tag uint16) AudioCodec {
	switch tag {
	case 0x0001:
		return AudioCodecPCM
	case 0x0055:
		return AudioCodecMP3
	default:
		return AudioCodecUnknown
	}
}

// VideoInfo describes the file's video stream, zero-valued if the file
// carries no vids strl.
type VideoInfo struct {
	Codec         VideoCodec
	Width         uint32
	Height        uint32
	TotalFrames   uint32
	FrameRateUsec uint32 // microseconds per frame, from the avih record
	MaxFrameSize  uint32
}

// AudioInfo describes the file's audio stream, zero-valued if the file
// carries no auds strl.
type AudioInfo struct {
	Codec         AudioCodec
	Channels      uint16
	SamplingRate  uint32
	BitsPerSample uint16
	MaxFrameSize  uint32
}

// Info is the result of parsing a file's header LIST and (if present) its
// idx1 index.
type Info struct {
	Video VideoInfo
	Audio AudioInfo

	moviLocation int64 // byte offset of the first chunk inside LIST movi
	idx1Location int64
	idx1Size     uint32

	index seekIndex
}

// HasIndex reports whether a usable idx1-derived seek index was built.
func (info *Info) HasIndex() bool {
	return info != nil && info.index.frameOffsets != nil
}

type seekIndex struct {
	skipInterval uint32
	entryCount   uint32
	frameOffsets []uint32 // offsets relative to the movi fourcc, sparse by skipInterval
}

// FrameKind distinguishes a demuxed frame's stream.
type FrameKind int

const (
	FrameVideo FrameKind = iota
	FrameAudio
)

// FrameDesc describes one frame returned by ReadFrame. Size is the number
// of bytes written into the caller-supplied buffer for that stream.
type FrameDesc struct {
	Kind       FrameKind
	Size       uint32
	FrameIndex uint32 // running video frame count; always 0 for audio
}

// Demuxer reads an AVI container from a buffered, seekable byte stream.
type Demuxer struct {
	r               *ring.Reader
	info            *Info
	videoFrameCount uint32
	maxIndexEntries uint32
}

// New wraps an already-open ring.Reader. Most callers want Open. The
// resulting Demuxer caps its seek index at defaultMaxIndexEntries; use
// SetMaxIndexEntries before ParseInfo to override.
func New(r *ring.Reader) *Demuxer {
	return &Demuxer{r: r}
}

// SetMaxIndexEntries overrides the seek index's entry cap for the next
// ParseInfo call. Zero restores the default.
func (d *Demuxer) SetMaxIndexEntries(n uint32) { d.maxIndexEntries = n }

// Open opens path with the given configuration and returns a Demuxer ready
// for ParseInfo.
func Open(path string, cfg config.Config) (*Demuxer, error) {
	r, err := ring.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	d := New(r)
	d.SetMaxIndexEntries(uint32(cfg.MaxIndexEntries))
	return d, nil
}

// Close releases the underlying reader.
func (d *Demuxer) Close() error {
	return d.r.Close()
}

// Info returns the result of the most recent ParseInfo call, or nil if it
// hasn't been called yet.
func (d *Demuxer) Info() *Info { return d.info }

// ParseInfo walks the RIFF container from the start: the top-level
// structure, the hdrl LIST's avih/strl/strh/strf chunks, and (if present)
// idx1. The header walk runs in passthrough mode, since it's dominated by
// many small seeks; preload is switched on afterward, positioned at the
// first movi chunk, ready for ReadFrame.
func (d *Demuxer) ParseInfo() (*Info, error) {
	d.r.SetPreloadEnabled(false)

	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	riffHeader, err := aviio.ReadChunkHeader(d.r)
	if err != nil {
		return nil, fmt.Errorf("avi: reading RIFF header: %w", ErrTruncated)
	}
	if riffHeader.FourCC != aviio.RIFF {
		return nil, fmt.Errorf("avi: missing RIFF signature: %w", ErrInvalidFormat)
	}

	var aviSig [4]byte
	if _, err := io.ReadFull(d.r, aviSig[:]); err != nil {
		return nil, fmt.Errorf("avi: reading AVI signature: %w", ErrTruncated)
	}
	if aviio.FourCC(leU32(aviSig[:])) != aviio.AVI_ {
		return nil, fmt.Errorf("avi: missing AVI signature: %w", ErrInvalidFormat)
	}

	info := &Info{}
	info.index.skipInterval = 1

	if err := d.parseTopLevel(info); err != nil {
		return nil, err
	}
	if info.moviLocation == 0 {
		return nil, fmt.Errorf("avi: no movi chunk found: %w", ErrInvalidFormat)
	}

	d.info = info
	d.buildVideoIndex(info)

	if _, err := d.r.Seek(info.moviLocation, io.SeekStart); err != nil {
		return nil, err
	}

	logf("avi: parsed %dx%d %s video (%d frames), %s audio (%d ch, %d Hz)",
		info.Video.Width, info.Video.Height, info.Video.Codec, info.Video.TotalFrames,
		info.Audio.Codec, info.Audio.Channels, info.Audio.SamplingRate)

	d.r.SetPreloadEnabled(true)
	return info, nil
}

// parseTopLevel walks the chunks directly under the RIFF container: LIST
// hdrl (parsed), LIST movi (location recorded, contents skipped), idx1
// (location recorded, contents skipped), and anything else (skipped, e.g.
// a JUNK chunk inserted for alignment).
func (d *Demuxer) parseTopLevel(info *Info) error {
	for {
		chunkPos, err := d.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		chunk, err := aviio.ReadChunkHeader(d.r)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return nil // short header at top level ends the walk, same as the original reader
		}
		debugf("avi: top-level chunk at %d: %s size=%d", chunkPos, chunk.FourCC, chunk.Size)

		switch chunk.FourCC {
		case aviio.LIST:
			listEnd := chunkPos + 8 + int64(chunk.Size)
			var listType [4]byte
			if _, err := io.ReadFull(d.r, listType[:]); err != nil {
				return fmt.Errorf("avi: reading LIST type: %w", ErrTruncated)
			}
			lt := aviio.FourCC(leU32(listType[:]))

			if lt == aviio.Movi() {
				pos, err := d.r.Seek(0, io.SeekCurrent)
				if err != nil {
					return err
				}
				info.moviLocation = pos
				debugf("avi: found movi at %d", pos)
				if _, err := d.r.Seek(listEnd, io.SeekStart); err != nil {
					return err
				}
				continue
			}

			if lt == aviio.Hdrl() || lt == aviio.Strl() {
				if err := d.parseHeaderList(info, listEnd); err != nil {
					return err
				}
			}
			if _, err := d.r.Seek(listEnd, io.SeekStart); err != nil {
				return err
			}

		case aviio.Idx1():
			pos, err := d.r.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			info.idx1Location = pos
			info.idx1Size = chunk.Size
			debugf("avi: found idx1 at %d, size=%d", pos, chunk.Size)
			if _, err := d.r.Seek(chunk.Padded()-aviio.ChunkHeaderSize, io.SeekCurrent); err != nil {
				return err
			}

		default:
			if _, err := d.r.Seek(chunk.Padded()-aviio.ChunkHeaderSize, io.SeekCurrent); err != nil {
				return err
			}
		}
	}
}

// parseHeaderList parses the sub-chunks of a hdrl or strl LIST up to
// listEnd: avih directly, and nested LIST strl (recursing into its strh +
// strf pair) for stream descriptions.
func (d *Demuxer) parseHeaderList(info *Info, listEnd int64) error {
	for {
		pos, err := d.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= listEnd {
			return nil
		}

		sub, err := aviio.ReadChunkHeader(d.r)
		if err != nil {
			return nil
		}

		switch {
		case sub.FourCC == aviio.Avih():
			avih, err := aviio.ReadMainAVIHeader(d.r)
			if err != nil {
				return fmt.Errorf("avi: reading avih: %w", ErrTruncated)
			}
			info.Video.Width = avih.Width
			info.Video.Height = avih.Height
			info.Video.TotalFrames = avih.TotalFrames
			info.Video.FrameRateUsec = avih.MicroSecPerFrame
			if err := d.skipPad(aviio.MainAVIHeaderSize, sub.Size); err != nil {
				return err
			}

		case sub.FourCC == aviio.LIST:
			nestedEnd := pos + 8 + int64(sub.Size)
			var nestedType [4]byte
			if _, err := io.ReadFull(d.r, nestedType[:]); err != nil {
				return fmt.Errorf("avi: reading nested LIST type: %w", ErrTruncated)
			}
			if aviio.FourCC(leU32(nestedType[:])) == aviio.Strl() {
				if err := d.parseStrl(info, nestedEnd); err != nil {
					return err
				}
			}
			if _, err := d.r.Seek(nestedEnd, io.SeekStart); err != nil {
				return err
			}

		default:
			if _, err := d.r.Seek(sub.Padded()-aviio.ChunkHeaderSize, io.SeekCurrent); err != nil {
				return err
			}
		}
	}
}

// parseStrl parses one stream's strl contents: the strh/strf pair that
// together describe a video or audio stream. Unknown chunks are skipped.
func (d *Demuxer) parseStrl(info *Info, strlEnd int64) error {
	for {
		pos, err := d.r.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= strlEnd {
			return nil
		}

		strlChunk, err := aviio.ReadChunkHeader(d.r)
		if err != nil {
			return nil
		}

		if strlChunk.FourCC != aviio.Strh() {
			if _, err := d.r.Seek(strlChunk.Padded()-aviio.ChunkHeaderSize, io.SeekCurrent); err != nil {
				return err
			}
			continue
		}

		strh, err := aviio.ReadStreamHeader(d.r)
		if err != nil {
			return fmt.Errorf("avi: reading strh: %w", ErrTruncated)
		}

		strfChunk, err := aviio.ReadChunkHeader(d.r)
		if err != nil {
			return fmt.Errorf("avi: reading strf header: %w", ErrTruncated)
		}
		if strfChunk.FourCC != aviio.Strf() {
			return fmt.Errorf("avi: strh not followed by strf: %w", ErrInvalidFormat)
		}

		switch strh.Type {
		case aviio.Vids():
			bih, err := aviio.ReadBitmapInfoHeader(d.r)
			if err != nil {
				return fmt.Errorf("avi: reading strf (video): %w", ErrTruncated)
			}
			info.Video.Codec = fourccToVideoCodec(bih.Compression)
			info.Video.MaxFrameSize = strh.SuggestedBufferSize
			if err := d.skipPad(aviio.BitmapInfoHeaderSize, strfChunk.Size); err != nil {
				return err
			}
		case aviio.Auds():
			wfx, err := aviio.ReadWaveFormatEx(d.r)
			if err != nil {
				return fmt.Errorf("avi: reading strf (audio): %w", ErrTruncated)
			}
			info.Audio.Codec = formatTagToAudioCodec(wfx.FormatTag)
			info.Audio.Channels = wfx.Channels
			info.Audio.SamplingRate = wfx.SamplesPerSec
			info.Audio.BitsPerSample = wfx.BitsPerSample
			info.Audio.MaxFrameSize = strh.SuggestedBufferSize
			if err := d.skipPad(aviio.WaveFormatExSize, strfChunk.Size); err != nil {
				return err
			}
		default:
			if _, err := d.r.Seek(int64(strfChunk.Size), io.SeekCurrent); err != nil {
				return err
			}
			if strfChunk.Size&1 != 0 {
				if _, err := d.r.Seek(1, io.SeekCurrent); err != nil {
					return err
				}
			}
		}

		if strlChunk.Size&1 != 0 {
			if _, err := d.r.Seek(1, io.SeekCurrent); err != nil {
				return err
			}
		}
	}
}

// skipPad advances past any strf bytes beyond a fixed-size record already
// consumed (codec-specific extra data) plus WORD padding.
func (d *Demuxer) skipPad(recordSize int, chunkSize uint32) error {
	if int64(chunkSize) > int64(recordSize) {
		if _, err := d.r.Seek(int64(chunkSize)-int64(recordSize), io.SeekCurrent); err != nil {
			return err
		}
	}
	if chunkSize&1 != 0 {
		if _, err := d.r.Seek(1, io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

// buildVideoIndex builds a sparse frame index from idx1, sized so that
// entryCount never exceeds cfg.MaxIndexEntries: it widens skipInterval
// until the resulting entry count fits. Failure to build an index (no
// idx1, zero total frames, a short idx1 read) is logged and leaves
// SeekToFrame reporting ErrIndexUnavailable; it is not a parse failure.
func (d *Demuxer) buildVideoIndex(info *Info) {
	if info.idx1Location == 0 || info.idx1Size == 0 {
		logf("avi: no idx1 chunk, frame-accurate seeking disabled")
		return
	}
	totalFrames := info.Video.TotalFrames
	if totalFrames == 0 {
		logf("avi: avih reports 0 total frames, skipping index build")
		return
	}

	maxEntries := uint32(defaultMaxIndexEntries)
	if d.maxIndexEntries > 0 {
		maxEntries = d.maxIndexEntries
	}

	skipInterval := uint32(1)
	entryCount := totalFrames
	for entryCount > maxEntries {
		skipInterval++
		entryCount = (totalFrames + skipInterval - 1) / skipInterval
	}

	offsets := make([]uint32, entryCount)

	if _, err := d.r.Seek(info.idx1Location, io.SeekStart); err != nil {
		logf("avi: seeking to idx1: %v", err)
		return
	}

	entriesInIdx1 := info.idx1Size / aviio.IndexEntrySize
	videoFrameIndex := uint32(0)
	filled := uint32(0)

	for i := uint32(0); i < entriesInIdx1; i++ {
		entry, err := aviio.ReadIndexEntry(d.r)
		if err != nil {
			logf("avi: reading idx1 entry %d: %v", i, err)
			return
		}
		if entry.ChunkID != aviio.Chunk00db && entry.ChunkID != aviio.Chunk00dc {
			continue
		}
		if videoFrameIndex%skipInterval == 0 && filled < entryCount {
			offsets[filled] = entry.Offset
			filled++
		}
		videoFrameIndex++
	}

	info.index.skipInterval = skipInterval
	info.index.entryCount = entryCount
	info.index.frameOffsets = offsets
	logf("avi: index built: %d total frames -> %d entries (skip=%d), %d filled", totalFrames, entryCount, skipInterval, filled)
}

// defaultMaxIndexEntries mirrors config.Default().MaxIndexEntries; used
// only if a Demuxer was constructed via New without SetMaxIndexEntries.
const defaultMaxIndexEntries = 36000

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// ReadFrame reads the next video or audio frame into the matching
// caller-supplied buffer, skipping any other chunk kinds it encounters
// along the way (e.g. a second idx1 copy some encoders duplicate into
// movi, which this demuxer ignores). A frame too large for its buffer is
// skipped (not buffered), logged, and not counted toward FrameIndex;
// ReadFrame then goes on to the next chunk within the same call. Returns
// io.EOF once the stream is exhausted.
func (d *Demuxer) ReadFrame(videoBuf, audioBuf []byte) (FrameDesc, error) {
	if d.info == nil {
		return FrameDesc{}, fmt.Errorf("avi: ReadFrame before ParseInfo: %w", ErrProtocol)
	}

	for {
		chunk, err := aviio.ReadChunkHeader(d.r)
		if err != nil {
			return FrameDesc{}, io.EOF
		}

		switch chunk.FourCC {
		case aviio.Chunk00db, aviio.Chunk00dc:
			if videoBuf == nil {
				return FrameDesc{}, fmt.Errorf("avi: video frame present but no video buffer given: %w", ErrProtocol)
			}
			if chunk.Size > uint32(len(videoBuf)) {
				logf("avi: %v: skipping video frame, %d bytes > %d byte buffer", ErrBufferTooSmall, chunk.Size, len(videoBuf))
				if err := d.skipChunkBody(chunk); err != nil {
					return FrameDesc{}, err
				}
				continue
			}
			if _, err := io.ReadFull(d.r, videoBuf[:chunk.Size]); err != nil {
				return FrameDesc{}, fmt.Errorf("avi: reading video frame: %w", ErrTruncated)
			}
			if chunk.Size&1 != 0 {
				d.r.Seek(1, io.SeekCurrent)
			}
			desc := FrameDesc{Kind: FrameVideo, Size: chunk.Size, FrameIndex: d.videoFrameCount}
			d.videoFrameCount++
			return desc, nil

		case aviio.Chunk01wb:
			if audioBuf == nil {
				return FrameDesc{}, fmt.Errorf("avi: audio frame present but no audio buffer given: %w", ErrProtocol)
			}
			if chunk.Size > uint32(len(audioBuf)) {
				logf("avi: %v: skipping audio frame, %d bytes > %d byte buffer", ErrBufferTooSmall, chunk.Size, len(audioBuf))
				if err := d.skipChunkBody(chunk); err != nil {
					return FrameDesc{}, err
				}
				continue
			}
			if _, err := io.ReadFull(d.r, audioBuf[:chunk.Size]); err != nil {
				return FrameDesc{}, fmt.Errorf("avi: reading audio frame: %w", ErrTruncated)
			}
			if chunk.Size&1 != 0 {
				d.r.Seek(1, io.SeekCurrent)
			}
			return FrameDesc{Kind: FrameAudio, Size: chunk.Size}, nil

		default:
			if err := d.skipChunkBody(chunk); err != nil {
				return FrameDesc{}, err
			}
		}
	}
}

func (d *Demuxer) skipChunkBody(chunk aviio.ChunkHeader) error {
	_, err := d.r.Seek(chunk.Padded()-aviio.ChunkHeaderSize, io.SeekCurrent)
	return err
}

// SeekToStart repositions the cursor at the first chunk inside LIST movi
// and resets the video frame counter. Does not touch the preload state.
func (d *Demuxer) SeekToStart() error {
	if d.info == nil {
		return fmt.Errorf("avi: SeekToStart before ParseInfo: %w", ErrProtocol)
	}
	if _, err := d.r.Seek(d.info.moviLocation, io.SeekStart); err != nil {
		return err
	}
	d.videoFrameCount = 0
	return nil
}

// SeekToFrame positions the cursor at the indexed entry nearest to, and
// not after, frameNumber, and returns the video frame number actually
// landed on (the index is sparse, so this silently rounds down to the
// nearest indexed frame rather than failing). Requires idx1 to have been
// present and non-empty at ParseInfo time. Does not touch the preload
// state — seeking during active playback never toggles the ring between
// passthrough and cached.
func (d *Demuxer) SeekToFrame(frameNumber uint32) (uint32, error) {
	if d.info == nil {
		return 0, fmt.Errorf("avi: SeekToFrame before ParseInfo: %w", ErrProtocol)
	}
	idx := &d.info.index
	if idx.frameOffsets == nil {
		return 0, ErrIndexUnavailable
	}

	indexEntry := frameNumber / idx.skipInterval
	if indexEntry >= idx.entryCount {
		return 0, ErrIndexOutOfRange
	}

	offset := idx.frameOffsets[indexEntry]
	targetPos := d.info.moviLocation - 4 + int64(offset)
	if _, err := d.r.Seek(targetPos, io.SeekStart); err != nil {
		return 0, err
	}

	landed := indexEntry * idx.skipInterval
	d.videoFrameCount = landed
	debugf("avi: seeked to frame %d (index entry %d, offset %d, pos %d)", frameNumber, indexEntry, offset, targetPos)
	return landed, nil
}
