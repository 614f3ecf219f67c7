// Package flac decodes FLAC (Free Lossless Audio Codec) bitstreams into
// exact-integer PCM blocks plus stream metadata.
//
// A Stream is opened with Open or NewStream (or their Ext variants for
// non-default Options), after which callers pull audio either a block at
// a time via Blocks, or one interleaved sample at a time via Samples.
package flac

import (
	"io"
	"os"

	"github.com/mewkiz/pkg/errutil"
	"github.com/streamflac/flac/ferror"
	"github.com/streamflac/flac/frame"
	"github.com/streamflac/flac/internal/bits"
	"github.com/streamflac/flac/internal/bufseekio"
	"github.com/streamflac/flac/meta"
)

// Signature is the four-byte magic that opens every FLAC stream.
const Signature = "fLaC"

// Re-exported error kinds, per the closed set every pull operation can
// surface. They are defined in the leaf package ferror so that meta,
// frame, and this package can all construct them without an import cycle;
// callers only ever need to see them here.
type (
	UnexpectedEof = ferror.UnexpectedEof
	FormatError   = ferror.FormatError
	Unsupported   = ferror.Unsupported
	Io            = ferror.Io
)

// defaultMaxBufferSamples caps the StreamInfo maximum block size (in
// inter-channel samples, i.e. per channel) the decoder will commit to
// without the caller raising it explicitly.
const defaultMaxBufferSamples = 65535

// Options configures how a Stream is opened.
type Options struct {
	// ReadMetadata parses every metadata block when true (the default via
	// NewStream/Open). When false, only the mandatory StreamInfo block is
	// kept in Metadata — the fast path callers use to reach audio as
	// quickly as possible. Later VorbisComment (and StreamInfo) bodies are
	// still parsed, and their parse errors still fail the open, before being
	// dropped; every other block is skipped by length.
	ReadMetadata bool
	// VorbisCommentOnly parses only StreamInfo and VorbisComment bodies,
	// skipping every other known block type without allocating for it.
	VorbisCommentOnly bool
	// Resync makes BlockReader.Next re-anchor one bit forward and retry on
	// a sync-code mismatch instead of failing immediately, letting a
	// caller scan past leading junk (an ID3 tag, stream corruption).
	Resync bool
	// MaxBufferSamples caps the per-channel sample buffer the decoder will
	// allocate. Zero means defaultMaxBufferSamples.
	MaxBufferSamples int
}

func (o Options) maxBufferSamples() int {
	if o.MaxBufferSamples > 0 {
		return o.MaxBufferSamples
	}
	return defaultMaxBufferSamples
}

// Stream is an open FLAC bitstream: its parsed metadata plus a cursor
// ready to decode frames.
type Stream struct {
	// Info is the mandatory StreamInfo block, always present.
	Info *meta.StreamInfo
	// Metadata holds every parsed block in on-disk order, Info included.
	Metadata []*meta.Block

	br   *bits.Reader
	opts Options
	src  io.Reader // underlying byte source, reused by SeekToSample
	seek io.Seeker // non-nil when src also supports Seek

	// audioStart is the byte offset of the first frame, used to resolve
	// SeekTable offsets that are stored relative to it. haveAudioStart
	// guards it since offset 0 is not itself a valid sentinel.
	audioStart    int64
	haveAudioStart bool
}

// Open opens the named file and parses its FLAC metadata. Reads are
// buffered through internal/bufseekio so frame-by-frame decoding and
// SeekToSample don't each pay a syscall per small read.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errutil.Err(ferror.NewIo(err))
	}
	s, err := NewStream(bufseekio.NewReadSeeker(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenExt opens the named file with the given Options, buffered the same
// way as Open.
func OpenExt(path string, opts Options) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errutil.Err(ferror.NewIo(err))
	}
	s, err := NewStreamExt(bufseekio.NewReadSeeker(f), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// NewStream parses the magic and full metadata chain from r, using
// default Options (ReadMetadata true, everything else off).
func NewStream(r io.Reader) (*Stream, error) {
	return NewStreamExt(r, Options{ReadMetadata: true})
}

// NewStreamExt parses the magic and metadata chain from r according to
// opts. If r also implements io.Seeker, SeekToSample becomes available.
func NewStreamExt(r io.Reader, opts Options) (*Stream, error) {
	var sig [4]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, ferror.FromRead(err)
	}
	if string(sig[:]) != Signature {
		return nil, ferror.NewFormat("invalid stream magic %q (not a FLAC stream, or an ID3-prefixed file)", sig[:])
	}

	s := &Stream{opts: opts, src: r}
	if sk, ok := r.(io.Seeker); ok {
		s.seek = sk
	}

	metaOpts := meta.Options{VorbisCommentOnly: opts.VorbisCommentOnly}
	first := true
	for {
		if !opts.ReadMetadata && !first {
			h, err := peekSkipHeader(r)
			if err != nil {
				return nil, err
			}
			if h.IsLast {
				break
			}
			continue
		}
		block, err := meta.NewBlock(r, metaOpts)
		if err != nil {
			return nil, err
		}
		if first {
			si, ok := block.Body.(*meta.StreamInfo)
			if !ok {
				return nil, ferror.NewFormat("first metadata block must be StreamInfo, got %v", block.Header.Type)
			}
			s.Info = si
			first = false
		}
		s.Metadata = append(s.Metadata, block)
		if block.Header.IsLast {
			break
		}
	}
	if s.Info == nil {
		return nil, ferror.NewFormat("stream has no StreamInfo block")
	}
	if int(s.Info.BlockSizeMax) > opts.maxBufferSamples() {
		return nil, ferror.NewUnsupported("stream block size %d exceeds configured buffer cap %d", s.Info.BlockSizeMax, opts.maxBufferSamples())
	}

	if s.seek != nil {
		if off, err := s.seek.Seek(0, io.SeekCurrent); err == nil {
			s.audioStart = off
			s.haveAudioStart = true
		}
	}
	s.br = bits.NewReader(r)
	return s, nil
}

// peekSkipHeader reads and discards one metadata block, used by the
// ReadMetadata=false fast path, and returns its header for the last-block
// flag. It reads with VorbisCommentOnly, so StreamInfo and VorbisComment
// bodies are parsed before being discarded; other bodies are skipped by
// length without being dispatched.
func peekSkipHeader(r io.Reader) (meta.Header, error) {
	block, err := meta.NewBlock(r, meta.Options{VorbisCommentOnly: true})
	if err != nil {
		return meta.Header{}, err
	}
	return block.Header, nil
}

// Tags returns every VorbisComment entry across the stream's metadata, in
// (name, value) pairs, with the exact count known up front.
func (s *Stream) Tags() [][2]string {
	var tags [][2]string
	for _, b := range s.Metadata {
		if vc, ok := b.Body.(*meta.VorbisComment); ok {
			tags = append(tags, vc.Tags...)
		}
	}
	return tags
}

// Block is the decoded output of one frame: a channel-major sample buffer
// lent from the Stream's recycled decode buffer. The slice is valid only
// until the next call to BlockReader.Next; callers needing to retain
// samples across pulls must copy them out.
type Block struct {
	// FirstSample is the stream-relative sample index of this block's
	// first inter-channel sample.
	FirstSample uint64
	// BlockSize is the number of inter-channel samples in this block.
	BlockSize uint32
	// Channels is the channel count.
	Channels uint8
	// BitsPerSample is the bit depth samples are sign-extended to.
	BitsPerSample uint8
	// Samples is channel-major: Samples[ch] holds BlockSize samples.
	Samples [][]int32
}

// BlockReader pulls one frame-decoded Block at a time from a Stream,
// reusing its decode buffer across calls.
type BlockReader struct {
	s   *Stream
	buf [][]int32
	// haveFrame is the next expected sample index, carried forward from
	// each decoded frame's header so fixed-blocksize streams (whose
	// header only carries a frame number) still report FirstSample.
	haveFrame uint64
}

// Blocks returns a BlockReader over the stream's audio frames.
func (s *Stream) Blocks() *BlockReader {
	n := int(s.Info.NChannels)
	buf := make([][]int32, n)
	for i := range buf {
		buf[i] = make([]int32, s.Info.BlockSizeMax)
	}
	return &BlockReader{s: s, buf: buf}
}

// Next decodes and returns the next Block, io.EOF at a clean end of
// stream, or a typed error. The returned Block aliases the BlockReader's
// internal buffer and is invalidated by the next call to Next.
func (r *BlockReader) Next() (*Block, error) {
	if r.s.br.AtEOF() {
		return nil, io.EOF
	}

	for i := range r.buf {
		for j := range r.buf[i] {
			r.buf[i][j] = 0
		}
	}

	hdr, err := r.decodeOne()
	if err != nil {
		return nil, err
	}

	first := r.haveFrame
	if hdr.HasVariableBlockSize {
		first = hdr.Num
	}
	r.haveFrame = first + uint64(hdr.BlockSize)

	n := int(hdr.Channels.NChannels)
	out := make([][]int32, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[i][:hdr.BlockSize]
	}
	return &Block{
		FirstSample:   first,
		BlockSize:     uint32(hdr.BlockSize),
		Channels:      uint8(n),
		BitsPerSample: hdr.BitsPerSample,
		Samples:       out,
	}, nil
}

// decodeOne decodes a single frame, applying resynchronization retries
// when the Stream was opened with Options.Resync.
func (r *BlockReader) decodeOne() (*frame.Header, error) {
	hdr, err := frame.Decode(r.s.br, r.s.Info, r.buf)
	if err == nil {
		return hdr, nil
	}
	if !r.s.opts.Resync {
		return nil, err
	}
	firstErr := err
	for {
		if r.s.br.AtEOF() {
			return nil, firstErr
		}
		if err := r.s.br.SkipBits(1); err != nil {
			return nil, err
		}
		hdr, err = frame.Decode(r.s.br, r.s.Info, r.buf)
		if err == nil {
			return hdr, nil
		}
		if _, ok := err.(*ferror.UnexpectedEof); ok {
			return nil, err
		}
	}
}

// SampleIterator pulls one interleaved sample at a time, recycling the
// underlying block buffer whenever it is exhausted.
type SampleIterator struct {
	br      *BlockReader
	block   *Block
	channel int
	index   int
}

// Samples returns a SampleIterator over the stream's audio.
func (s *Stream) Samples() *SampleIterator {
	return &SampleIterator{br: s.Blocks()}
}

// Next returns the next interleaved sample, io.EOF at clean end of
// stream, or a typed error.
func (it *SampleIterator) Next() (int32, error) {
	for it.block == nil || it.index >= int(it.block.BlockSize) {
		b, err := it.br.Next()
		if err != nil {
			return 0, err
		}
		it.block = b
		it.index = 0
	}
	sample := it.block.Samples[it.channel][it.index]
	it.channel++
	if it.channel >= len(it.block.Samples) {
		it.channel = 0
		it.index++
	}
	return sample, nil
}

// SeekToSample repositions the stream so the next Blocks/Samples pull
// starts at or before target, using the parsed seek table. Returns
// Unsupported if the stream has no seek table or the underlying byte
// source does not implement io.Seeker.
func (s *Stream) SeekToSample(target uint64) error {
	if s.seek == nil {
		return ferror.NewUnsupported("byte source does not support seeking")
	}
	var table *meta.SeekTable
	for _, b := range s.Metadata {
		if st, ok := b.Body.(*meta.SeekTable); ok {
			table = st
			break
		}
	}
	if table == nil {
		return ferror.NewUnsupported("stream has no seek table")
	}

	var best *meta.SeekPoint
	for i := range table.Points {
		p := &table.Points[i]
		if p.SampleNum == meta.PlaceholderPoint || p.SampleNum > target {
			continue
		}
		if best == nil || p.SampleNum > best.SampleNum {
			best = p
		}
	}
	if best == nil {
		return ferror.NewFormat("no seek point at or before sample %d", target)
	}

	if !s.haveAudioStart {
		off, err := s.seek.Seek(0, io.SeekCurrent)
		if err != nil {
			return ferror.NewIo(err)
		}
		s.audioStart = off
		s.haveAudioStart = true
	}
	if _, err := s.seek.Seek(s.audioStart+int64(best.Offset), io.SeekStart); err != nil {
		return ferror.NewIo(err)
	}
	s.br = bits.NewReader(s.src)
	return nil
}
