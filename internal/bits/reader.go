// Package bits implements the big-endian bit-level reader the decoder uses
// to pull fields directly off a FLAC byte stream, plus the small set of
// integer codings (zig-zag, two's complement sign extension) that only make
// sense at that granularity.
package bits

import (
	"io"

	"github.com/icza/bitio"
	"github.com/streamflac/flac/ferror"
)

// MaxUnaryRun bounds the number of leading 0 bits ReadUnary tolerates before
// treating the stream as corrupt. 64 is far beyond anything a legal
// Rice-coded residual produces; it exists to keep a hostile or truncated
// stream from spinning forever.
const MaxUnaryRun = 64

// teeSource wraps the underlying byte source with a one-byte pushback buffer
// (so AtEOF can look ahead without consuming) and an optional capture sink
// that every consumed byte is also written to, used for CRC accumulation and
// raw-byte logging while parsing a frame.
type teeSource struct {
	r       io.Reader
	w       io.Writer
	pending byte
	hasPend bool
}

func (t *teeSource) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	if t.hasPend {
		p[0] = t.pending
		t.hasPend = false
		n = 1
		if t.w != nil {
			t.w.Write(p[:1])
		}
		if len(p) == 1 {
			return 1, nil
		}
		m, err := t.r.Read(p[1:])
		if m > 0 && t.w != nil {
			t.w.Write(p[1 : 1+m])
		}
		return n + m, err
	}
	m, err := t.r.Read(p)
	if m > 0 && t.w != nil {
		t.w.Write(p[:m])
	}
	return m, err
}

// ReadByte implements io.ByteReader, so bitio.Reader pulls bytes from the
// teeSource one at a time instead of wrapping it in a read-ahead buffer that
// would fetch (and capture) bytes before they are consumed.
func (t *teeSource) ReadByte() (byte, error) {
	var b [1]byte
	n, err := t.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

// peekByte returns the next byte without consuming it: a following Read
// (through this teeSource) re-delivers the same byte. Reports io.EOF if the
// underlying source is cleanly exhausted.
func (t *teeSource) peekByte() (byte, error) {
	if t.hasPend {
		return t.pending, nil
	}
	var b [1]byte
	n, err := t.r.Read(b[:])
	if n == 1 {
		t.pending = b[0]
		t.hasPend = true
		return b[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return 0, err
}

// Reader is the sole component of the decoder permitted to touch the
// underlying byte source. It presents it as a big-endian bit stream, tracks
// an absolute bit position for error reporting, and can optionally mirror
// every consumed byte into a capture sink (see StartCapture).
type Reader struct {
	src   *teeSource
	br    *bitio.Reader
	nbits uint64
}

// NewReader returns a bit reader over r. r is consumed lazily, one byte at
// a time; no data is read until the first call that needs bits.
func NewReader(r io.Reader) *Reader {
	src := &teeSource{r: r}
	return &Reader{src: src, br: bitio.NewReader(src)}
}

// StartCapture makes every byte this Reader consumes from now on also be
// written to w. Used to accumulate the raw bytes of a frame for its CRC.
func (r *Reader) StartCapture(w io.Writer) { r.src.w = w }

// StopCapture disables the capture sink set by StartCapture.
func (r *Reader) StopCapture() { r.src.w = nil }

// ReadBits reads and returns the next n bits (0 <= n <= 32), most
// significant bit first, as an unsigned integer.
func (r *Reader) ReadBits(n uint8) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	x, err := r.br.ReadBits(n)
	if err != nil {
		return 0, ferror.FromRead(err)
	}
	r.nbits += uint64(n)
	return x, nil
}

// ReadUnary reads and returns the count of consecutive 0 bits before the
// next 1 bit, failing with a FormatError if the run exceeds MaxUnaryRun.
func (r *Reader) ReadUnary() (uint64, error) {
	var n uint64
	for {
		b, err := r.br.ReadBits(1)
		if err != nil {
			return 0, ferror.FromRead(err)
		}
		r.nbits++
		if b == 1 {
			return n, nil
		}
		n++
		if n > MaxUnaryRun {
			return 0, ferror.NewFormat("unary run exceeds %d bits", MaxUnaryRun)
		}
	}
}

// SkipBits discards the next n bits.
func (r *Reader) SkipBits(n uint) error {
	for n > 32 {
		if _, err := r.ReadBits(32); err != nil {
			return err
		}
		n -= 32
	}
	if n > 0 {
		if _, err := r.ReadBits(uint8(n)); err != nil {
			return err
		}
	}
	return nil
}

// AlignToByte discards any bits remaining before the next byte boundary and
// returns them, so callers can verify required-zero padding bits.
func (r *Reader) AlignToByte() (pad uint64, err error) {
	rem := uint8(r.nbits % 8)
	if rem == 0 {
		return 0, nil
	}
	return r.ReadBits(8 - rem)
}

// Position reports the number of whole bytes consumed and the bit offset
// (0-7) within the current byte, for use in diagnostics.
func (r *Reader) Position() (byteOff int64, bitOff uint8) {
	return int64(r.nbits / 8), uint8(r.nbits % 8)
}

// AtEOF reports whether the reader sits on a byte boundary immediately
// before a cleanly exhausted source: no bytes remain to start a new frame.
// It never consumes a byte when it returns true.
func (r *Reader) AtEOF() bool {
	if r.nbits%8 != 0 {
		return false
	}
	_, err := r.src.peekByte()
	return err == io.EOF
}
