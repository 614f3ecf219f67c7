package frame

import (
	"github.com/streamflac/flac/internal/bits"
	"github.com/streamflac/flac/ferror"
)

// readUTF8Uint64 reads a FLAC "UTF-8"-style coded integer: a 1-7 byte
// encoding that reuses the UTF-8 byte-length prefix scheme to pack up to a
// 36-bit frame or sample number into a self-describing length. Unlike text
// UTF-8, it extends to a 7-byte form (lead byte 0xFE) to reach 36 bits.
//
// ref: https://www.xiph.org/flac/format.html#frame_header
func readUTF8Uint64(br *bits.Reader) (uint64, error) {
	lead, err := br.ReadBits(8)
	if err != nil {
		return 0, err
	}

	var n int
	var x uint64
	switch {
	case lead&0x80 == 0x00:
		return lead, nil
	case lead&0xE0 == 0xC0:
		n, x = 1, lead&0x1F
	case lead&0xF0 == 0xE0:
		n, x = 2, lead&0x0F
	case lead&0xF8 == 0xF0:
		n, x = 3, lead&0x07
	case lead&0xFC == 0xF8:
		n, x = 4, lead&0x03
	case lead&0xFE == 0xFC:
		n, x = 5, lead&0x01
	case lead == 0xFE:
		n, x = 6, 0
	default:
		return 0, ferror.NewFormat("invalid UTF-8 coded number lead byte %#x", lead)
	}

	for i := 0; i < n; i++ {
		b, err := br.ReadBits(8)
		if err != nil {
			return 0, err
		}
		if b&0xC0 != 0x80 {
			return 0, ferror.NewFormat("invalid UTF-8 coded number continuation byte %#x", b)
		}
		x = x<<6 | (b & 0x3F)
	}

	// Reject non-minimal encodings: a value that would have fit in fewer
	// continuation bytes than were used.
	minForN := [...]uint64{0, 0x80, 0x800, 0x10000, 0x200000, 0x4000000, 0x80000000}
	if n < len(minForN) && x < minForN[n] {
		return 0, ferror.NewFormat("non-minimal UTF-8 coded number encoding")
	}
	return x, nil
}
