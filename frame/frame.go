// Package frame decodes FLAC audio frames: the frame header, one subframe
// per channel, and the frame footer, including the CRC checks that guard
// both.
package frame

import (
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/streamflac/flac/ferror"
	"github.com/streamflac/flac/internal/bits"
	"github.com/streamflac/flac/meta"
)

// Decode reads one complete frame from br: header, one subframe per
// channel, zero-padding to the next byte boundary, and the footer CRC-16.
// dst holds one destination slice per channel, each already sized to the
// block size the caller expects (typically si.BlockSizeMax); callers
// reuse the same backing slices across frames rather than allocating
// fresh ones per call.
//
// On success dst holds fully reconstructed (post-decorrelation) samples
// and the returned Header describes the frame actually read, whose
// BlockSize may be smaller than len(dst[0]) for a stream's final, partial
// frame.
func Decode(br *bits.Reader, si *meta.StreamInfo, dst [][]int32) (*Header, error) {
	// h16 accumulates every byte of the frame, header included (DecodeHeader
	// mirrors its own capture into h16 via frameSink), so the footer CRC-16
	// covers the full frame without re-reading anything.
	h16 := crc16.NewIBM()
	hdr, err := DecodeHeader(br, si, h16)
	if err != nil {
		return nil, err
	}
	br.StartCapture(h16)
	defer br.StopCapture()

	n := int(hdr.Channels.NChannels)
	if len(dst) < n {
		return nil, ferror.NewFormat("destination has %d channels, frame needs %d", len(dst), n)
	}
	bs := int(hdr.BlockSize)
	for i := 0; i < n; i++ {
		if len(dst[i]) < bs {
			return nil, ferror.NewFormat("destination channel %d too small for block size %d", i, bs)
		}
		bps := hdr.Channels.subframeBitsPerSample(hdr.BitsPerSample, i)
		if err := decodeSubframe(br, bps, dst[i][:bs]); err != nil {
			return nil, err
		}
	}

	pad, err := br.AlignToByte()
	if err != nil {
		return nil, err
	}
	if pad != 0 {
		return nil, ferror.NewFormat("frame padding bits must be 0")
	}

	if hdr.Channels.Layout != Independent {
		hdr.Channels.reconstruct([][]int32{dst[0][:bs], dst[1][:bs]})
	}

	// Snapshot before consuming the footer's own bytes: they are not part
	// of the checksum they carry.
	got := h16.Sum16()
	br.StopCapture()

	want, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	if uint16(want) != got {
		return nil, ferror.NewFormat("frame footer CRC-16 mismatch: stored %#x, computed %#x", want, got)
	}

	return hdr, nil
}
