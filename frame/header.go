package frame

import (
	"io"

	"github.com/mewkiz/pkg/hashutil/crc8"
	"github.com/streamflac/flac/ferror"
	"github.com/streamflac/flac/internal/bits"
	"github.com/streamflac/flac/meta"
)

// SyncCode is the 14-bit pattern that opens every frame header.
const SyncCode = 0x3FFE

// Header describes the audio frame that follows it: block size, sample
// rate, channel layout and bit depth (falling back to the stream-wide
// values in StreamInfo when the header encodes them as "see STREAMINFO"),
// and the frame or sample number used to detect dropped frames.
type Header struct {
	// BlockSize is the number of samples per subframe in this frame.
	BlockSize uint16
	// SampleRate in Hz.
	SampleRate uint32
	// Channels describes how subframes map to output channels.
	Channels ChannelAssignment
	// BitsPerSample is the bit depth shared by every subframe of this
	// frame before any side-channel widening is applied.
	BitsPerSample uint8
	// HasVariableBlockSize is true when Num identifies this frame by its
	// first sample number rather than a sequential frame number.
	HasVariableBlockSize bool
	// Num is either a sample number (HasVariableBlockSize) or a frame
	// number.
	Num uint64
}

var blockSizeCodeTable = [16]uint16{
	0:  0, // reserved
	1:  192,
	2:  576,
	3:  1152,
	4:  2304,
	5:  4608,
	6:  0, // read 8-bit (blocksize-1) from the end of the header
	7:  0, // read 16-bit (blocksize-1) from the end of the header
	8:  256,
	9:  512,
	10: 1024,
	11: 2048,
	12: 4096,
	13: 8192,
	14: 16384,
	15: 32768,
}

var sampleRateCodeTable = [12]uint32{
	1:  88200,
	2:  176400,
	3:  192000,
	4:  8000,
	5:  16000,
	6:  22050,
	7:  24000,
	8:  32000,
	9:  44100,
	10: 48000,
	11: 96000,
}

var bitsPerSampleCodeTable = [8]uint8{
	1: 8,
	2: 12,
	4: 16,
	5: 20,
	6: 24,
}

// DecodeHeader parses one frame header from br. si supplies the sample
// rate and bit depth when the header defers to "see STREAMINFO" (coded as
// 0). A caller implementing resynchronization retries DecodeHeader one bit
// further into the stream on a sync mismatch rather than failing outright.
//
// frameSink, when non-nil, also receives every byte of the header
// (including its own CRC-8 field) so a caller assembling the frame-level
// CRC-16 over the whole frame does not need to re-read the header bytes.
func DecodeHeader(br *bits.Reader, si *meta.StreamInfo, frameSink io.Writer) (*Header, error) {
	h8 := crc8.NewATM()
	if frameSink != nil {
		br.StartCapture(io.MultiWriter(h8, frameSink))
	} else {
		br.StartCapture(h8)
	}
	defer br.StopCapture()

	sync, err := br.ReadBits(14)
	if err != nil {
		return nil, err
	}
	if sync != SyncCode {
		return nil, errSyncMismatch(sync)
	}

	reserved1, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if reserved1 != 0 {
		return nil, ferror.NewFormat("frame header reserved bit must be 0")
	}

	variable, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}

	blockSizeCode, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	sampleRateCode, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	channelCode, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	bpsCode, err := br.ReadBits(3)
	if err != nil {
		return nil, err
	}
	reserved2, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if reserved2 != 0 {
		return nil, ferror.NewFormat("frame header reserved bit must be 0")
	}

	h := &Header{HasVariableBlockSize: variable == 1}

	num, err := readUTF8Uint64(br)
	if err != nil {
		return nil, err
	}
	h.Num = num

	switch blockSizeCode {
	case 0:
		return nil, ferror.NewFormat("reserved block size code 0")
	case 6:
		x, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		h.BlockSize = uint16(x) + 1
	case 7:
		x, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		h.BlockSize = uint16(x) + 1
	default:
		h.BlockSize = blockSizeCodeTable[blockSizeCode]
	}

	switch sampleRateCode {
	case 0:
		h.SampleRate = si.SampleRate
	case 12:
		x, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		h.SampleRate = uint32(x) * 1000
	case 13:
		x, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		h.SampleRate = uint32(x)
	case 14:
		x, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		h.SampleRate = uint32(x) * 10
	case 15:
		return nil, ferror.NewFormat("invalid sample rate code 1111")
	default:
		h.SampleRate = sampleRateCodeTable[sampleRateCode]
	}

	ch, err := decodeChannelAssignment(uint8(channelCode))
	if err != nil {
		return nil, err
	}
	h.Channels = ch

	switch bpsCode {
	case 0:
		h.BitsPerSample = si.BitsPerSample
	case 3, 7:
		return nil, ferror.NewFormat("reserved sample size code %03b", bpsCode)
	default:
		h.BitsPerSample = bitsPerSampleCodeTable[bpsCode]
	}

	// Snapshot before consuming the CRC-8 field itself: it is not part of
	// the checksum it carries. The frame-level sink (if any) still needs
	// this byte, since the footer CRC-16 covers the header's CRC-8 field
	// too, so re-point capture at frameSink alone rather than stopping it.
	got := h8.Sum8()
	if frameSink != nil {
		br.StartCapture(frameSink)
	} else {
		br.StopCapture()
	}

	want, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if uint8(want) != got {
		return nil, ferror.NewFormat("frame header CRC-8 mismatch: stored %#x, computed %#x", want, got)
	}

	return h, nil
}

// errSyncMismatch reports a frame that did not begin with SyncCode. The
// result is a plain *ferror.FormatError, the same type as every other
// malformed-header error.
func errSyncMismatch(got uint64) error {
	return ferror.NewFormat("frame sync code mismatch: got %#04x, want %#04x", got, SyncCode)
}
