package meta

import (
	"encoding/binary"
	"io"

	"github.com/streamflac/flac/ferror"
)

// StreamInfo carries the properties of the whole stream: block and frame
// size bounds, sample rate, channel and bit-depth layout, total sample
// count, and an MD5 of the decoded audio. It is always the first metadata
// block.
type StreamInfo struct {
	// BlockSizeMin and BlockSizeMax bound the block size (in samples) used
	// anywhere in the stream. Equal values imply a fixed block size.
	BlockSizeMin uint16
	BlockSizeMax uint16
	// FrameSizeMin and FrameSizeMax bound the frame size in bytes; 0 means
	// unknown.
	FrameSizeMin uint32
	FrameSizeMax uint32
	// SampleRate in Hz; never 0.
	SampleRate uint32
	// NChannels is the channel count, 1 to 8.
	NChannels uint8
	// BitsPerSample is the sample resolution, 4 to 32.
	BitsPerSample uint8
	// NSamples is the total inter-channel sample count, or 0 if unknown.
	NSamples uint64
	// MD5sum is the MD5 signature of the decoded audio data.
	MD5sum [16]byte
}

// parseStreamInfo reads a StreamInfo body:
//
//	min_block_size  uint16
//	max_block_size  uint16
//	min_frame_size  uint24
//	max_frame_size  uint24
//	sample_rate     uint20
//	n_channels      uint3  // (channel count)-1
//	bits_per_sample uint5  // (bits per sample)-1
//	n_samples       uint36
//	md5sum          [16]byte
func parseStreamInfo(r io.Reader) (*StreamInfo, error) {
	si := new(StreamInfo)
	if err := binary.Read(r, binary.BigEndian, &si.BlockSizeMin); err != nil {
		return nil, ferror.FromRead(err)
	}
	if si.BlockSizeMin < 16 {
		return nil, ferror.NewFormat("stream info: block size minimum %d below 16", si.BlockSizeMin)
	}

	var hi uint64
	if err := binary.Read(r, binary.BigEndian, &hi); err != nil {
		return nil, ferror.FromRead(err)
	}
	const (
		maxBlockSizeMask = 0xFFFF000000000000
		minFrameSizeMask = 0x0000FFFFFF000000
		maxFrameSizeMask = 0x0000000000FFFFFF
	)
	si.BlockSizeMax = uint16(hi & maxBlockSizeMask >> 48)
	if si.BlockSizeMax < 16 {
		return nil, ferror.NewFormat("stream info: block size maximum %d below 16", si.BlockSizeMax)
	}
	si.FrameSizeMin = uint32(hi & minFrameSizeMask >> 24)
	si.FrameSizeMax = uint32(hi & maxFrameSizeMask)

	var lo uint64
	if err := binary.Read(r, binary.BigEndian, &lo); err != nil {
		return nil, ferror.FromRead(err)
	}
	const (
		sampleRateMask    = 0xFFFFF00000000000
		nChannelsMask     = 0x00000E0000000000
		bitsPerSampleMask = 0x000001F000000000
		nSamplesMask      = 0x0000000FFFFFFFFF
	)
	si.SampleRate = uint32(lo & sampleRateMask >> 44)
	if si.SampleRate == 0 || si.SampleRate > 655350 {
		return nil, ferror.NewFormat("stream info: sample rate %d out of range", si.SampleRate)
	}
	si.NChannels = uint8(lo&nChannelsMask>>41) + 1
	si.BitsPerSample = uint8(lo&bitsPerSampleMask>>36) + 1
	if si.BitsPerSample < 4 || si.BitsPerSample > 32 {
		return nil, ferror.NewFormat("stream info: bits per sample %d out of range", si.BitsPerSample)
	}
	si.NSamples = lo & nSamplesMask

	if _, err := io.ReadFull(r, si.MD5sum[:]); err != nil {
		return nil, ferror.FromRead(err)
	}
	return si, nil
}
