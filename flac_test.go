package flac_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
	"github.com/streamflac/flac"
)

// streamInfoBody builds the 34-byte StreamInfo body for a mono, 16-bit,
// 44.1 kHz stream with a block size of 16 (the smallest StreamInfo allows)
// and 4 samples in total, so its only frame is a short, final block.
func streamInfoBody() []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint16(16)) // block size min
	var hi uint64 = uint64(16)<<48 | uint64(0)<<24 | uint64(0)
	binary.Write(&body, binary.BigEndian, hi)
	var lo uint64 = uint64(44100)<<44 | uint64(0)<<41 | uint64(15)<<36 | uint64(4)
	binary.Write(&body, binary.BigEndian, lo)
	body.Write(make([]byte, 16))
	return body.Bytes()
}

func blockHeader(isLast bool, typ byte, length int) []byte {
	var raw uint32
	if isLast {
		raw |= 0x80000000
	}
	raw |= uint32(typ) << 24
	raw |= uint32(length) & 0x00FFFFFF
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, raw)
	return buf
}

// constantFrame builds a one-channel, four-sample frame whose subframe is
// SUBFRAME_CONSTANT, matching streamInfoBody's stream properties.
func constantFrame(sample uint16) []byte {
	buf := []byte{
		0xFF, 0xF8, // sync + reserved(0) + fixed blocksize(0)
		0x60, // blocksize code 6 (8-bit follows) | sample rate code 0 (STREAMINFO)
		0x08, // channel code 0 (mono) | bps code 4 (16 bits) | reserved(0)
		0x00, // frame number 0
		0x03, // blocksize-1 = 3 => blocksize 4
	}
	buf = append(buf, crc8.ChecksumATM(buf))
	buf = append(buf, 0x00, byte(sample>>8), byte(sample))
	sum := crc16.ChecksumIBM(buf)
	return append(buf, byte(sum>>8), byte(sum))
}

func buildStream(frames ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(flac.Signature)
	buf.Write(blockHeader(true, 0, len(streamInfoBody())))
	buf.Write(streamInfoBody())
	for _, f := range frames {
		buf.Write(f)
	}
	return buf.Bytes()
}

func TestOpenAndDecodeOneFrame(t *testing.T) {
	raw := buildStream(constantFrame(0x1234))
	s, err := flac.NewStream(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Info.SampleRate != 44100 || s.Info.NChannels != 1 {
		t.Fatalf("unexpected stream info: %+v", s.Info)
	}

	br := s.Blocks()
	block, err := br.Next()
	if err != nil {
		t.Fatalf("unexpected error decoding block: %v", err)
	}
	if block.BlockSize != 4 || block.Channels != 1 {
		t.Errorf("unexpected block shape: %+v", block)
	}
	for _, v := range block.Samples[0] {
		if v != 0x1234 {
			t.Errorf("sample mismatch: got %d, want %d", v, 0x1234)
		}
	}

	if _, err := br.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at stream end, got %v", err)
	}
}

func TestSampleIteratorInterleaves(t *testing.T) {
	raw := buildStream(constantFrame(7))
	s, err := flac.NewStream(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := s.Samples()
	for i := 0; i < 4; i++ {
		v, err := it.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 7 {
			t.Errorf("sample %d: got %d, want 7", i, v)
		}
	}
	if _, err := it.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestInvalidSignature(t *testing.T) {
	raw := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), buildStream()[4:]...)
	if _, err := flac.NewStream(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected an error for a non-FLAC signature")
	} else if _, ok := err.(*flac.FormatError); !ok {
		t.Errorf("expected *flac.FormatError, got %T", err)
	}
}

func TestTruncatedStreamYieldsUnexpectedEof(t *testing.T) {
	full := buildStream(constantFrame(0x1234))
	raw := full[:len(full)-2] // drop the footer CRC-16
	s, err := flac.NewStream(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error opening stream: %v", err)
	}
	if _, err := s.Blocks().Next(); err == nil {
		t.Fatal("expected an error decoding a truncated frame")
	} else if _, ok := err.(*flac.UnexpectedEof); !ok {
		t.Errorf("expected *flac.UnexpectedEof, got %T: %v", err, err)
	}
}

func TestFrameCRCFlipIsFormatError(t *testing.T) {
	raw := buildStream(constantFrame(0x1234))
	raw[len(raw)-1] ^= 0xFF
	s, err := flac.NewStream(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Blocks().Next(); err == nil {
		t.Fatal("expected a CRC mismatch error")
	} else if _, ok := err.(*flac.FormatError); !ok {
		t.Errorf("expected *flac.FormatError, got %T: %v", err, err)
	}
}

func TestResyncSkipsLeadingJunk(t *testing.T) {
	junk := []byte{0x00, 0x01, 0x02}
	raw := buildStream(constantFrame(0x1234))
	withJunk := append(append([]byte{}, raw[:4+34+4]...), append(junk, raw[4+34+4:]...)...)

	_, err := flac.NewStreamExt(bytes.NewReader(withJunk), flac.Options{ReadMetadata: true})
	if err != nil {
		t.Fatalf("unexpected error opening stream: %v", err)
	}

	s, err := flac.NewStreamExt(bytes.NewReader(withJunk), flac.Options{ReadMetadata: true, Resync: true})
	if err != nil {
		t.Fatalf("unexpected error opening stream: %v", err)
	}
	block, err := s.Blocks().Next()
	if err != nil {
		t.Fatalf("expected resync to recover the frame, got error: %v", err)
	}
	if block.Samples[0][0] != 0x1234 {
		t.Errorf("sample mismatch after resync: got %d", block.Samples[0][0])
	}
}
