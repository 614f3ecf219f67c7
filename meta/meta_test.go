package meta_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/streamflac/flac/meta"
)

// header encodes a metadata block header: is-last flag, type, and body
// length, exactly as readHeader expects.
func header(isLast bool, typ meta.BlockType, length int) []byte {
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

func TestStreamInfoRoundTrip(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.BigEndian, uint16(4096))  // min block size
	var hi uint64 = uint64(4096)<<48 | uint64(10)<<24 | uint64(20)
	binary.Write(&body, binary.BigEndian, hi)
	var lo uint64 = uint64(44100)<<44 | uint64(1)<<41 | uint64(15)<<36 | uint64(1000)
	binary.Write(&body, binary.BigEndian, lo)
	body.Write(make([]byte, 16)) // md5sum

	var buf bytes.Buffer
	buf.Write(header(true, meta.TypeStreamInfo, body.Len()))
	buf.Write(body.Bytes())

	block, err := meta.NewBlock(&buf, meta.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	si, ok := block.Body.(*meta.StreamInfo)
	if !ok {
		t.Fatalf("expected *meta.StreamInfo, got %T", block.Body)
	}
	if si.BlockSizeMin != 4096 || si.BlockSizeMax != 4096 {
		t.Errorf("block size mismatch: %+v", si)
	}
	if si.SampleRate != 44100 {
		t.Errorf("sample rate mismatch: got %d", si.SampleRate)
	}
	if si.NChannels != 2 {
		t.Errorf("channel count mismatch: got %d", si.NChannels)
	}
	if si.BitsPerSample != 16 {
		t.Errorf("bits per sample mismatch: got %d", si.BitsPerSample)
	}
	if si.NSamples != 1000 {
		t.Errorf("sample count mismatch: got %d", si.NSamples)
	}
	if !block.Header.IsLast {
		t.Error("expected IsLast to be true")
	}
}

func TestVorbisComment(t *testing.T) {
	var body bytes.Buffer
	vendor := []byte("test vendor")
	binary.Write(&body, binary.LittleEndian, uint32(len(vendor)))
	body.Write(vendor)
	tags := []string{"TITLE=song", "ARTIST=someone"}
	binary.Write(&body, binary.LittleEndian, uint32(len(tags)))
	for _, tag := range tags {
		binary.Write(&body, binary.LittleEndian, uint32(len(tag)))
		body.WriteString(tag)
	}

	var buf bytes.Buffer
	buf.Write(header(false, meta.TypeVorbisComment, body.Len()))
	buf.Write(body.Bytes())

	block, err := meta.NewBlock(&buf, meta.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vc := block.Body.(*meta.VorbisComment)
	if vc.Vendor != "test vendor" {
		t.Errorf("vendor mismatch: got %q", vc.Vendor)
	}
	want := [][2]string{{"TITLE", "song"}, {"ARTIST", "someone"}}
	if len(vc.Tags) != len(want) {
		t.Fatalf("tag count mismatch: got %d want %d", len(vc.Tags), len(want))
	}
	for i, tag := range vc.Tags {
		if tag != want[i] {
			t.Errorf("tag %d mismatch: got %v want %v", i, tag, want[i])
		}
	}
}

func TestVorbisCommentMissingEquals(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(0)) // empty vendor
	binary.Write(&body, binary.LittleEndian, uint32(1)) // one tag
	bad := "NOEQUALSHERE"
	binary.Write(&body, binary.LittleEndian, uint32(len(bad)))
	body.WriteString(bad)

	var buf bytes.Buffer
	buf.Write(header(true, meta.TypeVorbisComment, body.Len()))
	buf.Write(body.Bytes())

	if _, err := meta.NewBlock(&buf, meta.Options{}); err == nil {
		t.Fatal("expected an error for a tag with no '='")
	}
}

func TestVorbisCommentEmptyEntryTolerated(t *testing.T) {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(0)) // empty vendor
	binary.Write(&body, binary.LittleEndian, uint32(2)) // two tags
	binary.Write(&body, binary.LittleEndian, uint32(0)) // zero-length entry
	tag := "TITLE=song"
	binary.Write(&body, binary.LittleEndian, uint32(len(tag)))
	body.WriteString(tag)

	var buf bytes.Buffer
	buf.Write(header(true, meta.TypeVorbisComment, body.Len()))
	buf.Write(body.Bytes())

	block, err := meta.NewBlock(&buf, meta.Options{})
	if err != nil {
		t.Fatalf("unexpected error for a zero-length entry: %v", err)
	}
	vc := block.Body.(*meta.VorbisComment)
	want := [][2]string{{"", ""}, {"TITLE", "song"}}
	if len(vc.Tags) != len(want) {
		t.Fatalf("tag count mismatch: got %d want %d", len(vc.Tags), len(want))
	}
	for i, tag := range vc.Tags {
		if tag != want[i] {
			t.Errorf("tag %d mismatch: got %v want %v", i, tag, want[i])
		}
	}
}

func TestPaddingRejectsNonZero(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header(true, meta.TypePadding, 4))
	buf.Write([]byte{0, 0, 1, 0})

	if _, err := meta.NewBlock(&buf, meta.Options{}); err == nil {
		t.Fatal("expected an error for non-zero padding")
	}
}

func TestPaddingAccepted(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header(true, meta.TypePadding, 4))
	buf.Write([]byte{0, 0, 0, 0})

	block, err := meta.NewBlock(&buf, meta.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Body != nil {
		t.Errorf("expected nil Body for padding, got %v", block.Body)
	}
}

func TestSeekTableOrdering(t *testing.T) {
	var body bytes.Buffer
	write := func(sampleNum, offset uint64, n uint16) {
		binary.Write(&body, binary.BigEndian, sampleNum)
		binary.Write(&body, binary.BigEndian, offset)
		binary.Write(&body, binary.BigEndian, n)
	}
	write(100, 0, 10)
	write(50, 10, 10) // out of order

	var buf bytes.Buffer
	buf.Write(header(true, meta.TypeSeekTable, body.Len()))
	buf.Write(body.Bytes())

	if _, err := meta.NewBlock(&buf, meta.Options{}); err == nil {
		t.Fatal("expected an error for an out-of-order seek point")
	}
}

func TestSeekTablePlaceholdersAllowedAtEnd(t *testing.T) {
	var body bytes.Buffer
	write := func(sampleNum, offset uint64, n uint16) {
		binary.Write(&body, binary.BigEndian, sampleNum)
		binary.Write(&body, binary.BigEndian, offset)
		binary.Write(&body, binary.BigEndian, n)
	}
	write(0, 0, 10)
	write(meta.PlaceholderPoint, 0, 0)
	write(meta.PlaceholderPoint, 0, 0)

	var buf bytes.Buffer
	buf.Write(header(true, meta.TypeSeekTable, body.Len()))
	buf.Write(body.Bytes())

	block, err := meta.NewBlock(&buf, meta.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := block.Body.(*meta.SeekTable)
	if len(st.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(st.Points))
	}
}

func TestOversizedBlockRejectedWithoutAllocating(t *testing.T) {
	var buf bytes.Buffer
	// A declared length larger than the cap, with no body bytes backing it:
	// if NewBlock tried to allocate for the body before checking the cap, it
	// would not even reach a read error; it must fail on the header alone.
	buf.Write(header(true, meta.TypeApplication, 0x00FFFFFF))

	_, err := meta.NewBlock(&buf, meta.Options{})
	if err == nil {
		t.Fatal("expected an error for an oversized block length")
	}
	if _, ok := err.(interface{ Error() string }); !ok {
		t.Fatalf("expected an error value, got %T", err)
	}
}

func TestVorbisCommentOnlySkipsOtherBlocks(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(header(false, meta.TypeApplication, 8))
	buf.Write(make([]byte, 8))
	buf.Write(header(true, meta.TypeVorbisComment, 8))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	block, err := meta.NewBlock(&buf, meta.Options{VorbisCommentOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Body != nil {
		t.Errorf("expected Application block to be skipped, got %v", block.Body)
	}
	block, err = meta.NewBlock(&buf, meta.Options{VorbisCommentOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := block.Body.(*meta.VorbisComment); !ok {
		t.Fatalf("expected *meta.VorbisComment, got %T", block.Body)
	}
}
