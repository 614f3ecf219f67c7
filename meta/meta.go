// Package meta parses the metadata block chain that precedes the frame data
// in a FLAC stream: StreamInfo, Padding, Application, SeekTable,
// VorbisComment, CueSheet, and Picture.
package meta

import (
	"encoding/binary"
	"io"

	"github.com/mewkiz/pkg/errutil"
	"github.com/streamflac/flac/ferror"
)

// maxBlockLength caps the declared length of any single metadata block.
// The header's length field is a 24-bit byte count, so a hostile or
// truncated stream could otherwise make a parser commit to allocating up to
// 16 MiB for a single block before any of it has been validated; capping it
// rejects the block with Unsupported before any type-specific allocation
// happens.
const maxBlockLength = 10 << 20 // 10 MiB

// BlockType identifies the kind of metadata carried by a Block.
type BlockType uint8

// Metadata block types, in the order defined by the FLAC format.
const (
	TypeStreamInfo BlockType = iota
	TypePadding
	TypeApplication
	TypeSeekTable
	TypeVorbisComment
	TypeCueSheet
	TypePicture
)

func (t BlockType) String() string {
	switch t {
	case TypeStreamInfo:
		return "stream info"
	case TypePadding:
		return "padding"
	case TypeApplication:
		return "application"
	case TypeSeekTable:
		return "seek table"
	case TypeVorbisComment:
		return "vorbis comment"
	case TypeCueSheet:
		return "cue sheet"
	case TypePicture:
		return "picture"
	default:
		return "reserved"
	}
}

// Header describes a metadata block's position in the chain and how many
// body bytes follow it.
type Header struct {
	// Type of the block body. Values 7-126 are reserved; NewBlock skips
	// their bodies by length. 127 (which, with the last-block flag set,
	// is the frame sync code's 0xFF prefix) is rejected by readHeader.
	Type BlockType
	// Length in bytes of the block body, excluding the header itself.
	Length int
	// IsLast reports whether this is the last metadata block before the
	// first audio frame.
	IsLast bool
}

// Block is one node of the metadata chain: a header plus a parsed body.
// Body is nil for Padding, for reserved block types, and for block types
// skipped by Options, and a
// pointer to one of StreamInfo, Application, SeekTable, VorbisComment,
// CueSheet, or Picture otherwise.
type Block struct {
	Header Header
	Body   interface{}
}

// readHeader parses the 32-bit metadata block header: a 1-bit last-block
// flag, a 7-bit type, and a 24-bit length, all packed into one big-endian
// uint32.
func readHeader(r io.Reader) (Header, error) {
	var raw uint32
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return Header{}, ferror.FromRead(err)
	}
	const (
		isLastMask = 0x80000000
		typeMask   = 0x7F000000
		lengthMask = 0x00FFFFFF
	)
	h := Header{
		IsLast: raw&isLastMask != 0,
		Type:   BlockType(raw & typeMask >> 24),
		Length: int(raw & lengthMask),
	}
	if h.Type == 127 {
		return Header{}, ferror.NewFormat("invalid metadata block type 127")
	}
	if h.Length > maxBlockLength {
		return Header{}, ferror.NewUnsupported("metadata block length %d exceeds %d byte cap", h.Length, maxBlockLength)
	}
	return h, nil
}

// Options controls which metadata block bodies NewBlock parses into.
type Options struct {
	// VorbisCommentOnly, when true, parses only StreamInfo and
	// VorbisComment bodies; every other known block type is skipped
	// (Body left nil) without even being dispatched.
	VorbisCommentOnly bool
}

// NewBlock reads one metadata block header and, according to opts, its
// body. Reserved block types (7-126) and VorbisCommentOnly-skipped types
// leave Body nil but still consume the declared body length so the
// caller's reader lands on the next header.
func NewBlock(r io.Reader, opts Options) (*Block, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	block := &Block{Header: h}
	lr := io.LimitReader(r, int64(h.Length))

	if opts.VorbisCommentOnly && h.Type != TypeStreamInfo && h.Type != TypeVorbisComment {
		if err := discard(lr, h.Length); err != nil {
			return nil, err
		}
		return block, nil
	}

	switch h.Type {
	case TypeStreamInfo:
		block.Body, err = parseStreamInfo(lr)
	case TypePadding:
		err = verifyPadding(lr)
	case TypeApplication:
		block.Body, err = parseApplication(lr)
	case TypeSeekTable:
		block.Body, err = parseSeekTable(lr, h.Length)
	case TypeVorbisComment:
		block.Body, err = parseVorbisComment(lr)
	case TypeCueSheet:
		block.Body, err = parseCueSheet(lr)
	case TypePicture:
		block.Body, err = parsePicture(lr)
	default:
		err = discard(lr, h.Length)
	}
	if err != nil {
		return nil, err
	}
	return block, nil
}

// discard reads and drops up to n bytes from r, used to skip a block body
// whose type is not being parsed.
func discard(r io.Reader, n int) error {
	_, err := io.CopyN(io.Discard, r, int64(n))
	if err != nil && err != io.EOF {
		return ferror.FromRead(err)
	}
	return nil
}

// readAll is a thin wrapper giving metadata parsers a consistent error
// type; metadata is parsed once per stream at startup so there is no
// buffer-reuse benefit worth the shared-state risk a package-level scratch
// buffer would introduce for concurrent independent readers.
func readAll(r io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errutil.Err(ferror.FromRead(err))
	}
	return buf, nil
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ferror.FromRead(err)
	}
	return buf, nil
}
