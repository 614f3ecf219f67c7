package meta

import (
	"encoding/binary"
	"io"

	"github.com/streamflac/flac/ferror"
)

// Picture stores a single image associated with the stream, most commonly
// cover art.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_picture
type Picture struct {
	// Type follows the ID3v2 APIC picture type enumeration (0 = Other,
	// 3 = Cover (front), etc).
	Type uint32
	// MIME is the picture's MIME type in printable ASCII 0x20-0x7E, or the
	// literal string "-->" to signal Data is a URL rather than image bytes.
	MIME string
	// Desc is a UTF-8 description of the picture.
	Desc string
	Width, Height, ColorDepth, ColorCount uint32
	// Data is the raw picture bytes (or URL bytes, if MIME is "-->").
	Data []byte
}

// readLengthPrefixedBE reads a big-endian uint32 length followed by that
// many bytes, capped like every other variable-length metadata field.
func readLengthPrefixedBE(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, ferror.FromRead(err)
	}
	if n > maxBlockLength {
		return nil, ferror.NewUnsupported("picture field length %d exceeds %d byte cap", n, maxBlockLength)
	}
	return readN(r, int(n))
}

// parsePicture reads:
//
//	type        uint32
//	mime_length uint32
//	mime_string [mime_length]byte
//	desc_length uint32
//	desc_string [desc_length]byte
//	width       uint32
//	height      uint32
//	color_depth uint32
//	color_count uint32
//	data_length uint32
//	data        [data_length]byte
func parsePicture(r io.Reader) (*Picture, error) {
	pic := new(Picture)
	if err := binary.Read(r, binary.BigEndian, &pic.Type); err != nil {
		return nil, ferror.FromRead(err)
	}
	if pic.Type > 20 {
		return nil, ferror.NewFormat("picture: reserved picture type %d", pic.Type)
	}

	mime, err := readLengthPrefixedBE(r)
	if err != nil {
		return nil, err
	}
	pic.MIME = string(mime)
	for _, c := range pic.MIME {
		if c < 0x20 || c > 0x7E {
			return nil, ferror.NewFormat("picture: invalid character in MIME type: %q", c)
		}
	}

	desc, err := readLengthPrefixedBE(r)
	if err != nil {
		return nil, err
	}
	pic.Desc = string(desc)

	for _, f := range []*uint32{&pic.Width, &pic.Height, &pic.ColorDepth, &pic.ColorCount} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return nil, ferror.FromRead(err)
		}
	}

	var dataLen uint32
	if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return nil, ferror.FromRead(err)
	}
	if dataLen > maxBlockLength {
		return nil, ferror.NewUnsupported("picture data length %d exceeds %d byte cap", dataLen, maxBlockLength)
	}
	data, err := readN(r, int(dataLen))
	if err != nil {
		return nil, err
	}
	pic.Data = data
	return pic, nil
}
