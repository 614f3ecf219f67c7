package meta

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/streamflac/flac/ferror"
)

// VorbisComment holds the stream's human-readable tags: an encoder vendor
// string plus zero or more "NAME=value" entries, per the Vorbis comment
// spec without its framing bit.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_vorbis_comment
type VorbisComment struct {
	Vendor string
	// Tags holds each entry split at its first '=' into {name, value}.
	// Tag names are matched case-insensitively by convention but are
	// stored verbatim here.
	Tags [][2]string
}

// parseVorbisComment reads:
//
//	vendor_length uint32le
//	vendor_string [vendor_length]byte
//	tag_count     uint32le
//	tags          [tag_count]tag
//
//	tag: vector_length uint32le; vector_string [vector_length]byte,
//	     formatted "NAME=value"
//
// Unlike every other FLAC block, these lengths are little-endian, carried
// over unchanged from the Vorbis comment header spec.
func parseVorbisComment(r io.Reader) (*VorbisComment, error) {
	vendor, err := readLengthPrefixed(r)
	if err != nil {
		return nil, err
	}
	vc := &VorbisComment{Vendor: string(vendor)}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, ferror.FromRead(err)
	}
	vc.Tags = make([][2]string, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		entry := string(raw)
		if len(entry) == 0 {
			// Empty entries are tolerated, not rejected.
			vc.Tags = append(vc.Tags, [2]string{})
			continue
		}
		pos := strings.IndexByte(entry, '=')
		if pos == -1 {
			return nil, ferror.NewFormat("vorbis comment entry %q missing '='", entry)
		}
		vc.Tags = append(vc.Tags, [2]string{entry[:pos], entry[pos+1:]})
	}
	return vc, nil
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, ferror.FromRead(err)
	}
	if n > maxBlockLength {
		return nil, ferror.NewUnsupported("vorbis comment field length %d exceeds %d byte cap", n, maxBlockLength)
	}
	return readN(r, int(n))
}
