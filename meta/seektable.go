package meta

import (
	"encoding/binary"
	"io"

	"github.com/streamflac/flac/ferror"
)

// SeekTable contains one or more precalculated audio frame seek points.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_seektable
type SeekTable struct {
	Points []SeekPoint
}

// SeekPoint specifies the byte offset and initial sample number of a given
// target frame.
//
// ref: https://www.xiph.org/flac/format.html#seekpoint
type SeekPoint struct {
	// SampleNum is the sample number of the first sample in the target
	// frame, or PlaceholderPoint.
	SampleNum uint64
	// Offset in bytes from the first byte of the first frame header to the
	// first byte of the target frame's header.
	Offset uint64
	// NSamples is the number of samples in the target frame.
	NSamples uint16
}

// PlaceholderPoint marks a reserved, meaningless seek point; its Offset and
// NSamples are undefined.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

const seekPointSize = 8 + 8 + 2

// parseSeekTable reads length/18 fixed-size seek points, validating that
// sample numbers are strictly ascending and that placeholder points only
// appear at the end of the table.
func parseSeekTable(r io.Reader, length int) (*SeekTable, error) {
	if length%seekPointSize != 0 {
		return nil, ferror.NewFormat("seek table length %d not a multiple of %d", length, seekPointSize)
	}
	st := new(SeekTable)
	n := length / seekPointSize
	var prev uint64
	havePrev := false
	for i := 0; i < n; i++ {
		var p SeekPoint
		if err := binary.Read(r, binary.BigEndian, &p.SampleNum); err != nil {
			return nil, ferror.FromRead(err)
		}
		if err := binary.Read(r, binary.BigEndian, &p.Offset); err != nil {
			return nil, ferror.FromRead(err)
		}
		if err := binary.Read(r, binary.BigEndian, &p.NSamples); err != nil {
			return nil, ferror.FromRead(err)
		}
		if havePrev && prev >= p.SampleNum && p.SampleNum != PlaceholderPoint {
			return nil, ferror.NewFormat("seek point sample number %d out of ascending order", p.SampleNum)
		}
		prev, havePrev = p.SampleNum, true
		st.Points = append(st.Points, p)
	}
	return st, nil
}
