package meta

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mewkiz/pkg/readerutil"
	"github.com/streamflac/flac/ferror"
)

// A CueSheet describes how tracks are laid out within a FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_cuesheet
type CueSheet struct {
	// Media catalog number.
	MCN string
	// Number of lead-in samples. This field only has meaning for CD-DA cue
	// sheets; for other uses it should be 0. Refer to the spec for additional
	// information.
	NLeadInSamples uint64
	// Specifies if the cue sheet corresponds to a Compact Disc.
	IsCompactDisc bool
	// One or more tracks. The last track of a cue sheet is always the lead-out
	// track.
	Tracks []CueSheetTrack
}

// CueSheetTrack contains the start offset of a track and other track specific
// metadata.
type CueSheetTrack struct {
	// Track offset in samples, relative to the beginning of the FLAC audio
	// stream.
	Offset uint64
	// Track number; never 0, always unique.
	Num uint8
	// International Standard Recording Code; empty string if not present.
	//
	// ref: http://isrc.ifpi.org/
	ISRC string
	// Specifies if the track contains audio or data.
	IsAudio bool
	// Specifies if the track has been recorded with pre-emphasis
	HasPreEmphasis bool
	// Every track has one or more track index points, except for the lead-out
	// track which has zero. Each index point specifies a position within the
	// track.
	Indicies []CueSheetTrackIndex
}

// A CueSheetTrackIndex specifies a position within a track.
type CueSheetTrackIndex struct {
	// Index point offset in samples, relative to the track offset.
	Offset uint64
	// Index point number; subsequently incrementing by 1 and always unique
	// within a track.
	Num uint8
}

// nulString trims a fixed-size byte field at its first NUL, matching the
// C-string convention the FLAC format uses for MCN and ISRC.
func nulString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i != -1 {
		buf = buf[:i]
	}
	return string(buf)
}

func mustAllZero(buf []byte) error {
	for _, b := range buf {
		if b != 0 {
			return ferror.NewFormat("cue sheet: reserved bits must be zero")
		}
	}
	return nil
}

// parseCueSheet reads a CueSheet body, validating the Red Book constraints
// that apply when IsCompactDisc is set: track offsets and index offsets
// divisible by 588 samples, lead-out track numbered 170 (255 for non-CD-DA),
// at most 100 tracks, and so on.
func parseCueSheet(r io.Reader) (*CueSheet, error) {
	mcn, err := readN(r, 128)
	if err != nil {
		return nil, err
	}
	cs := new(CueSheet)
	cs.MCN = nulString(mcn)
	for _, c := range cs.MCN {
		if c < 0x20 || c > 0x7E {
			return nil, ferror.NewFormat("cue sheet: invalid character in MCN: %q", c)
		}
	}

	if err := binary.Read(r, binary.BigEndian, &cs.NLeadInSamples); err != nil {
		return nil, ferror.FromRead(err)
	}

	flags, err := readerutil.ReadByte(r)
	if err != nil {
		return nil, ferror.FromRead(err)
	}
	const isCompactDiscMask = 0x80
	cs.IsCompactDisc = flags&isCompactDiscMask != 0
	if flags&0x7F != 0 {
		return nil, ferror.NewFormat("cue sheet: reserved bits must be zero")
	}
	reserved, err := readN(r, 258)
	if err != nil {
		return nil, err
	}
	if err := mustAllZero(reserved); err != nil {
		return nil, err
	}
	if !cs.IsCompactDisc && cs.NLeadInSamples != 0 {
		return nil, ferror.NewFormat("cue sheet: lead-in sample count must be 0 for non CD-DA")
	}

	trackCount, err := readerutil.ReadByte(r)
	if err != nil {
		return nil, ferror.FromRead(err)
	}
	if trackCount < 1 {
		return nil, ferror.NewFormat("cue sheet: at least one (lead-out) track required")
	}
	if cs.IsCompactDisc && trackCount > 100 {
		return nil, ferror.NewFormat("cue sheet: too many tracks for CD-DA: %d", trackCount)
	}

	cs.Tracks = make([]CueSheetTrack, trackCount)
	for i := range cs.Tracks {
		track := &cs.Tracks[i]
		last := i == len(cs.Tracks)-1

		if err := binary.Read(r, binary.BigEndian, &track.Offset); err != nil {
			return nil, ferror.FromRead(err)
		}
		if cs.IsCompactDisc && track.Offset%588 != 0 {
			return nil, ferror.NewFormat("cue sheet: track offset %d not divisible by 588", track.Offset)
		}

		num, err := readerutil.ReadByte(r)
		if err != nil {
			return nil, ferror.FromRead(err)
		}
		track.Num = num
		if track.Num == 0 {
			return nil, ferror.NewFormat("cue sheet: track number 0 is reserved")
		}
		switch {
		case cs.IsCompactDisc && last && track.Num != 170:
			return nil, ferror.NewFormat("cue sheet: CD-DA lead-out track number must be 170, got %d", track.Num)
		case cs.IsCompactDisc && !last && track.Num > 99:
			return nil, ferror.NewFormat("cue sheet: CD-DA track number %d out of range", track.Num)
		case !cs.IsCompactDisc && last && track.Num != 255:
			return nil, ferror.NewFormat("cue sheet: non CD-DA lead-out track number must be 255, got %d", track.Num)
		}

		isrc, err := readN(r, 12)
		if err != nil {
			return nil, err
		}
		track.ISRC = nulString(isrc)

		trackFlags, err := readerutil.ReadByte(r)
		if err != nil {
			return nil, ferror.FromRead(err)
		}
		const (
			trackTypeMask      = 0x80
			hasPreEmphasisMask = 0x40
		)
		track.IsAudio = trackFlags&trackTypeMask == 0
		track.HasPreEmphasis = trackFlags&hasPreEmphasisMask != 0
		if trackFlags&0x3F != 0 {
			return nil, ferror.NewFormat("cue sheet: reserved track bits must be zero")
		}
		reserved, err := readN(r, 13)
		if err != nil {
			return nil, err
		}
		if err := mustAllZero(reserved); err != nil {
			return nil, err
		}

		idxCount, err := readerutil.ReadByte(r)
		if err != nil {
			return nil, ferror.FromRead(err)
		}
		if last {
			if idxCount != 0 {
				return nil, ferror.NewFormat("cue sheet: lead-out track must have 0 index points")
			}
		} else {
			if idxCount < 1 {
				return nil, ferror.NewFormat("cue sheet: track must have at least 1 index point")
			}
			if cs.IsCompactDisc && idxCount > 100 {
				return nil, ferror.NewFormat("cue sheet: too many index points for CD-DA: %d", idxCount)
			}
		}

		track.Indicies = make([]CueSheetTrackIndex, idxCount)
		for j := range track.Indicies {
			idx := &track.Indicies[j]
			if err := binary.Read(r, binary.BigEndian, &idx.Offset); err != nil {
				return nil, ferror.FromRead(err)
			}
			if cs.IsCompactDisc && idx.Offset%588 != 0 {
				return nil, ferror.NewFormat("cue sheet: index offset %d not divisible by 588", idx.Offset)
			}
			num, err := readerutil.ReadByte(r)
			if err != nil {
				return nil, ferror.FromRead(err)
			}
			idx.Num = num
			reserved, err := readN(r, 3)
			if err != nil {
				return nil, err
			}
			if err := mustAllZero(reserved); err != nil {
				return nil, err
			}
		}
	}
	return cs, nil
}
