package frame

import "github.com/streamflac/flac/ferror"

// Layout identifies how a frame's subframes map to output channels: either
// N independently coded channels, or one of the three inter-channel
// decorrelation modes FLAC uses for stereo.
type Layout uint8

const (
	// Independent means each subframe is an output channel as-is.
	Independent Layout = iota
	// LeftSide stores left, and the difference left-right.
	LeftSide
	// SideRight stores the difference left-right, and right.
	SideRight
	// MidSide stores the average of left and right, and their difference.
	MidSide
)

func (l Layout) String() string {
	switch l {
	case Independent:
		return "independent"
	case LeftSide:
		return "left/side"
	case SideRight:
		return "side/right"
	case MidSide:
		return "mid/side"
	default:
		return "reserved"
	}
}

// ChannelAssignment describes the channel layout of a frame, decoded from
// the 4-bit channel assignment field of its header.
type ChannelAssignment struct {
	Layout Layout
	// NChannels is the channel count; always 2 for the non-Independent
	// layouts.
	NChannels uint8
}

// decodeChannelAssignment maps the raw 4-bit field to a ChannelAssignment,
// rejecting the reserved patterns 1011-1111.
func decodeChannelAssignment(raw uint8) (ChannelAssignment, error) {
	switch {
	case raw <= 7:
		return ChannelAssignment{Layout: Independent, NChannels: raw + 1}, nil
	case raw == 8:
		return ChannelAssignment{Layout: LeftSide, NChannels: 2}, nil
	case raw == 9:
		return ChannelAssignment{Layout: SideRight, NChannels: 2}, nil
	case raw == 10:
		return ChannelAssignment{Layout: MidSide, NChannels: 2}, nil
	default:
		return ChannelAssignment{}, ferror.NewFormat("reserved channel assignment %#x", raw)
	}
}

// subframeBitsPerSample returns the bit depth a given subframe index should
// be decoded at: the side channel of a decorrelated stereo pair carries one
// extra bit of range.
func (c ChannelAssignment) subframeBitsPerSample(base uint8, subframe int) uint8 {
	switch {
	case c.Layout == LeftSide && subframe == 1:
		return base + 1
	case c.Layout == SideRight && subframe == 0:
		return base + 1
	case c.Layout == MidSide && subframe == 1:
		return base + 1
	default:
		return base
	}
}

// reconstruct undoes inter-channel decorrelation in place, turning the raw
// decoded subframes (ch[0], ch[1]) into (left, right) samples.
func (c ChannelAssignment) reconstruct(ch [][]int32) {
	switch c.Layout {
	case LeftSide:
		for i, left := range ch[0] {
			ch[1][i] = left - ch[1][i]
		}
	case SideRight:
		for i, side := range ch[0] {
			ch[0][i] = ch[1][i] + side
		}
	case MidSide:
		for i, mid := range ch[0] {
			side := ch[1][i]
			mid = mid*2 | (side & 1)
			ch[0][i] = (mid + side) >> 1
			ch[1][i] = (mid - side) >> 1
		}
	}
}
