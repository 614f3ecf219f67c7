package frame

import (
	"github.com/streamflac/flac/ferror"
	"github.com/streamflac/flac/internal/bits"
)

// decodeResidual reads the residual signal that follows a fixed or LPC
// subframe's warm-up samples, filling residuals (length = block size -
// predOrder) with the zig-zag decoded prediction errors.
//
// ref: https://www.xiph.org/flac/format.html#residual
func decodeResidual(br *bits.Reader, predOrder int, residuals []int32) error {
	method, err := br.ReadBits(2)
	if err != nil {
		return err
	}
	var paramBits uint8
	switch method {
	case 0:
		paramBits = 4
	case 1:
		paramBits = 5
	default:
		return ferror.NewFormat("reserved residual coding method %02b", method)
	}

	partOrderBits, err := br.ReadBits(4)
	if err != nil {
		return err
	}
	partCount := 1 << partOrderBits
	nsamples := predOrder + len(residuals)
	if nsamples%partCount != 0 {
		return ferror.NewFormat("block size %d not divisible by %d residual partitions", nsamples, partCount)
	}
	partLen := nsamples / partCount

	pos := 0
	for part := 0; part < partCount; part++ {
		n := partLen
		if part == 0 {
			n -= predOrder
		}
		if n < 0 {
			return ferror.NewFormat("first residual partition length %d is negative (predictor order %d exceeds partition length %d)", n, predOrder, partLen)
		}
		if err := decodeRicePartition(br, paramBits, residuals[pos:pos+n]); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

// decodeRicePartition fills dst with one partition's residuals, coded
// either as Rice-coded (unary quotient, k-bit remainder) values or, when
// the parameter field reads all-ones, as an escape partition of raw
// two's-complement samples at an explicit bit width.
func decodeRicePartition(br *bits.Reader, paramBits uint8, dst []int32) error {
	param, err := br.ReadBits(paramBits)
	if err != nil {
		return err
	}
	escape := uint64(1)<<paramBits - 1
	if param == escape {
		widthField, err := br.ReadBits(5)
		if err != nil {
			return err
		}
		width := uint8(widthField)
		for i := range dst {
			if width == 0 {
				dst[i] = 0
				continue
			}
			x, err := br.ReadBits(width)
			if err != nil {
				return err
			}
			dst[i] = signExtend(x, width)
		}
		return nil
	}

	k := uint8(param)
	for i := range dst {
		v, err := decodeRiceValue(br, k)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func decodeRiceValue(br *bits.Reader, k uint8) (int32, error) {
	quotient, err := br.ReadUnary()
	if err != nil {
		return 0, err
	}
	var remainder uint64
	if k > 0 {
		remainder, err = br.ReadBits(k)
		if err != nil {
			return 0, err
		}
	}
	u := quotient<<k | remainder
	return bits.DecodeZigZag(uint32(u)), nil
}
