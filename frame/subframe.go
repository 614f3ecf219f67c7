package frame

import (
	"github.com/streamflac/flac/ferror"
	"github.com/streamflac/flac/internal/bits"
)

// predictor identifies a subframe's prediction method, decoded from the
// 6-bit subframe header type field.
type predictor uint8

const (
	predConstant predictor = iota
	predVerbatim
	predFixed
	predLPC
)

// fixedCoeffs are the fixed predictor coefficients for orders 0-4, applied
// as x[n] = sum(coeffs[j] * x[n-1-j]).
//
// ref: https://www.xiph.org/flac/format.html#subframe_fixed
var fixedCoeffs = [5][]int32{
	0: {},
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

// signExtend interprets the low n bits of x as a signed two's-complement
// value and sign-extends it to int32.
func signExtend(x uint64, n uint8) int32 {
	if n == 0 {
		return 0
	}
	return int32(bits.IntN(x, uint(n)))
}

// decodeSubframe reads one subframe at bit depth bps into dst, whose
// length is the frame's block size. dst is caller-owned and reused across
// frames; every path writes exactly len(dst) samples.
func decodeSubframe(br *bits.Reader, bps uint8, dst []int32) error {
	zero, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	if zero != 0 {
		return ferror.NewFormat("subframe header padding bit must be 0")
	}

	typ, err := br.ReadBits(6)
	if err != nil {
		return err
	}

	var (
		pred  predictor
		order int
	)
	switch {
	case typ == 0:
		pred = predConstant
	case typ == 1:
		pred = predVerbatim
	case typ < 8:
		return ferror.NewFormat("reserved subframe type %#06b", typ)
	case typ < 16:
		order = int(typ & 0x07)
		if order > 4 {
			return ferror.NewFormat("reserved fixed predictor order %d", order)
		}
		pred = predFixed
	case typ < 32:
		return ferror.NewFormat("reserved subframe type %#06b", typ)
	default:
		order = int(typ&0x1F) + 1
		pred = predLPC
	}

	hasWasted, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	var wasted uint8
	if hasWasted != 0 {
		k, err := br.ReadUnary()
		if err != nil {
			return err
		}
		wasted = uint8(k) + 1
	}

	effectiveBps := bps - wasted
	if wasted >= bps {
		return ferror.NewFormat("wasted bits %d exceeds subframe bit depth %d", wasted, bps)
	}

	switch pred {
	case predConstant:
		if err := decodeConstant(br, effectiveBps, dst); err != nil {
			return err
		}
	case predVerbatim:
		if err := decodeVerbatim(br, effectiveBps, dst); err != nil {
			return err
		}
	case predFixed:
		if err := decodeFixed(br, order, effectiveBps, dst); err != nil {
			return err
		}
	case predLPC:
		if err := decodeLPC(br, order, effectiveBps, dst); err != nil {
			return err
		}
	}

	if wasted > 0 {
		for i := range dst {
			dst[i] <<= wasted
		}
	}
	return nil
}

func decodeConstant(br *bits.Reader, bps uint8, dst []int32) error {
	x, err := br.ReadBits(bps)
	if err != nil {
		return err
	}
	sample := signExtend(x, bps)
	for i := range dst {
		dst[i] = sample
	}
	return nil
}

func decodeVerbatim(br *bits.Reader, bps uint8, dst []int32) error {
	for i := range dst {
		x, err := br.ReadBits(bps)
		if err != nil {
			return err
		}
		dst[i] = signExtend(x, bps)
	}
	return nil
}

func decodeFixed(br *bits.Reader, order int, bps uint8, dst []int32) error {
	if len(dst) < order {
		return ferror.NewFormat("fixed predictor order %d exceeds block size %d", order, len(dst))
	}
	for i := 0; i < order; i++ {
		x, err := br.ReadBits(bps)
		if err != nil {
			return err
		}
		dst[i] = signExtend(x, bps)
	}
	residuals := dst[order:]
	if err := decodeResidual(br, order, residuals); err != nil {
		return err
	}
	predict(fixedCoeffs[order], 0, dst, order)
	return nil
}

func decodeLPC(br *bits.Reader, order int, bps uint8, dst []int32) error {
	if len(dst) < order {
		return ferror.NewFormat("LPC order %d exceeds block size %d", order, len(dst))
	}
	for i := 0; i < order; i++ {
		x, err := br.ReadBits(bps)
		if err != nil {
			return err
		}
		dst[i] = signExtend(x, bps)
	}

	precField, err := br.ReadBits(4)
	if err != nil {
		return err
	}
	if precField == 0xF {
		return ferror.NewFormat("reserved LPC coefficient precision 1111")
	}
	precision := uint8(precField) + 1

	shiftField, err := br.ReadBits(5)
	if err != nil {
		return err
	}
	shift := signExtend(shiftField, 5)
	if shift < 0 {
		return ferror.NewFormat("negative LPC shift is not supported")
	}

	coeffs := make([]int32, order)
	for i := range coeffs {
		x, err := br.ReadBits(precision)
		if err != nil {
			return err
		}
		coeffs[i] = signExtend(x, precision)
	}

	residuals := dst[order:]
	if err := decodeResidual(br, order, residuals); err != nil {
		return err
	}
	predict(coeffs, uint(shift), dst, order)
	return nil
}

// predict fills dst[order:] in place, turning the residuals already stored
// there into reconstructed samples via the FIR predictor defined by coeffs
// and shift, reading warm-up and prior reconstructed samples from dst. The
// running sum is accumulated in int64: at 32 coefficients and 24-bit audio
// the product sum can exceed the range of int32, and silently wrapping it
// would corrupt every sample after the overflow.
func predict(coeffs []int32, shift uint, dst []int32, order int) {
	for i := order; i < len(dst); i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * int64(dst[i-j-1])
		}
		dst[i] = dst[i] + int32(sum>>shift)
	}
}
