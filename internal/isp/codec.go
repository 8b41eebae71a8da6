package isp

import "math"

// MaxExposureGain is the largest multiplier ExposureGainToFixedPoint encodes.
const MaxExposureGain = 255.0

// NeutralContrast is the contrast curve entry that leaves luminance unchanged.
const NeutralContrast = 16

// ExposureGainToFixedPoint splits a non-negative multiplier into a shift and
// an 8-bit mantissa so that multiplier ~= mantissa/128 * 2^shift.
func ExposureGainToFixedPoint(multiplier float64) (shift, mantissa uint8, err error) {
	if math.IsNaN(multiplier) || multiplier < 0 || multiplier > MaxExposureGain {
		return 0, 0, Errorf(ErrInvalidArgument, "exposure multiplier %g outside [0, %g]", multiplier, MaxExposureGain)
	}

	// The ISP tooling computes in single precision.
	f := float32(multiplier)
	var s uint8
	for s = 0; s < 8; s++ {
		if f < 2.0 {
			break
		}
		f /= 2
	}
	return s, uint8(f * 128), nil
}

// ColorMatrixCellToFixedPoint encodes a signed coefficient in the 11-bit
// Q8 register format: 1.0 is 0x100 and negative values are stored as the
// two's complement of their magnitude.
func ColorMatrixCellToFixedPoint(coefficient float64) uint16 {
	t := int16(float32(coefficient) * 256)
	if t < 0 {
		t = ((-t ^ 0x7FF) + 1) & 0x7FF
	}
	return uint16(t)
}

// EncodeExposure builds an enabled Exposure block from R, G, B multipliers.
func EncodeExposure(rgb [3]float64) (Exposure, error) {
	ex := Exposure{Enable: true}
	for c, m := range rgb {
		shift, mant, err := ExposureGainToFixedPoint(m)
		if err != nil {
			return Exposure{}, err
		}
		ex.Shift[c] = shift
		ex.Mult[c] = mant
	}
	return ex, nil
}

// EncodeColorMatrix builds an enabled ColorConversion block with zero offsets.
func EncodeColorMatrix(m [3][3]float64, clamp Clamp) ColorConversion {
	cc := ColorConversion{Enable: true, Clamp: clamp}
	for r := range m {
		for c := range m[r] {
			cc.Matrix[r][c] = ColorMatrixCellToFixedPoint(m[r][c])
		}
	}
	return cc
}
