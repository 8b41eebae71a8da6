package isp

import (
	"strconv"
	"strings"
)

// ContrastProfile selects a contrast enhancement preset.
type ContrastProfile int

// Contrast presets.
const (
	ContrastNone ContrastProfile = iota
	ContrastHalf
	ContrastDouble
	ContrastDynamic
)

var contrastNames = []string{"none", "half", "double", "dynamic"}

func (c ContrastProfile) String() string {
	if c >= 0 && int(c) < len(contrastNames) {
		return contrastNames[c]
	}
	return "unknown"
}

var dynamicCurve = [9]uint8{32, 32, 32, 27, 23, 20, 18, 17, 16}

// BuildContrastCurve returns a Params record carrying only the contrast
// block. ContrastNone disables the block.
func BuildContrastCurve(profile ContrastProfile) (Params, error) {
	p := Params{Update: BlockContrast}
	switch profile {
	case ContrastNone:
	case ContrastHalf:
		p.Contrast = Contrast{Enable: true, Lum: fill9(8)}
	case ContrastDouble:
		p.Contrast = Contrast{Enable: true, Lum: fill9(32)}
	case ContrastDynamic:
		p.Contrast = Contrast{Enable: true, Lum: dynamicCurve}
	default:
		return Params{}, Errorf(ErrInvalidArgument, "unknown contrast profile %d", profile)
	}
	return p, nil
}

// ParseContrast accepts a preset name or its numeric selector.
func ParseContrast(s string) (ContrastProfile, error) {
	idx, err := parseSelector(s, contrastNames)
	if err != nil {
		return 0, Errorf(ErrInvalidArgument, "unknown contrast profile %q", s)
	}
	return ContrastProfile(idx), nil
}

// Illuminant selects a white balance and color correction profile.
type Illuminant int

// Illuminant profiles.
const (
	IlluminantD50 Illuminant = iota
	IlluminantTL84
)

var illuminantNames = []string{"d50", "tl84"}

func (i Illuminant) String() string {
	if i >= 0 && int(i) < len(illuminantNames) {
		return illuminantNames[i]
	}
	return "unknown"
}

type illuminantTuning struct {
	exposure [3]float64
	matrix   [3][3]float64
}

var illuminantTunings = map[Illuminant]illuminantTuning{
	IlluminantD50: {
		exposure: [3]float64{2.2, 1.0, 1.8},
		matrix: [3][3]float64{
			{1.8008, -0.6484, -0.1523},
			{-0.3555, 1.6992, -0.3438},
			{0.0977, -0.957, 1.8594},
		},
	},
	IlluminantTL84: {
		exposure: [3]float64{1.7, 1.0, 2.35},
		matrix: [3][3]float64{
			{1.551345, -0.6937, 0.13106},
			{-0.38671, 1.676898, -0.33936},
			{0.055462, -0.6677, 1.599442},
		},
	},
}

// SensorBlackLevel is the black level of the IMX335 on every channel.
const SensorBlackLevel = 12

// BuildIlluminantProfile returns a Params record with black level, exposure
// and color conversion blocks tuned for the given light source.
func BuildIlluminantProfile(profile Illuminant) (Params, error) {
	tuning, ok := illuminantTunings[profile]
	if !ok {
		return Params{}, Errorf(ErrInvalidArgument, "unknown illuminant profile %d", profile)
	}

	ex, err := EncodeExposure(tuning.exposure)
	if err != nil {
		return Params{}, err
	}

	return Params{
		Update: BlockBlackLevel | BlockExposure | BlockColorConv,
		BlackLevel: BlackLevel{
			Enable: true,
			R:      SensorBlackLevel,
			G:      SensorBlackLevel,
			B:      SensorBlackLevel,
		},
		Exposure:  ex,
		ColorConv: EncodeColorMatrix(tuning.matrix, ClampDisabled),
	}, nil
}

// ParseIlluminant accepts a profile name or its numeric selector.
func ParseIlluminant(s string) (Illuminant, error) {
	idx, err := parseSelector(s, illuminantNames)
	if err != nil {
		return 0, Errorf(ErrInvalidArgument, "unknown illuminant profile %q", s)
	}
	return Illuminant(idx), nil
}

// ParseStatProfile accepts a profile name or its numeric selector.
func ParseStatProfile(s string) (StatProfile, error) {
	for p, name := range statProfileNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, Errorf(ErrInvalidArgument, "unknown statistics profile %q", s)
	}
	p := StatProfile(n)
	return p, p.Validate()
}

func parseSelector(s string, names []string) (int, error) {
	s = strings.TrimSpace(s)
	for i, name := range names {
		if strings.EqualFold(s, name) {
			return i, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= len(names) {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func fill9(v uint8) [9]uint8 {
	var out [9]uint8
	for i := range out {
		out[i] = v
	}
	return out
}
