package isp

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// ParamsSize is the wire size of a Params record.
const ParamsSize = 84

// Block is the update bitmask of a Params record.
type Block uint32

// Sub-block bits.
const (
	BlockBadPixel Block = 1 << iota
	BlockBlackLevel
	BlockExposure
	BlockDemosaic
	BlockColorConv
	BlockContrast
)

var blockNames = []struct {
	bit  Block
	name string
}{
	{BlockBadPixel, "BPR"},
	{BlockBlackLevel, "BLC"},
	{BlockExposure, "EX"},
	{BlockDemosaic, "DM"},
	{BlockColorConv, "CC"},
	{BlockContrast, "CE"},
}

// Has reports whether every bit of other is set.
func (b Block) Has(other Block) bool {
	return b&other == other
}

func (b Block) String() string {
	var parts []string
	for _, n := range blockNames {
		if b&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Clamp selects the color-conversion output clamping.
type Clamp uint32

// Clamp modes.
const (
	ClampDisabled Clamp = iota
	ClampY235U240V240
	ClampYUV235
)

// BadPixel configures bad pixel removal.
type BadPixel struct {
	Enable   bool   `json:"enable"`
	Strength uint32 `json:"strength"`
}

// BlackLevel configures per-channel black level correction.
type BlackLevel struct {
	Enable bool  `json:"enable"`
	R      uint8 `json:"r"`
	G      uint8 `json:"g"`
	B      uint8 `json:"b"`
}

// Exposure holds per-channel shift/mantissa pairs in R, G, B order.
type Exposure struct {
	Enable bool     `json:"enable"`
	Shift  [3]uint8 `json:"shift"`
	Mult   [3]uint8 `json:"mult"`
}

// Demosaic holds the demosaicing filter strengths.
type Demosaic struct {
	Edge  uint8 `json:"edge"`
	LineH uint8 `json:"lineh"`
	LineV uint8 `json:"linev"`
	Peak  uint8 `json:"peak"`
}

// ColorConversion is a 3x3 matrix plus per-row offsets in Q8 register format.
type ColorConversion struct {
	Enable bool         `json:"enable"`
	Clamp  Clamp        `json:"clamp"`
	Matrix [3][3]uint16 `json:"matrix"`
	Offset [3]uint16    `json:"offset"`
}

// Contrast is the 9-entry luminance enhancement curve; 16 is neutral.
type Contrast struct {
	Enable bool     `json:"enable"`
	Lum    [9]uint8 `json:"lum"`
}

// Params is one ISP parameter update. A sub-block is only meaningful when its
// bit is set in Update.
type Params struct {
	Update     Block           `json:"update"`
	BadPixel   BadPixel        `json:"bad_pixel"`
	BlackLevel BlackLevel      `json:"black_level"`
	Exposure   Exposure        `json:"exposure"`
	Demosaic   Demosaic        `json:"demosaic"`
	ColorConv  ColorConversion `json:"color_conv"`
	Contrast   Contrast        `json:"contrast"`
}

// paramsWire mirrors struct stm32_dcmipp_params_cfg.
type paramsWire struct {
	Mask        uint32
	BPREnable   uint32
	BPRStrength uint32
	BLCEnable   uint32
	BLC         [3]uint8
	_           uint8
	EXEnable    uint32
	EX          [6]uint8 // shift_r, mult_r, shift_g, mult_g, shift_b, mult_b
	_           [2]uint8
	DM          [4]uint8
	CCEnable    uint32
	CCClamp     uint32
	CC          [12]uint16 // rr rg rb ra gr gg gb ga br bg bb ba
	CEEnable    uint32
	CELum       [9]uint8
	_           [3]uint8
}

// MarshalBinary encodes p in the driver layout.
func (p Params) MarshalBinary() ([]byte, error) {
	w := paramsWire{
		Mask:        uint32(p.Update),
		BPREnable:   boolWord(p.BadPixel.Enable),
		BPRStrength: p.BadPixel.Strength,
		BLCEnable:   boolWord(p.BlackLevel.Enable),
		BLC:         [3]uint8{p.BlackLevel.R, p.BlackLevel.G, p.BlackLevel.B},
		EXEnable:    boolWord(p.Exposure.Enable),
		DM:          [4]uint8{p.Demosaic.Edge, p.Demosaic.LineH, p.Demosaic.LineV, p.Demosaic.Peak},
		CCEnable:    boolWord(p.ColorConv.Enable),
		CCClamp:     uint32(p.ColorConv.Clamp),
		CEEnable:    boolWord(p.Contrast.Enable),
		CELum:       p.Contrast.Lum,
	}
	for c := 0; c < 3; c++ {
		w.EX[2*c] = p.Exposure.Shift[c]
		w.EX[2*c+1] = p.Exposure.Mult[c]
		copy(w.CC[4*c:4*c+3], p.ColorConv.Matrix[c][:])
		w.CC[4*c+3] = p.ColorConv.Offset[c]
	}

	buf := bytes.NewBuffer(make([]byte, 0, ParamsSize))
	if err := binary.Write(buf, binary.NativeEndian, &w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (p *Params) UnmarshalBinary(data []byte) error {
	if len(data) < ParamsSize {
		return Errorf(ErrInvalidArgument, "parameter block is %d bytes, need %d", len(data), ParamsSize)
	}
	var w paramsWire
	if err := binary.Read(bytes.NewReader(data[:ParamsSize]), binary.NativeEndian, &w); err != nil {
		return err
	}

	*p = Params{
		Update:     Block(w.Mask),
		BadPixel:   BadPixel{Enable: w.BPREnable != 0, Strength: w.BPRStrength},
		BlackLevel: BlackLevel{Enable: w.BLCEnable != 0, R: w.BLC[0], G: w.BLC[1], B: w.BLC[2]},
		Exposure:   Exposure{Enable: w.EXEnable != 0},
		Demosaic:   Demosaic{Edge: w.DM[0], LineH: w.DM[1], LineV: w.DM[2], Peak: w.DM[3]},
		ColorConv:  ColorConversion{Enable: w.CCEnable != 0, Clamp: Clamp(w.CCClamp)},
		Contrast:   Contrast{Enable: w.CEEnable != 0, Lum: w.CELum},
	}
	for c := 0; c < 3; c++ {
		p.Exposure.Shift[c] = w.EX[2*c]
		p.Exposure.Mult[c] = w.EX[2*c+1]
		copy(p.ColorConv.Matrix[c][:], w.CC[4*c:4*c+3])
		p.ColorConv.Offset[c] = w.CC[4*c+3]
	}
	return nil
}

// Merge overlays the sub-blocks selected in other.Update onto p.
func (p *Params) Merge(other Params) {
	u := other.Update
	if u.Has(BlockBadPixel) {
		p.BadPixel = other.BadPixel
	}
	if u.Has(BlockBlackLevel) {
		p.BlackLevel = other.BlackLevel
	}
	if u.Has(BlockExposure) {
		p.Exposure = other.Exposure
	}
	if u.Has(BlockDemosaic) {
		p.Demosaic = other.Demosaic
	}
	if u.Has(BlockColorConv) {
		p.ColorConv = other.ColorConv
	}
	if u.Has(BlockContrast) {
		p.Contrast = other.Contrast
	}
	p.Update |= u
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
