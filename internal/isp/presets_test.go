package isp

import (
	"errors"
	"testing"
)

func TestBuildContrastCurve(t *testing.T) {
	tests := []struct {
		name       string
		profile    ContrastProfile
		wantEnable bool
		wantLum    [9]uint8
	}{
		{name: "none disables the block", profile: ContrastNone},
		{name: "half", profile: ContrastHalf, wantEnable: true, wantLum: [9]uint8{8, 8, 8, 8, 8, 8, 8, 8, 8}},
		{name: "double", profile: ContrastDouble, wantEnable: true, wantLum: [9]uint8{32, 32, 32, 32, 32, 32, 32, 32, 32}},
		{name: "dynamic", profile: ContrastDynamic, wantEnable: true, wantLum: [9]uint8{32, 32, 32, 27, 23, 20, 18, 17, 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildContrastCurve(tt.profile)
			if err != nil {
				t.Fatalf("BuildContrastCurve(%s) unexpected error: %v", tt.profile, err)
			}
			if p.Update != BlockContrast {
				t.Errorf("Update = %s, want CE", p.Update)
			}
			if p.Contrast.Enable != tt.wantEnable {
				t.Errorf("Enable = %v, want %v", p.Contrast.Enable, tt.wantEnable)
			}
			if p.Contrast.Lum != tt.wantLum {
				t.Errorf("Lum = %v, want %v", p.Contrast.Lum, tt.wantLum)
			}
		})
	}

	if _, err := BuildContrastCurve(ContrastProfile(9)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown profile error = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestBuildIlluminantProfile(t *testing.T) {
	tests := []struct {
		name      string
		profile   Illuminant
		wantShift [3]uint8
		wantMult  [3]uint8
		wantRow0  [3]uint16
	}{
		{
			name:      "d50",
			profile:   IlluminantD50,
			wantShift: [3]uint8{1, 0, 0},
			wantMult:  [3]uint8{140, 128, 230},
			wantRow0:  [3]uint16{0x1cd, 0x75b, 0x7da},
		},
		{
			name:      "tl84",
			profile:   IlluminantTL84,
			wantShift: [3]uint8{0, 0, 1},
			wantMult:  [3]uint8{217, 128, 150},
			wantRow0:  [3]uint16{0x18d, 0x74f, 0x021},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildIlluminantProfile(tt.profile)
			if err != nil {
				t.Fatalf("BuildIlluminantProfile(%s) unexpected error: %v", tt.profile, err)
			}
			if want := BlockBlackLevel | BlockExposure | BlockColorConv; p.Update != want {
				t.Errorf("Update = %s, want %s", p.Update, want)
			}
			if p.BlackLevel != (BlackLevel{Enable: true, R: 12, G: 12, B: 12}) {
				t.Errorf("BlackLevel = %+v", p.BlackLevel)
			}
			if !p.Exposure.Enable || p.Exposure.Shift != tt.wantShift || p.Exposure.Mult != tt.wantMult {
				t.Errorf("Exposure = %+v, want shift %v mult %v", p.Exposure, tt.wantShift, tt.wantMult)
			}
			if !p.ColorConv.Enable || p.ColorConv.Clamp != ClampDisabled {
				t.Errorf("ColorConv enable/clamp = %v/%d", p.ColorConv.Enable, p.ColorConv.Clamp)
			}
			if p.ColorConv.Matrix[0] != tt.wantRow0 {
				t.Errorf("Matrix[0] = %#v, want %#v", p.ColorConv.Matrix[0], tt.wantRow0)
			}
			if p.Contrast != (Contrast{}) || p.BadPixel != (BadPixel{}) || p.Demosaic != (Demosaic{}) {
				t.Error("blocks outside the update mask were populated")
			}
		})
	}

	if _, err := BuildIlluminantProfile(Illuminant(7)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown profile error = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestParseSelectors(t *testing.T) {
	tests := []struct {
		name    string
		parse   func(string) (int, error)
		input   string
		want    int
		wantErr bool
	}{
		{name: "contrast by name", parse: contrastInt, input: "Dynamic", want: int(ContrastDynamic)},
		{name: "contrast by number", parse: contrastInt, input: "1", want: int(ContrastHalf)},
		{name: "contrast out of range", parse: contrastInt, input: "4", wantErr: true},
		{name: "illuminant by name", parse: illuminantInt, input: "TL84", want: int(IlluminantTL84)},
		{name: "illuminant by number", parse: illuminantInt, input: "0", want: int(IlluminantD50)},
		{name: "illuminant unknown", parse: illuminantInt, input: "a", wantErr: true},
		{name: "stat profile by name", parse: statInt, input: "average-post", want: int(StatProfileAveragePost)},
		{name: "stat profile by number", parse: statInt, input: "2", want: int(StatProfileBinsPre)},
		{name: "stat profile above average post", parse: statInt, input: "4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("error = %v, want %v", err, ErrInvalidArgument)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func contrastInt(s string) (int, error) {
	c, err := ParseContrast(s)
	return int(c), err
}

func illuminantInt(s string) (int, error) {
	i, err := ParseIlluminant(s)
	return int(i), err
}

func statInt(s string) (int, error) {
	p, err := ParseStatProfile(s)
	return int(p), err
}
