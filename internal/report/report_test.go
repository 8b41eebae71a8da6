package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smazurov/ispctl/internal/isp"
)

// 1000 pixels: 100 below 4, 300 in [64,127], 400 in [128,191], 200 at 252+.
var sampleLocation = isp.Location{
	AverageRGB: [3]uint32{100, 120, 90},
	Bins:       [isp.BinCount]uint32{100, 100, 100, 100, 100, 400, 600, 200, 200, 200, 200, 200},
}

func TestBuildRanges(t *testing.T) {
	r := Build(isp.Stats{Pre: sampleLocation, BadPixelCount: 7})

	if r.Pre.Pixels != 1000 {
		t.Fatalf("Pixels = %d, want 1000", r.Pre.Pixels)
	}
	if r.BadPixelCount != 7 {
		t.Errorf("BadPixelCount = %d, want 7", r.BadPixelCount)
	}

	tests := []struct {
		index   int
		min     int
		max     int
		count   uint32
		percent int
	}{
		{0, 0, 3, 100, 10},
		{1, 4, 7, 0, 0},
		{5, 64, 127, 300, 30},
		{6, 128, 191, 400, 40},
		{7, 192, 223, 0, 0},
		{11, 252, 255, 200, 20},
	}
	for _, tt := range tests {
		got := r.Pre.Ranges[tt.index]
		if got.Min != tt.min || got.Max != tt.max || got.Count != tt.count || got.Percent != tt.percent {
			t.Errorf("range %d = %+v, want [%d:%d] %d %d%%", tt.index, got, tt.min, tt.max, tt.count, tt.percent)
		}
	}

	var sum uint32
	for _, rr := range r.Pre.Ranges {
		sum += rr.Count
	}
	if sum != r.Pre.Pixels {
		t.Errorf("ranges sum to %d, want %d", sum, r.Pre.Pixels)
	}
}

func TestBuildEmptyLocation(t *testing.T) {
	r := Build(isp.Stats{})
	for _, rr := range r.Post.Ranges {
		if rr.Percent != 0 {
			t.Errorf("range %+v has a percentage without pixels", rr)
		}
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		count, total uint32
		want         int
	}{
		{0, 1000, 1},
		{49, 1000, 1},
		{50, 1000, 2},
		{400, 1000, 9},
		{950, 1000, 20},
		{1000, 1000, 20},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := len(Bar(tt.count, tt.total)); got != tt.want {
			t.Errorf("Bar(%d, %d) has %d dashes, want %d", tt.count, tt.total, got, tt.want)
		}
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, isp.Stats{Pre: sampleLocation, Post: sampleLocation}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Location Pre-demosaicing\n",
		"Location Post-demosaicing\n",
		"    Green           120\n",
		"    Lum             110\n",
		"    >= 128          600\n",
		"    [128:191]       400\t40%   ---------\n",
		"    [  0:  3]       100\t10%   ---\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if n := strings.Count(out, "Histogram (range):"); n != 2 {
		t.Errorf("found %d range sections, want 2", n)
	}
}
