// Package report renders ISP statistics for people: averages, the raw
// cumulative bins and the per-range histogram with percentages.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/ispctl/internal/isp"
)

// BarWidth is the length of a full histogram bar.
const BarWidth = 20

// RangeReport is one histogram interval.
type RangeReport struct {
	Min     int    `json:"min" example:"64"`
	Max     int    `json:"max" example:"127"`
	Count   uint32 `json:"count" example:"1200345"`
	Percent int    `json:"percent" example:"24" doc:"Share of all measured pixels, truncated"`
}

// LocationReport summarizes the statistics of one pipeline location.
type LocationReport struct {
	Average   [3]uint32            `json:"average_rgb" doc:"Average R, G, B"`
	Luminance int                  `json:"luminance" example:"56" doc:"BT.601 luminance of the average"`
	Bins      [isp.BinCount]uint32 `json:"bins" doc:"Cumulative histogram bins"`
	Ranges    []RangeReport        `json:"ranges" doc:"Pixel count per intensity interval"`
	Pixels    uint32               `json:"pixels" example:"5028480" doc:"Total measured pixels"`
}

// Report covers both measurement locations.
type Report struct {
	Pre           LocationReport `json:"pre" doc:"Pre-demosaicing location"`
	Post          LocationReport `json:"post" doc:"Post-demosaicing location"`
	BadPixelCount uint32         `json:"bad_pixel_count" example:"3"`
}

// Build computes the report of a statistics block.
func Build(s isp.Stats) Report {
	return Report{
		Pre:           buildLocation(s.Pre),
		Post:          buildLocation(s.Post),
		BadPixelCount: s.BadPixelCount,
	}
}

func buildLocation(l isp.Location) LocationReport {
	pixels := l.PixelCount()
	ranges := l.Ranges()
	out := LocationReport{
		Average:   l.AverageRGB,
		Luminance: l.Luminance(),
		Bins:      l.Bins,
		Ranges:    make([]RangeReport, 0, len(ranges)),
		Pixels:    pixels,
	}
	for _, r := range ranges {
		out.Ranges = append(out.Ranges, RangeReport{
			Min:     r.Min,
			Max:     r.Max,
			Count:   r.Count,
			Percent: share(r.Count, pixels, 100),
		})
	}
	return out
}

// share returns count*scale/total, or 0 when nothing was measured.
func share(count, total uint32, scale int) int {
	if total == 0 {
		return 0
	}
	return int(uint64(count) * uint64(scale) / uint64(total))
}

// Bar returns the histogram bar of a range: one dash per twentieth of the
// pixels, at least one and at most BarWidth.
func Bar(count, total uint32) string {
	n := share(count, total, BarWidth) + 1
	if n > BarWidth {
		n = BarWidth
	}
	return strings.Repeat("-", n)
}

var binLabels = [isp.BinCount]string{
	"<    4", "<    8", "<   16", "<   32", "<   64", "<  128",
	">= 128", ">= 192", ">= 224", ">= 240", ">= 248", ">= 252",
}

// Write prints both locations.
func Write(w io.Writer, s isp.Stats) error {
	r := Build(s)
	if err := WriteLocation(w, "Pre-demosaicing", r.Pre); err != nil {
		return err
	}
	return WriteLocation(w, "Post-demosaicing", r.Post)
}

// WriteLocation prints the report of one location under title.
func WriteLocation(w io.Writer, title string, l LocationReport) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Location %s\n", title)
	b.WriteString("Average:\n")
	fmt.Fprintf(&b, "    Red             %d\n", l.Average[0])
	fmt.Fprintf(&b, "    Green           %d\n", l.Average[1])
	fmt.Fprintf(&b, "    Blue            %d\n", l.Average[2])
	fmt.Fprintf(&b, "    Lum             %d\n", l.Luminance)

	b.WriteString("\nHistogram (bins):\n")
	for i, label := range binLabels {
		fmt.Fprintf(&b, "    %s      %7d\n", label, l.Bins[i])
	}

	b.WriteString("\nHistogram (range):\n")
	for _, r := range l.Ranges {
		fmt.Fprintf(&b, "    [%3d:%3d]   %7d\t%2d%%   %s\n", r.Min, r.Max, r.Count, r.Percent, Bar(r.Count, l.Pixels))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
