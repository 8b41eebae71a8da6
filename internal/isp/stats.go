package isp

import (
	"bytes"
	"encoding/binary"
)

// StatsSize is the wire size of a Stats record.
const StatsSize = 124

// BinCount is the number of cumulative histogram bins per location.
const BinCount = 12

// BinThresholds lists the intensity threshold of each cumulative bin. The
// first six count pixels below the threshold, the last six count pixels at
// or above it.
var BinThresholds = [BinCount]int{4, 8, 16, 32, 64, 128, 128, 192, 224, 240, 248, 252}

// Location holds the measurements taken at one point of the pipeline.
type Location struct {
	AverageRGB [3]uint32        `json:"average_rgb"`
	Bins       [BinCount]uint32 `json:"bins"`
}

// Stats mirrors struct stm32_dcmipp_stat_buf.
type Stats struct {
	Pre           Location `json:"pre"`
	Post          Location `json:"post"`
	BadPixelCount uint32   `json:"bad_pixel_count"`
}

// UnmarshalBinary decodes a statistics buffer.
func (s *Stats) UnmarshalBinary(data []byte) error {
	if len(data) < StatsSize {
		return Errorf(ErrIO, "statistics buffer is %d bytes, need %d", len(data), StatsSize)
	}
	return binary.Read(bytes.NewReader(data[:StatsSize]), binary.NativeEndian, s)
}

// MarshalBinary encodes s in the driver layout.
func (s Stats) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, StatsSize))
	if err := binary.Write(buf, binary.NativeEndian, &s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Luminance returns the BT.601 luma of an RGB triplet, truncated toward zero.
func Luminance(rgb [3]uint32) int {
	return int(float64(rgb[0])*0.299 + float64(rgb[1])*0.587 + float64(rgb[2])*0.114)
}

// Luminance returns the BT.601 luma of the location's average color.
func (l Location) Luminance() int {
	return Luminance(l.AverageRGB)
}

// Range is the number of pixels whose intensity falls in [Min, Max].
type Range struct {
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count uint32 `json:"count"`
}

// Ranges converts the cumulative bins into per-interval pixel counts.
func (l Location) Ranges() [BinCount]Range {
	b := l.Bins
	return [BinCount]Range{
		{0, 3, b[0]},
		{4, 7, b[1] - b[0]},
		{8, 15, b[2] - b[1]},
		{16, 31, b[3] - b[2]},
		{32, 63, b[4] - b[3]},
		{64, 127, b[5] - b[4]},
		{128, 191, b[6] - b[7]},
		{192, 223, b[7] - b[8]},
		{224, 239, b[8] - b[9]},
		{240, 247, b[9] - b[10]},
		{248, 251, b[10] - b[11]},
		{252, 255, b[11]},
	}
}

// PixelCount is the total number of measured pixels.
func (l Location) PixelCount() uint32 {
	return l.Bins[5] + l.Bins[6]
}

// StatProfile selects what the statistics engine measures.
type StatProfile int32

// Statistics profiles.
const (
	StatProfileFull StatProfile = iota
	StatProfileAveragePre
	StatProfileBinsPre
	StatProfileAveragePost
)

var statProfileNames = map[StatProfile]string{
	StatProfileFull:        "full",
	StatProfileAveragePre:  "average-pre",
	StatProfileBinsPre:     "bins-pre",
	StatProfileAveragePost: "average-post",
}

func (p StatProfile) String() string {
	if name, ok := statProfileNames[p]; ok {
		return name
	}
	return "unknown"
}

// Validate rejects profiles the driver does not know.
func (p StatProfile) Validate() error {
	if p < StatProfileFull || p > StatProfileAveragePost {
		return Errorf(ErrInvalidArgument, "invalid statistics profile %d", p)
	}
	return nil
}
