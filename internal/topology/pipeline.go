package topology

import (
	"context"
	"fmt"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// Media bus codes used to classify the ISP input.
const (
	mbusRGB565LE   = 0x1008
	mbusRGB888     = 0x100a
	mbusUYVY8      = 0x2006
	mbusYVYU8      = 0x2009
	mbusYUV8       = 0x2025
	mbusBayerFirst = 0x3001
	mbusBayerLast  = 0x3020
)

// ActiveFormat is the ISP input format and compose size.
type ActiveFormat struct {
	Code   uint32 `json:"code" doc:"Media bus code of the ISP sink pad"`
	Name   string `json:"name" example:"Raw Bayer" doc:"Human readable format family"`
	Width  uint32 `json:"width" example:"2592"`
	Height uint32 `json:"height" example:"1940"`
}

// FormatName classifies a media bus code.
func FormatName(code uint32) string {
	switch {
	case code >= mbusBayerFirst && code <= mbusBayerLast:
		return "Raw Bayer"
	case code == mbusRGB565LE:
		return "RGB565"
	case code == mbusRGB888:
		return "RGB888"
	case code == mbusYUV8:
		return "YUV 420"
	case code >= mbusUYVY8 && code <= mbusYVYU8:
		return "YUV 422"
	default:
		return fmt.Sprintf("Format = 0x%x", code)
	}
}

// QueryActiveFormat reads the active pad 0 format and compose rectangle of
// the ISP sub-device.
func (l *Locator) QueryActiveFormat(ispPath string) (ActiveFormat, error) {
	dev, err := l.openSubdev(ispPath)
	if err != nil {
		return ActiveFormat{}, isp.NewError(isp.ErrIO, "open isp subdev "+ispPath, err)
	}
	defer dev.Close()

	format, err := dev.SubdevFormat(0)
	if err != nil {
		return ActiveFormat{}, isp.NewError(isp.ErrIO, "get isp format", err)
	}
	sel, err := dev.SubdevSelection(0, v4l2.SelTgtCompose)
	if err != nil {
		return ActiveFormat{}, isp.NewError(isp.ErrIO, "get isp compose selection", err)
	}

	return ActiveFormat{
		Code:   format.Code,
		Name:   FormatName(format.Code),
		Width:  sel.Width,
		Height: sel.Height,
	}, nil
}

// Names lists the graph entities that make up the pipeline.
type Names struct {
	Driver string
	ISP    string
	Params string
	Stats  string
	Sensor string
}

// DefaultNames returns the entity names of the STM32MP2 DCMIPP main pipe.
func DefaultNames() Names {
	return Names{
		Driver: "dcmipp",
		ISP:    "dcmipp_main_isp",
		Params: "dcmipp_main_isp_params_output",
		Stats:  "dcmipp_main_isp_stat_capture",
		Sensor: "imx335",
	}
}

// Pipeline holds the resolved device nodes of one ISP pipe.
type Pipeline struct {
	Media  string       `json:"media" example:"/dev/media0"`
	ISP    string       `json:"isp" example:"/dev/v4l-subdev3"`
	Params string       `json:"params" example:"/dev/video4"`
	Stats  string       `json:"stats" example:"/dev/video3"`
	Sensor string       `json:"sensor" example:"/dev/v4l-subdev5"`
	Format ActiveFormat `json:"format"`
}

// Discover resolves every node of the pipeline. The sensor is matched by
// prefix since its entity name carries the bus address.
func (l *Locator) Discover(ctx context.Context, names Names) (Pipeline, error) {
	var p Pipeline
	var err error

	if p.Media, err = l.DiscoverMediaDevice(names.Driver); err != nil {
		return p, err
	}

	steps := []struct {
		dst   *string
		name  string
		kind  Kind
		match Match
	}{
		{&p.ISP, names.ISP, KindSubdev, MatchExact},
		{&p.Params, names.Params, KindVideo, MatchExact},
		{&p.Stats, names.Stats, KindVideo, MatchExact},
		{&p.Sensor, names.Sensor, KindSubdev, MatchPrefix},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if *s.dst, err = l.ResolveEntity(p.Media, s.name, s.kind, s.match); err != nil {
			return p, err
		}
	}

	if p.Format, err = l.QueryActiveFormat(p.ISP); err != nil {
		return p, err
	}

	l.logger.Info("Pipeline discovered",
		"media", p.Media,
		"isp", p.ISP,
		"params", p.Params,
		"stats", p.Stats,
		"sensor", p.Sensor,
		"format", p.Format.Name,
		"width", p.Format.Width,
		"height", p.Format.Height)
	return p, nil
}
