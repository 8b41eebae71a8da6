// Package sensor reads and writes the exposure and analogue gain controls of
// the camera sensor sub-device.
package sensor

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// Controls is the control surface of a sub-device. *v4l2.Device implements it.
type Controls interface {
	Control(id uint32) (int32, error)
	SetControl(id uint32, value int32) error
	ExtControl(class, id uint32) (int32, error)
	SetExtControl(class, id uint32, value int32) error
	Close() error
}

// Sensor drives exposure through V4L2_CID_EXPOSURE and analogue gain through
// the IMAGE_SOURCE class V4L2_CID_ANALOGUE_GAIN control.
type Sensor struct {
	path   string
	ctrls  Controls
	logger *slog.Logger
}

// Open opens the sensor sub-device at path.
func Open(path string) (*Sensor, error) {
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, isp.NewError(isp.ErrIO, "open sensor "+path, err)
	}
	return New(path, dev), nil
}

// New wraps an already opened control surface.
func New(path string, ctrls Controls) *Sensor {
	return &Sensor{
		path:   path,
		ctrls:  ctrls,
		logger: logging.GetLogger("sensor").With("node", path),
	}
}

// Path returns the sub-device node.
func (s *Sensor) Path() string {
	return s.path
}

// Exposure returns the current exposure in sensor lines.
func (s *Sensor) Exposure() (int, error) {
	v, err := s.ctrls.Control(v4l2.CIDExposure)
	if err != nil {
		return 0, isp.FromDriver("get sensor exposure", err)
	}
	return int(v), nil
}

// SetExposure writes the exposure.
func (s *Sensor) SetExposure(exposure int) error {
	if err := s.ctrls.SetControl(v4l2.CIDExposure, int32(exposure)); err != nil {
		return isp.FromDriver(fmt.Sprintf("set sensor exposure %d", exposure), err)
	}
	s.logger.Debug("Exposure set", "exposure", exposure)
	return nil
}

// AnalogGain returns the analogue gain in 0.3 dB units.
func (s *Sensor) AnalogGain() (int, error) {
	v, err := s.ctrls.ExtControl(v4l2.CtrlClassImageSource, v4l2.CIDAnalogueGain)
	if err != nil {
		return 0, isp.FromDriver("get sensor gain", err)
	}
	return int(v), nil
}

// SetAnalogGain writes the analogue gain in 0.3 dB units.
func (s *Sensor) SetAnalogGain(gain int) error {
	if err := s.ctrls.SetExtControl(v4l2.CtrlClassImageSource, v4l2.CIDAnalogueGain, int32(gain)); err != nil {
		return isp.FromDriver(fmt.Sprintf("set sensor gain %d", gain), err)
	}
	s.logger.Debug("Gain set", "gain", gain)
	return nil
}

// Close releases the sub-device.
func (s *Sensor) Close() error {
	return s.ctrls.Close()
}
