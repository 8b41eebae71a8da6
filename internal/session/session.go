// Package session binds one DCMIPP ISP pipeline: the resolved device nodes,
// the parameter and statistics meta channels and the sensor controls.
//
// A Session serializes every operation, so at most one of them touches the
// hardware at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/ispctl/internal/aec"
	"github.com/smazurov/ispctl/internal/config"
	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/internal/metachannel"
	"github.com/smazurov/ispctl/internal/sensor"
	"github.com/smazurov/ispctl/internal/topology"
	"github.com/smazurov/ispctl/pkg/linuxav/v4l2"
)

// DefaultStatProfileCID is the IMAGE_PROC control selecting the statistics
// profile on the DCMIPP statistics node.
const DefaultStatProfileCID = v4l2.CIDImageProcBase + 11

// Config describes how to bind the pipeline.
type Config struct {
	Names          topology.Names
	WaitTimeout    time.Duration // per-buffer completion deadline
	StatProfileCID uint32
	Buffers        uint32 // buffers requested per meta channel
}

// DefaultConfig returns the binding of the STM32MP2 main pipe.
func DefaultConfig() Config {
	return Config{
		Names:          topology.DefaultNames(),
		WaitTimeout:    metachannel.DefaultTimeout,
		StatProfileCID: DefaultStatProfileCID,
		Buffers:        1,
	}
}

// Sample is one statistics buffer read back from the ISP.
type Sample struct {
	Profile  isp.StatProfile
	Sequence uint32
	Stats    isp.Stats
}

type metaChannel interface {
	Path() string
	MapBuffers(count uint32) error
	OneShotTransfer(payload []byte) (metachannel.Frame, error)
	ContinuousTransfer(onEach func(metachannel.Frame) error, shouldStop func() bool) error
	SetControl(class, id uint32, value int32) error
	Close() error
}

type sensorControl interface {
	aec.Sensor
	Path() string
	Close() error
}

// backend opens the hardware behind a session.
type backend struct {
	discover    func(ctx context.Context, names topology.Names) (topology.Pipeline, error)
	openChannel func(path string, dir metachannel.Direction, format uint32, timeout time.Duration) (metaChannel, error)
	openSensor  func(path string) (sensorControl, error)
}

func deviceBackend() backend {
	locator := topology.NewLocator()
	return backend{
		discover: locator.Discover,
		openChannel: func(path string, dir metachannel.Direction, format uint32, timeout time.Duration) (metaChannel, error) {
			ch, err := metachannel.Open(path, dir, format, &metachannel.Options{Timeout: timeout})
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		openSensor: func(path string) (sensorControl, error) {
			sn, err := sensor.Open(path)
			if err != nil {
				return nil, err
			}
			return sn, nil
		},
	}
}

// Session is an open pipeline.
type Session struct {
	cfg      Config
	pipeline topology.Pipeline
	params   metaChannel
	stats    metaChannel
	sensor   sensorControl
	bus      *events.Bus
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open discovers the pipeline, opens and maps both meta channels and opens
// the sensor. bus may be nil.
func Open(ctx context.Context, cfg Config, bus *events.Bus) (*Session, error) {
	return open(ctx, cfg, bus, deviceBackend())
}

func open(ctx context.Context, cfg Config, bus *events.Bus, be backend) (*Session, error) {
	if cfg.Buffers == 0 {
		cfg.Buffers = 1
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = metachannel.DefaultTimeout
	}
	if cfg.StatProfileCID == 0 {
		cfg.StatProfileCID = DefaultStatProfileCID
	}

	pipeline, err := be.discover(ctx, cfg.Names)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		pipeline: pipeline,
		bus:      bus,
		logger:   logging.GetLogger("session"),
	}

	if s.params, err = openMapped(be, pipeline.Params, metachannel.Output, metachannel.FormatParams, cfg); err != nil {
		_ = s.release()
		return nil, err
	}
	if s.stats, err = openMapped(be, pipeline.Stats, metachannel.Capture, metachannel.FormatStats, cfg); err != nil {
		_ = s.release()
		return nil, err
	}
	sn, err := be.openSensor(pipeline.Sensor)
	if err != nil {
		_ = s.release()
		return nil, err
	}
	s.sensor = sn

	s.logger.Info("Session opened",
		"params", pipeline.Params,
		"stats", pipeline.Stats,
		"sensor", pipeline.Sensor,
		"format", pipeline.Format.Name,
		"width", pipeline.Format.Width,
		"height", pipeline.Format.Height)
	return s, nil
}

func openMapped(be backend, path string, dir metachannel.Direction, format uint32, cfg Config) (metaChannel, error) {
	ch, err := be.openChannel(path, dir, format, cfg.WaitTimeout)
	if err != nil {
		return nil, err
	}
	if err := ch.MapBuffers(cfg.Buffers); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

// Pipeline returns the resolved device nodes and the ISP input format.
func (s *Session) Pipeline() topology.Pipeline {
	return s.pipeline
}

// ApplyParams sends a parameter block to the ISP.
func (s *Session) ApplyParams(p isp.Params) error {
	return s.locked(func() error { return s.apply(p, "params", "") })
}

// ApplyContrast sends a contrast enhancement preset.
func (s *Session) ApplyContrast(profile isp.ContrastProfile) error {
	p, err := isp.BuildContrastCurve(profile)
	if err != nil {
		return err
	}
	return s.locked(func() error { return s.apply(p, "contrast", profile.String()) })
}

// ApplyIlluminant sends a white balance and color correction preset.
func (s *Session) ApplyIlluminant(profile isp.Illuminant) error {
	p, err := isp.BuildIlluminantProfile(profile)
	if err != nil {
		return err
	}
	return s.locked(func() error { return s.apply(p, "illuminant", profile.String()) })
}

// ApplyTuning sends every preset of a tuning file in one parameter block.
// An empty tuning is a no-op.
func (s *Session) ApplyTuning(t config.Tuning) error {
	p, err := t.Params()
	if err != nil {
		return err
	}
	if p.Update == 0 {
		return nil
	}
	preset := t.Illuminant
	if t.Contrast != "" {
		if preset != "" {
			preset += ","
		}
		preset += t.Contrast
	}
	return s.locked(func() error { return s.apply(p, "tuning", preset) })
}

func (s *Session) apply(p isp.Params, source, preset string) error {
	payload, err := p.MarshalBinary()
	if err != nil {
		return isp.NewError(isp.ErrInvalidArgument, "encode parameters", err)
	}
	if _, err := s.params.OneShotTransfer(payload); err != nil {
		s.transferFailed(s.params, metachannel.Output, err)
		return err
	}

	s.logger.Debug("Parameters applied", "blocks", p.Update, "source", source, "preset", preset)
	s.publish(events.ParamsAppliedEvent{
		Blocks:    p.Update.String(),
		Source:    source,
		Preset:    preset,
		Timestamp: timestamp(),
	})
	return nil
}

// CaptureStats selects profile and reads back one statistics buffer.
func (s *Session) CaptureStats(profile isp.StatProfile) (isp.Stats, error) {
	sample, err := s.Capture(profile)
	return sample.Stats, err
}

// Capture is CaptureStats returning the buffer sequence number as well.
func (s *Session) Capture(profile isp.StatProfile) (Sample, error) {
	var sample Sample
	err := s.locked(func() error {
		var err error
		sample, err = s.capture(profile)
		return err
	})
	return sample, err
}

func (s *Session) capture(profile isp.StatProfile) (Sample, error) {
	if err := s.selectProfile(profile); err != nil {
		return Sample{}, err
	}
	frame, err := s.stats.OneShotTransfer(nil)
	if err != nil {
		s.transferFailed(s.stats, metachannel.Capture, err)
		return Sample{}, err
	}
	return s.decode(profile, frame)
}

// StreamStats streams statistics buffers to onEach until shouldStop reports
// true or an error occurs.
func (s *Session) StreamStats(profile isp.StatProfile, onEach func(Sample) error, shouldStop func() bool) error {
	return s.locked(func() error {
		if err := s.selectProfile(profile); err != nil {
			return err
		}
		err := s.stats.ContinuousTransfer(func(frame metachannel.Frame) error {
			sample, err := s.decode(profile, frame)
			if err != nil {
				return err
			}
			return onEach(sample)
		}, shouldStop)
		var ispErr *isp.Error
		if err != nil && errors.As(err, &ispErr) {
			s.transferFailed(s.stats, metachannel.Capture, err)
		}
		return err
	})
}

func (s *Session) selectProfile(profile isp.StatProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := s.stats.SetControl(v4l2.CtrlClassImageProc, s.cfg.StatProfileCID, int32(profile)); err != nil {
		return fmt.Errorf("failed to select statistics profile %s: %w", profile, err)
	}
	return nil
}

func (s *Session) decode(profile isp.StatProfile, frame metachannel.Frame) (Sample, error) {
	var stats isp.Stats
	if err := stats.UnmarshalBinary(frame.Data); err != nil {
		return Sample{}, err
	}

	sample := Sample{Profile: profile, Sequence: frame.Sequence, Stats: stats}
	s.publish(events.StatsCapturedEvent{
		Profile:       profile.String(),
		Sequence:      frame.Sequence,
		PreAverage:    stats.Pre.AverageRGB,
		PostAverage:   stats.Post.AverageRGB,
		PreLuminance:  stats.Pre.Luminance(),
		PostLuminance: stats.Post.Luminance(),
		BadPixelCount: stats.BadPixelCount,
		Timestamp:     timestamp(),
	})
	return sample, nil
}

// SensorState returns the current sensor knobs.
func (s *Session) SensorState() (gain, exposure int, err error) {
	err = s.locked(func() error {
		if exposure, err = s.sensor.Exposure(); err != nil {
			return err
		}
		gain, err = s.sensor.AnalogGain()
		return err
	})
	return gain, exposure, err
}

// RunAutoExposure runs the AEC loop against the session's sensor and
// statistics channel. Every iteration is published on the bus.
func (s *Session) RunAutoExposure(ctx context.Context, cfg aec.Config) (aec.Result, error) {
	var res aec.Result
	err := s.locked(func() error {
		ctrl := aec.New(cfg, s.sensor, unlockedStats{s}, func(step aec.Step) {
			s.publish(events.ExposureStepEvent{
				Iteration: step.Iteration,
				Attempt:   step.Attempt,
				Luminance: step.Luminance,
				DeltaDb:   step.DeltaDb,
				Knob:      step.Knob.String(),
				Gain:      step.Gain,
				Exposure:  step.Exposure,
				Converged: step.Converged,
				Timestamp: timestamp(),
			})
		})

		var err error
		res, err = ctrl.Run(ctx)

		done := events.AutoExposureDoneEvent{
			Outcome:    res.Outcome.String(),
			Iterations: res.Iterations,
			Attempts:   res.Attempts,
			Gain:       res.Gain,
			Exposure:   res.Exposure,
			Luminance:  res.Luminance,
			Timestamp:  timestamp(),
		}
		if err != nil {
			done.Outcome = ""
			done.Error = err.Error()
		}
		s.publish(done)
		return err
	})
	return res, err
}

// unlockedStats feeds the AEC loop while the session lock is already held.
type unlockedStats struct {
	s *Session
}

func (u unlockedStats) CaptureStats(profile isp.StatProfile) (isp.Stats, error) {
	sample, err := u.s.capture(profile)
	return sample.Stats, err
}

// Close releases both channels and the sensor. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.release()
	s.logger.Info("Session closed")
	return err
}

func (s *Session) release() error {
	var errs []error
	if s.params != nil {
		errs = append(errs, s.params.Close())
	}
	if s.stats != nil {
		errs = append(errs, s.stats.Close())
	}
	if s.sensor != nil {
		errs = append(errs, s.sensor.Close())
	}
	return errors.Join(errs...)
}

func (s *Session) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return isp.Errorf(isp.ErrInvalidArgument, "session closed")
	}
	return fn()
}

func (s *Session) transferFailed(ch metaChannel, dir metachannel.Direction, err error) {
	s.logger.Warn("Meta transfer failed", "node", ch.Path(), "direction", dir, "error", err)
	s.publish(events.TransferErrorEvent{
		Node:      ch.Path(),
		Direction: dir.String(),
		Code:      string(isp.CodeOf(err)),
		Error:     err.Error(),
		Timestamp: timestamp(),
	})
}

func (s *Session) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
