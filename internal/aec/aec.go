// Package aec converges the sensor brightness to a luminance target by
// driving analogue gain and exposure from ISP post-demosaicing statistics.
//
// Each iteration measures the average luminance, and when it lies outside
// the tolerance band moves one knob. Exposure moves in fixed steps and is
// locked once it would reverse direction; gain moves in dB proportionally to
// the error. Exposure is raised until it saturates before gain is raised, and
// gain is lowered until it reaches its floor before exposure is lowered.
//
// No delay is inserted between a knob change and the next capture: reading
// back statistics takes longer than the two frames the sensor needs to
// settle.
package aec

import (
	"context"
	"log/slog"

	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
)

// Config tunes the control loop.
type Config struct {
	Target        int     // luminance target after the ISP, before gamma
	Tolerance     int     // accepted distance from Target
	Coefficient   float64 // dB of gain per luminance unit of error
	MaxUpdateDb   float64 // largest gain change per iteration
	ExposureStep  int     // exposure change per iteration
	MaxAttempts   int     // knob updates before giving up
	GainMin       int     // hardware units
	GainMax       int     // hardware units
	GainDbPerUnit float64 // dB per gain unit
	ExposureMin   int
	ExposureMax   int
}

// DefaultConfig returns the tuning for the IMX335 sensor.
func DefaultConfig() Config {
	return Config{
		Target:        56,
		Tolerance:     15,
		Coefficient:   0.1,
		MaxUpdateDb:   5,
		ExposureStep:  400,
		MaxAttempts:   20,
		GainMin:       0,
		GainMax:       240,
		GainDbPerUnit: 0.3,
		ExposureMin:   50,
		ExposureMax:   4491,
	}
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Tolerance < 0:
		return isp.Errorf(isp.ErrInvalidArgument, "aec tolerance must not be negative")
	case c.Coefficient <= 0 || c.MaxUpdateDb <= 0:
		return isp.Errorf(isp.ErrInvalidArgument, "aec coefficient and max update must be positive")
	case c.ExposureStep <= 0:
		return isp.Errorf(isp.ErrInvalidArgument, "aec exposure step must be positive")
	case c.MaxAttempts <= 0:
		return isp.Errorf(isp.ErrInvalidArgument, "aec max attempts must be positive")
	case c.GainDbPerUnit <= 0 || c.GainMin > c.GainMax:
		return isp.Errorf(isp.ErrInvalidArgument, "aec gain range [%d,%d] @ %g dB is invalid", c.GainMin, c.GainMax, c.GainDbPerUnit)
	case c.ExposureMin > c.ExposureMax:
		return isp.Errorf(isp.ErrInvalidArgument, "aec exposure range [%d,%d] is invalid", c.ExposureMin, c.ExposureMax)
	}
	return nil
}

// Sensor is the knob surface of the camera sensor.
type Sensor interface {
	Exposure() (int, error)
	SetExposure(exposure int) error
	AnalogGain() (int, error)
	SetAnalogGain(gain int) error
}

// StatsSource captures one statistics sample with the given profile.
type StatsSource interface {
	CaptureStats(profile isp.StatProfile) (isp.Stats, error)
}

// Knob is the sensor control the loop currently moves.
type Knob int

// Knobs.
const (
	KnobGain Knob = iota
	KnobExposure
)

func (k Knob) String() string {
	if k == KnobExposure {
		return "exposure"
	}
	return "gain"
}

// Direction is the way exposure last moved.
type Direction int

// Directions.
const (
	DirectionNone Direction = iota
	DirectionIncrease
	DirectionDecrease
)

// State is the loop state. It lives for one Run.
type State struct {
	Gain          int
	GainDb        float64
	Exposure      int
	Knob          Knob
	LastDirection Direction
	Attempt       int
}

// Outcome tells why the loop stopped.
type Outcome int

// Outcomes.
const (
	Converged Outcome = iota
	LimitReached
	MaxAttempts
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case LimitReached:
		return "limit_reached"
	case MaxAttempts:
		return "max_attempts"
	default:
		return "unknown"
	}
}

// Step describes one iteration: the luminance measured and the knob values
// after the update.
type Step struct {
	Iteration int
	Attempt   int
	Luminance int
	DeltaDb   float64
	Knob      Knob
	Gain      int
	Exposure  int
	Converged bool
}

// Result is the final state of a Run.
type Result struct {
	Outcome    Outcome `json:"outcome" doc:"Why the loop stopped"`
	Iterations int     `json:"iterations" doc:"Statistics samples taken"`
	Attempts   int     `json:"attempts" doc:"Knob updates pushed to the sensor"`
	Gain       int     `json:"gain" doc:"Analogue gain in 0.3 dB units"`
	Exposure   int     `json:"exposure" doc:"Exposure in sensor lines"`
	Luminance  int     `json:"luminance" doc:"Last measured average luminance"`
}

// Controller runs the convergence loop against one sensor. When the gain
// update clamps at GainMin, the accumulated dB value is reset to the clamped
// register value rather than carried below the floor, so a later climb out of
// the floor starts from GainMin.
type Controller struct {
	cfg      Config
	sensor   Sensor
	stats    StatsSource
	observer func(Step)
	logger   *slog.Logger
}

// New creates a controller. observer may be nil.
func New(cfg Config, sensor Sensor, stats StatsSource, observer func(Step)) *Controller {
	return &Controller{
		cfg:      cfg,
		sensor:   sensor,
		stats:    stats,
		observer: observer,
		logger:   logging.GetLogger("aec"),
	}
}

// Run reads the current knobs and iterates until the luminance converges, a
// knob limit is reached, or the attempt ceiling is hit. The first error
// aborts the loop; knob values already pushed are kept.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return Result{}, err
	}

	st, err := c.initialState()
	if err != nil {
		return Result{}, err
	}
	c.logger.Debug("AEC started", "gain", st.Gain, "exposure", st.Exposure, "knob", st.Knob)

	res := Result{Gain: st.Gain, Exposure: st.Exposure}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		stats, err := c.stats.CaptureStats(isp.StatProfileAveragePost)
		if err != nil {
			return res, err
		}
		res.Iterations++
		res.Luminance = stats.Post.Luminance()

		diff := c.cfg.Target - res.Luminance
		if abs(diff) <= c.cfg.Tolerance {
			res.Outcome = Converged
			c.emit(Step{
				Iteration: res.Iterations,
				Attempt:   st.Attempt,
				Luminance: res.Luminance,
				Knob:      st.Knob,
				Gain:      st.Gain,
				Exposure:  st.Exposure,
				Converged: true,
			})
			break
		}

		delta := clamp(float64(diff)*c.cfg.Coefficient, -c.cfg.MaxUpdateDb, c.cfg.MaxUpdateDb)
		knob := st.Knob
		var limit bool
		if st.Knob == KnobGain {
			limit, err = c.updateGain(&st, delta)
		} else {
			limit, err = c.updateExposure(&st, delta)
		}
		if err != nil {
			return res, err
		}
		st.Attempt++
		res.Attempts, res.Gain, res.Exposure = st.Attempt, st.Gain, st.Exposure

		c.logger.Debug("AEC attempt",
			"attempt", st.Attempt, "luminance", res.Luminance, "delta_db", delta,
			"knob", knob, "gain", st.Gain, "exposure", st.Exposure)
		c.emit(Step{
			Iteration: res.Iterations,
			Attempt:   st.Attempt,
			Luminance: res.Luminance,
			DeltaDb:   delta,
			Knob:      knob,
			Gain:      st.Gain,
			Exposure:  st.Exposure,
		})

		if limit {
			res.Outcome = LimitReached
			break
		}
		if st.Attempt == c.cfg.MaxAttempts {
			res.Outcome = MaxAttempts
			break
		}
	}

	res.Attempts, res.Gain, res.Exposure = st.Attempt, st.Gain, st.Exposure
	c.logger.Info("AEC finished", "outcome", res.Outcome, "attempts", res.Attempts,
		"luminance", res.Luminance, "gain", res.Gain, "exposure", res.Exposure)
	return res, nil
}

func (c *Controller) initialState() (State, error) {
	exposure, err := c.sensor.Exposure()
	if err != nil {
		return State{}, err
	}
	gain, err := c.sensor.AnalogGain()
	if err != nil {
		return State{}, err
	}

	// Gain is expected to sit at its floor unless exposure is saturated.
	knob := KnobExposure
	if exposure == c.cfg.ExposureMax {
		knob = KnobGain
	}
	return State{
		Gain:     gain,
		GainDb:   float64(gain) * c.cfg.GainDbPerUnit,
		Exposure: exposure,
		Knob:     knob,
	}, nil
}

func (c *Controller) updateGain(st *State, delta float64) (bool, error) {
	limit := false
	st.GainDb += delta
	st.Gain = int(st.GainDb / c.cfg.GainDbPerUnit)

	switch {
	case st.Gain < c.cfg.GainMin:
		st.Gain = c.cfg.GainMin
		st.GainDb = float64(st.Gain) * c.cfg.GainDbPerUnit
		st.Knob = KnobExposure
	case st.Gain > c.cfg.GainMax:
		st.Gain = c.cfg.GainMax
		st.GainDb = float64(st.Gain) * c.cfg.GainDbPerUnit
		limit = true
	}

	if err := c.sensor.SetAnalogGain(st.Gain); err != nil {
		return limit, err
	}
	return limit, nil
}

func (c *Controller) updateExposure(st *State, delta float64) (bool, error) {
	limit := false
	if delta < 0 {
		if st.LastDirection == DirectionIncrease {
			limit = true
		} else {
			st.Exposure -= c.cfg.ExposureStep
			st.LastDirection = DirectionDecrease
			if st.Exposure < c.cfg.ExposureMin {
				st.Exposure = c.cfg.ExposureMin
				limit = true
			}
		}
	} else {
		if st.LastDirection == DirectionDecrease {
			limit = true
		} else {
			st.Exposure += c.cfg.ExposureStep
			st.LastDirection = DirectionIncrease
			if st.Exposure > c.cfg.ExposureMax {
				st.Exposure = c.cfg.ExposureMax
				st.Knob = KnobGain
			}
		}
	}

	if err := c.sensor.SetExposure(st.Exposure); err != nil {
		return limit, err
	}
	return limit, nil
}

func (c *Controller) emit(s Step) {
	if c.observer != nil {
		c.observer(s)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
