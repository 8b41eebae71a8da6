// Package cmd holds the ispctl command line: the shared options and the
// one-shot subcommands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/smazurov/ispctl/internal/aec"
	"github.com/smazurov/ispctl/internal/config"
	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/smazurov/ispctl/internal/topology"
	"github.com/smazurov/ispctl/pkg/linuxav/hotplug"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config  string `doc:"Path to configuration file" short:"c" default:"ispctl.toml"`
	Verbose bool   `doc:"Log debug messages, including every auto exposure step" short:"v" default:"false"`

	// Pipeline settings
	MediaDriver  string `doc:"Driver name of the media controller" default:"dcmipp" toml:"pipeline.media_driver" env:"PIPELINE_MEDIA_DRIVER"`
	IspEntity    string `doc:"ISP sub-device entity" default:"dcmipp_main_isp" toml:"pipeline.isp_entity" env:"PIPELINE_ISP_ENTITY"`
	ParamsEntity string `doc:"Parameters output entity" default:"dcmipp_main_isp_params_output" toml:"pipeline.params_entity" env:"PIPELINE_PARAMS_ENTITY"`
	StatsEntity  string `doc:"Statistics capture entity" default:"dcmipp_main_isp_stat_capture" toml:"pipeline.stats_entity" env:"PIPELINE_STATS_ENTITY"`
	SensorEntity string `doc:"Sensor entity name prefix" default:"imx335" toml:"pipeline.sensor_entity" env:"PIPELINE_SENSOR_ENTITY"`
	WaitDevice   bool   `doc:"Wait for the media device to appear instead of failing" default:"false" toml:"pipeline.wait_device" env:"PIPELINE_WAIT_DEVICE"`

	// ISP settings
	WaitTimeoutMs      int    `doc:"Buffer completion timeout in milliseconds" default:"2000" toml:"isp.wait_timeout_ms" env:"ISP_WAIT_TIMEOUT_MS"`
	StatProfileControl string `doc:"Control id selecting the statistics profile" default:"0x009f090c" toml:"isp.stat_profile_cid" env:"ISP_STAT_PROFILE_CID"`

	// Auto exposure settings
	AecTarget       int `doc:"Luminance target" default:"56" toml:"aec.target" env:"AEC_TARGET"`
	AecTolerance    int `doc:"Accepted distance from the target" default:"15" toml:"aec.tolerance" env:"AEC_TOLERANCE"`
	AecMaxAttempts  int `doc:"Knob updates before giving up" default:"20" toml:"aec.max_attempts" env:"AEC_MAX_ATTEMPTS"`
	AecExposureStep int `doc:"Exposure change per iteration in lines" default:"400" toml:"aec.exposure_step" env:"AEC_EXPOSURE_STEP"`
	AecGainMax      int `doc:"Highest analogue gain in 0.3 dB units" default:"240" toml:"aec.gain_max" env:"AEC_GAIN_MAX"`
	AecExposureMin  int `doc:"Shortest exposure in lines" default:"50" toml:"aec.exposure_min" env:"AEC_EXPOSURE_MIN"`
	AecExposureMax  int `doc:"Longest exposure in lines" default:"4491" toml:"aec.exposure_max" env:"AEC_EXPOSURE_MAX"`

	// Server settings
	Port         string `doc:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AuthUsername string `doc:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `doc:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Tuning and metrics settings
	TuningFile     string `doc:"Tuning presets applied at start and on change" default:"tuning.toml" toml:"tuning.file" env:"TUNING_FILE"`
	MetricsEnabled bool   `doc:"Expose Prometheus metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `doc:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `doc:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingTopology string `doc:"Device discovery logging level" default:"info" toml:"logging.topology" env:"LOGGING_TOPOLOGY"`
	LoggingChannel  string `doc:"Meta channel logging level" default:"info" toml:"logging.channel" env:"LOGGING_CHANNEL"`
	LoggingAec      string `doc:"Auto exposure logging level" default:"info" toml:"logging.aec" env:"LOGGING_AEC"`
	LoggingSession  string `doc:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingApi      string `doc:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingMetrics  string `doc:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
	LoggingHotplug  string `doc:"Hotplug logging level" default:"info" toml:"logging.hotplug" env:"LOGGING_HOTPLUG"`
}

// Load applies the config file and environment to opts and initializes
// logging. Flags set on root keep their value.
func Load(opts *Options, root *cobra.Command) error {
	err := config.LoadConfig(opts, root)
	logging.Initialize(opts.Logging())
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", opts.Config, err)
	}
	return nil
}

// Logging returns the logging configuration. Verbose forces debug on every
// module.
func (o *Options) Logging() logging.Config {
	cfg := logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"topology": o.LoggingTopology,
			"channel":  o.LoggingChannel,
			"aec":      o.LoggingAec,
			"session":  o.LoggingSession,
			"api":      o.LoggingApi,
			"metrics":  o.LoggingMetrics,
			"hotplug":  o.LoggingHotplug,
		},
	}
	if o.Verbose {
		cfg.Level = "debug"
		for module := range cfg.Modules {
			cfg.Modules[module] = "debug"
		}
	}
	return cfg
}

// SessionConfig returns the pipeline binding.
func (o *Options) SessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	cfg.Names = topology.Names{
		Driver: o.MediaDriver,
		ISP:    o.IspEntity,
		Params: o.ParamsEntity,
		Stats:  o.StatsEntity,
		Sensor: o.SensorEntity,
	}
	if o.WaitTimeoutMs > 0 {
		cfg.WaitTimeout = time.Duration(o.WaitTimeoutMs) * time.Millisecond
	}
	if o.StatProfileControl != "" {
		cid, err := strconv.ParseUint(o.StatProfileControl, 0, 32)
		if err != nil {
			return cfg, isp.Errorf(isp.ErrInvalidArgument, "invalid statistics profile control %q", o.StatProfileControl)
		}
		cfg.StatProfileCID = uint32(cid)
	}
	return cfg, nil
}

// AECConfig returns the auto exposure tuning, starting from the sensor
// defaults.
func (o *Options) AECConfig() aec.Config {
	cfg := aec.DefaultConfig()
	cfg.Target = o.AecTarget
	cfg.Tolerance = o.AecTolerance
	cfg.MaxAttempts = o.AecMaxAttempts
	cfg.ExposureStep = o.AecExposureStep
	cfg.GainMax = o.AecGainMax
	cfg.ExposureMin = o.AecExposureMin
	cfg.ExposureMax = o.AecExposureMax
	return cfg
}

// deviceRetryInterval bounds each wait for a media uevent so a device that
// appeared between two discoveries is still picked up.
const deviceRetryInterval = 5 * time.Second

// OpenSession binds the pipeline. With WaitDevice set, a missing pipeline is
// retried every time a media device is added.
func OpenSession(ctx context.Context, opts *Options, bus *events.Bus) (*session.Session, error) {
	cfg, err := opts.SessionConfig()
	if err != nil {
		return nil, err
	}
	return openSession(ctx, cfg, opts.WaitDevice, bus, session.Open, waitForMedia)
}

func openSession(
	ctx context.Context,
	cfg session.Config,
	wait bool,
	bus *events.Bus,
	open func(context.Context, session.Config, *events.Bus) (*session.Session, error),
	waitForDevice func(context.Context) error,
) (*session.Session, error) {
	logger := logging.GetLogger("hotplug")
	for {
		s, err := open(ctx, cfg, bus)
		if err == nil || !wait || !errors.Is(err, isp.ErrNotFound) {
			return s, err
		}

		logger.Info("Pipeline not available, waiting for media device", "driver", cfg.Names.Driver, "error", err)
		if waitErr := waitForDevice(ctx); waitErr != nil {
			return nil, waitErr
		}
	}
}

func waitForMedia(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, deviceRetryInterval)
	defer cancel()

	e, err := hotplug.WaitForMedia(waitCtx)
	switch {
	case err == nil:
		logging.GetLogger("hotplug").Info("Media device added", "device", e.DevName, "kobj", e.KObj)
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil
	default:
		return err
	}
}
