package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/smazurov/ispctl/cmd"
	"github.com/smazurov/ispctl/internal/api"
	"github.com/smazurov/ispctl/internal/config"
	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/internal/metrics"
	"github.com/smazurov/ispctl/internal/metrics/collectors"
	"github.com/smazurov/ispctl/internal/metrics/exporters"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/smazurov/ispctl/internal/systemd"
)

// daemon owns the long running components of the default command.
type daemon struct {
	opts     *cmd.Options
	bus      *events.Bus
	notifier *systemd.Notifier
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	session   *session.Session
	watcher   *config.Watcher[config.Tuning]
	collector *collectors.BusCollector
	exporter  *exporters.SSEExporter
	server    *api.Server
}

func newDaemon(opts *cmd.Options) *daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &daemon{
		opts:     opts,
		bus:      events.New(),
		notifier: systemd.NewNotifier(),
		logger:   logging.GetLogger("main"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// run binds the pipeline and serves the API until stop is called.
func (d *daemon) run() {
	if err := d.notifier.Status("binding ISP pipeline"); err != nil {
		d.logger.Warn("Failed to notify systemd", "error", err)
	}

	s, err := cmd.OpenSession(d.ctx, d.opts, d.bus)
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		d.logger.Error("Failed to open ISP pipeline", "error", err)
		os.Exit(1)
	}

	d.mu.Lock()
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		_ = s.Close()
		return
	}
	d.session = s
	if d.opts.MetricsEnabled {
		d.collector = collectors.NewBusCollector(d.bus)
		d.collector.Start()
		d.exporter = exporters.NewSSEExporter(d.bus)
		d.exporter.Start(d.ctx)
	}
	d.loadTuning()
	d.server = d.newServer()
	server := d.server
	d.mu.Unlock()

	if gain, exposure, stateErr := s.SensorState(); stateErr == nil {
		metrics.RecordSensor(gain, exposure)
	}

	if err := d.notifier.Ready(); err != nil {
		d.logger.Warn("Failed to notify systemd", "error", err)
	}

	d.logger.Info("Starting HTTP server", "port", d.opts.Port)
	if startErr := server.Start(d.opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
		d.logger.Error("Failed to start HTTP server", "error", startErr)
		os.Exit(1)
	}
}

func (d *daemon) newServer() *api.Server {
	apiOpts := &api.Options{
		AuthUsername: d.opts.AuthUsername,
		AuthPassword: d.opts.AuthPassword,
		ISP:          d.session,
		EventBus:     d.bus,
		AEC:          d.opts.AECConfig(),
		TuningPath:   d.opts.TuningFile,
	}
	if d.watcher != nil {
		apiOpts.TuningSaved = d.watcher.Acknowledge
	}
	if d.opts.MetricsEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	return api.NewServer(apiOpts)
}

// loadTuning applies the tuning file and re-applies it on every change.
func (d *daemon) loadTuning() {
	path := d.opts.TuningFile
	if path == "" {
		return
	}

	t, err := config.LoadTuning(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.logger.Info("No tuning file, keeping driver defaults", "path", path)
	case err != nil:
		d.logger.Warn("Failed to load tuning file", "path", path, "error", err)
	default:
		d.applyTuning(t)
	}

	d.watcher = config.NewConfigWatcher(
		path,
		config.LoadTuning,
		logging.GetLogger("config"),
		config.WithDebounce[config.Tuning](500*time.Millisecond),
		config.WithErrorHandler[config.Tuning](func(err error) {
			d.bus.Publish(events.TuningReloadedEvent{Error: err.Error(), Timestamp: timestamp()})
		}),
	)
	d.watcher.OnReload(d.applyTuning)
	if err := d.watcher.Start(); err != nil {
		d.logger.Warn("Failed to watch tuning file", "path", path, "error", err)
		d.watcher = nil
	}
}

func (d *daemon) applyTuning(t config.Tuning) {
	ev := events.TuningReloadedEvent{
		Contrast:   t.Contrast,
		Illuminant: t.Illuminant,
		Timestamp:  timestamp(),
	}
	if err := d.session.ApplyTuning(t); err != nil {
		d.logger.Error("Failed to apply tuning", "contrast", t.Contrast, "illuminant", t.Illuminant, "error", err)
		ev.Error = err.Error()
	} else {
		d.logger.Info("Tuning applied", "contrast", t.Contrast, "illuminant", t.Illuminant)
	}
	d.bus.Publish(ev)
}

// stop shuts everything down in reverse start order.
func (d *daemon) stop() {
	d.logger.Info("Shutting down")
	if err := d.notifier.Stopping(); err != nil {
		d.logger.Warn("Failed to notify systemd", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()

	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			d.logger.Error("Error stopping HTTP server", "error", err)
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Warn("Error stopping tuning watcher", "error", err)
		}
	}
	if d.exporter != nil {
		d.exporter.Stop()
	}
	if d.collector != nil {
		d.collector.Stop()
	}
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			d.logger.Error("Error closing ISP pipeline", "error", err)
		}
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
