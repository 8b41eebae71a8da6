// Package collectors feeds the ISP metrics from the event bus.
package collectors

import (
	"log/slog"
	"sync"

	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/internal/metrics"
)

// BusCollector records every ISP event into the Prometheus metrics.
type BusCollector struct {
	bus      *events.Bus
	logger   *slog.Logger
	unsubs   []func()
	stopOnce sync.Once
}

// NewBusCollector creates a collector for bus.
func NewBusCollector(bus *events.Bus) *BusCollector {
	return &BusCollector{
		bus:    bus,
		logger: logging.GetLogger("metrics"),
	}
}

// Start subscribes to the ISP events.
func (c *BusCollector) Start() {
	c.unsubs = []func(){
		events.Subscribe(c.bus, func(e events.StatsCapturedEvent) {
			metrics.RecordStats(metrics.StatsSample{
				Profile:       e.Profile,
				PreAverage:    e.PreAverage,
				PostAverage:   e.PostAverage,
				PreLuminance:  e.PreLuminance,
				PostLuminance: e.PostLuminance,
				BadPixelCount: e.BadPixelCount,
			})
		}),
		events.Subscribe(c.bus, func(e events.ExposureStepEvent) {
			metrics.RecordSensor(e.Gain, e.Exposure)
		}),
		events.Subscribe(c.bus, func(e events.AutoExposureDoneEvent) {
			if e.Error != "" {
				metrics.RecordAutoExposure("error", e.Attempts)
				return
			}
			metrics.RecordSensor(e.Gain, e.Exposure)
			metrics.RecordAutoExposure(e.Outcome, e.Attempts)
		}),
		events.Subscribe(c.bus, func(e events.ParamsAppliedEvent) {
			metrics.RecordParams(e.Source)
		}),
		events.Subscribe(c.bus, func(e events.TransferErrorEvent) {
			metrics.RecordTransferError(e.Direction, e.Code)
		}),
	}
	c.logger.Debug("Metrics collector subscribed", "events", len(c.unsubs))
}

// Stop unsubscribes from the bus. It is safe to call more than once.
func (c *BusCollector) Stop() {
	c.stopOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.unsubs = nil
	})
}
