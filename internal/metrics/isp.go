// Package metrics provides Prometheus metrics for ISP statistics, sensor
// knobs and auto exposure runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ispctl"

var channels = [3]string{"r", "g", "b"}

var (
	statsLuminance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "luminance",
		Help:      "BT.601 luminance of the last average RGB",
	}, []string{"location"})

	statsAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "average",
		Help:      "Last average component value",
	}, []string{"location", "channel"})

	statsBadPixels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "bad_pixels",
		Help:      "Bad pixels detected in the last frame",
	})

	statsCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "captures_total",
		Help:      "Statistics buffers captured",
	}, []string{"profile"})

	sensorGain = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sensor",
		Name:      "analogue_gain",
		Help:      "Last analogue gain pushed or read, in 0.3 dB units",
	})

	sensorExposure = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sensor",
		Name:      "exposure",
		Help:      "Last exposure pushed or read",
	})

	aecRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aec",
		Name:      "runs_total",
		Help:      "Auto exposure runs by outcome",
	}, []string{"outcome"})

	aecAttempts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "aec",
		Name:      "last_attempts",
		Help:      "Knob updates of the last auto exposure run",
	})

	paramsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "params",
		Name:      "applied_total",
		Help:      "Parameter blocks pushed to the ISP",
	}, []string{"source"})

	transferErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "channel",
		Name:      "transfer_errors_total",
		Help:      "Failed meta buffer transfers",
	}, []string{"direction", "code"})

	// Local copy of the gauges for the SSE exporter.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot holds the current gauge values.
type Snapshot struct {
	PreLuminance  float64
	PostLuminance float64
	BadPixels     float64
	Gain          float64
	Exposure      float64
	Captures      float64
}

// StatsSample is one captured statistics buffer reduced to what is exported.
type StatsSample struct {
	Profile       string
	PreAverage    [3]uint32
	PostAverage   [3]uint32
	PreLuminance  int
	PostLuminance int
	BadPixelCount uint32
}

// RecordStats exports a captured statistics buffer.
func RecordStats(s StatsSample) {
	statsCaptures.WithLabelValues(s.Profile).Inc()
	statsLuminance.WithLabelValues("pre").Set(float64(s.PreLuminance))
	statsLuminance.WithLabelValues("post").Set(float64(s.PostLuminance))
	for i, ch := range channels {
		statsAverage.WithLabelValues("pre", ch).Set(float64(s.PreAverage[i]))
		statsAverage.WithLabelValues("post", ch).Set(float64(s.PostAverage[i]))
	}
	statsBadPixels.Set(float64(s.BadPixelCount))

	updateSnapshot(func(m *Snapshot) {
		m.PreLuminance = float64(s.PreLuminance)
		m.PostLuminance = float64(s.PostLuminance)
		m.BadPixels = float64(s.BadPixelCount)
		m.Captures++
	})
}

// RecordSensor exports the sensor knob values.
func RecordSensor(gain, exposure int) {
	sensorGain.Set(float64(gain))
	sensorExposure.Set(float64(exposure))
	updateSnapshot(func(m *Snapshot) {
		m.Gain = float64(gain)
		m.Exposure = float64(exposure)
	})
}

// RecordAutoExposure counts a finished auto exposure run.
func RecordAutoExposure(outcome string, attempts int) {
	aecRuns.WithLabelValues(outcome).Inc()
	aecAttempts.Set(float64(attempts))
}

// RecordParams counts a parameter block pushed to the ISP.
func RecordParams(source string) {
	paramsApplied.WithLabelValues(source).Inc()
}

// RecordTransferError counts a failed meta buffer transfer.
func RecordTransferError(direction, code string) {
	transferErrors.WithLabelValues(direction, code).Inc()
}

// GetSnapshot returns a copy of the current gauge values.
func GetSnapshot() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func updateSnapshot(update func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	update(&snapshot)
}
