package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/metrics"
)

// Publisher is the part of the event bus the exporter needs.
type Publisher interface {
	Publish(ev events.Event)
}

// SSEExporter turns the gauge snapshot into MetricsSnapshotEvents. A snapshot
// is published only when it differs from the previous one, so an idle ISP
// produces no traffic on the event stream.
type SSEExporter struct {
	bus      Publisher
	interval time.Duration
	snapshot func() metrics.Snapshot

	last   metrics.Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSSEExporter creates an exporter polling the gauges once a second.
func NewSSEExporter(bus Publisher) *SSEExporter {
	return &SSEExporter{
		bus:      bus,
		interval: time.Second,
		snapshot: metrics.GetSnapshot,
	}
}

// Start polls until ctx is done or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.poll(now)
			}
		}
	}()
}

// Stop ends the polling loop and waits for it. Safe to call more than once
// and before Start.
func (s *SSEExporter) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

// poll publishes the current snapshot if it changed. Reports whether an event
// was published.
func (s *SSEExporter) poll(now time.Time) bool {
	snap := s.snapshot()
	if snap.Captures == 0 || snap == s.last {
		return false
	}
	s.last = snap
	s.bus.Publish(SnapshotEvent(snap, now))
	return true
}

// SnapshotEvent converts a gauge snapshot taken at the given time.
func SnapshotEvent(snap metrics.Snapshot, at time.Time) events.MetricsSnapshotEvent {
	return events.MetricsSnapshotEvent{
		PostLuminance: snap.PostLuminance,
		PreLuminance:  snap.PreLuminance,
		BadPixels:     snap.BadPixels,
		Gain:          snap.Gain,
		Exposure:      snap.Exposure,
		Captures:      snap.Captures,
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
}

// EventTypes maps SSE event names to the payloads of the metrics stream.
func EventTypes() map[string]any {
	return map[string]any{
		"metrics-snapshot": events.MetricsSnapshotEvent{},
	}
}
