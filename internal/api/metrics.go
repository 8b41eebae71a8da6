package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/ispctl/internal/events"
	"github.com/smazurov/ispctl/internal/metrics"
	"github.com/smazurov/ispctl/internal/metrics/exporters"
)

// registerMetricsRoutes exposes the gauge snapshots as an event stream. A
// client receives the current values on connect, then every change.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics stream",
		Description: "Luminance, bad pixel, gain and exposure gauges as they change",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, exporters.EventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, 8)
		defer events.SubscribeToChannel[events.MetricsSnapshotEvent](s.eventBus, ch)()

		if snap := metrics.GetSnapshot(); snap.Captures > 0 {
			if err := send.Data(exporters.SnapshotEvent(snap, time.Now())); err != nil {
				return
			}
		}
		forward(ctx, send, ch)
	})
}
