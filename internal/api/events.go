package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/ispctl/internal/events"
)

// ConnectedEvent is sent once when an SSE client connects.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp" example:"2026-10-18T10:30:00Z"`
}

// registerSSERoutes registers the ISP event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of applied parameters, captured statistics, auto exposure progress and transfer errors",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":       ConnectedEvent{},
		"params-applied":  events.ParamsAppliedEvent{},
		"stats-captured":  events.StatsCapturedEvent{},
		"exposure-step":   events.ExposureStepEvent{},
		"aec-done":        events.AutoExposureDoneEvent{},
		"transfer-error":  events.TransferErrorEvent{},
		"tuning-reloaded": events.TuningReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ParamsAppliedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StatsCapturedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ExposureStepEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AutoExposureDoneEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TransferErrorEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.TuningReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(ConnectedEvent{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		forward(ctx, send, eventCh)
	})
}

// forward relays bus events to the client until it disconnects.
func forward(ctx context.Context, send sse.Sender, ch <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}
