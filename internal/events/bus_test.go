package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan StatsCapturedEvent, 1)

	unsub := Subscribe(bus, func(e StatsCapturedEvent) {
		received <- e
	})
	defer unsub()

	event := StatsCapturedEvent{
		Profile:       "average-post",
		PostAverage:   [3]uint32{60, 56, 50},
		PostLuminance: 56,
		Timestamp:     "2026-10-18T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.PostLuminance != event.PostLuminance || got.PostAverage != event.PostAverage {
		t.Errorf("received %+v, want %+v", got, event)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan ParamsAppliedEvent, 1)
	received2 := make(chan ParamsAppliedEvent, 1)

	unsub1 := Subscribe(bus, func(e ParamsAppliedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := Subscribe(bus, func(e ParamsAppliedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(ParamsAppliedEvent{Blocks: "CE", Source: "contrast"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan TransferErrorEvent, 1)

	unsub := Subscribe(bus, func(e TransferErrorEvent) {
		received <- e
	})

	bus.Publish(TransferErrorEvent{Node: "/dev/video2", Code: "TIMEOUT"})
	<-received

	unsub()

	bus.Publish(TransferErrorEvent{Node: "/dev/video3", Code: "BUSY"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	stepReceived := make(chan bool, 1)
	doneReceived := make(chan bool, 1)

	unsub1 := Subscribe(bus, func(_ ExposureStepEvent) {
		stepReceived <- true
	})
	defer unsub1()

	unsub2 := Subscribe(bus, func(_ AutoExposureDoneEvent) {
		doneReceived <- true
	})
	defer unsub2()

	bus.Publish(ExposureStepEvent{Attempt: 1})
	<-stepReceived

	select {
	case <-doneReceived:
		t.Fatal("AEC done subscriber should NOT have received ExposureStepEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(AutoExposureDoneEvent{Outcome: "converged"})
	<-doneReceived

	select {
	case <-stepReceived:
		t.Fatal("Step subscriber should NOT have received AutoExposureDoneEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := Subscribe(bus, func(_ StatsCapturedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(StatsCapturedEvent{
					Profile:   "full",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"ParamsApplied", ParamsAppliedEvent{Blocks: "CE"}},
		{"StatsCaptured", StatsCapturedEvent{Profile: "full"}},
		{"ExposureStep", ExposureStepEvent{Attempt: 1}},
		{"AutoExposureDone", AutoExposureDoneEvent{Outcome: "converged"}},
		{"TransferError", TransferErrorEvent{Code: "TIMEOUT"}},
		{"TuningReloaded", TuningReloadedEvent{Contrast: "half"}},
		{"MetricsSnapshot", MetricsSnapshotEvent{Captures: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case ParamsAppliedEvent:
				unsub = Subscribe(bus, func(e ParamsAppliedEvent) { received <- e })
			case StatsCapturedEvent:
				unsub = Subscribe(bus, func(e StatsCapturedEvent) { received <- e })
			case ExposureStepEvent:
				unsub = Subscribe(bus, func(e ExposureStepEvent) { received <- e })
			case AutoExposureDoneEvent:
				unsub = Subscribe(bus, func(e AutoExposureDoneEvent) { received <- e })
			case TransferErrorEvent:
				unsub = Subscribe(bus, func(e TransferErrorEvent) { received <- e })
			case TuningReloadedEvent:
				unsub = Subscribe(bus, func(e TuningReloadedEvent) { received <- e })
			case MetricsSnapshotEvent:
				unsub = Subscribe(bus, func(e MetricsSnapshotEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_PublishNil(_ *testing.T) {
	New().Publish(nil)
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
		key   string
	}{
		{
			"ParamsAppliedEvent",
			ParamsAppliedEvent{Blocks: "BLC|EX|CC", Source: "illuminant", Preset: "d50", Timestamp: "2026-10-18T10:30:00Z"},
			"blocks",
		},
		{
			"StatsCapturedEvent",
			StatsCapturedEvent{Profile: "full", PostAverage: [3]uint32{1, 2, 3}},
			"post_average",
		},
		{
			"AutoExposureDoneEvent",
			AutoExposureDoneEvent{Outcome: "limit_reached", Attempts: 20},
			"outcome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if _, ok := result[tt.key]; !ok {
				t.Errorf("key %q missing from %s", tt.key, data)
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[ExposureStepEvent](bus, ch)
	defer unsub()

	event := ExposureStepEvent{Attempt: 4, Knob: "gain", Gain: 33}
	bus.Publish(event)

	received := <-ch
	step, ok := received.(ExposureStepEvent)
	if !ok {
		t.Fatalf("Expected ExposureStepEvent, got %T", received)
	}
	if step.Gain != event.Gain {
		t.Errorf("Expected gain %d, got %d", event.Gain, step.Gain)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[ParamsAppliedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ParamsAppliedEvent{Blocks: "CE"})
		done <- true
	}()

	<-done
}
