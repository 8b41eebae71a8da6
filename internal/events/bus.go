// Package events is the in-process event bus connecting the ISP session to
// metrics, logging and SSE clients.
package events

import (
	"github.com/kelindar/event"
)

// Bus broadcasts ISP events. Handlers run asynchronously, one queue per
// subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// publishers dispatch an Event under its concrete type, which is what
// kelindar/event routes on.
var publishers = map[uint32]func(*event.Dispatcher, Event){}

func register[T Event]() {
	var zero T
	publishers[zero.Type()] = func(d *event.Dispatcher, ev Event) {
		event.Publish(d, ev.(T))
	}
}

func init() {
	register[ParamsAppliedEvent]()
	register[StatsCapturedEvent]()
	register[ExposureStepEvent]()
	register[AutoExposureDoneEvent]()
	register[TransferErrorEvent]()
	register[TuningReloadedEvent]()
	register[MetricsSnapshotEvent]()
}

// Publish sends ev to the subscribers of its type. Events of unregistered
// types are dropped.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	if publish, ok := publishers[ev.Type()]; ok {
		publish(b.dispatcher, ev)
	}
}

// Subscribe calls handler for every event of type T and returns the
// unsubscribe function.
//
//	unsub := events.Subscribe(bus, func(e events.StatsCapturedEvent) { ... })
func Subscribe[T Event](bus *Bus, handler func(T)) func() {
	return event.Subscribe(bus.dispatcher, handler)
}
