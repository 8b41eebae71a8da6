package events

// SubscribeToChannel forwards events of type T into ch for select loops such
// as an SSE handler. When ch is full the event is dropped so a slow client
// never stalls the publisher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return Subscribe(bus, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
