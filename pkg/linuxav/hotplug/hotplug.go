//go:build linux

// Package hotplug listens for kernel uevents over netlink.
//
// It is used to wait for a camera pipeline whose media controller is
// registered after boot, typically when the ISP or sensor driver is a module
// that probes late.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
	ActionBind   = "bind"
	ActionUnbind = "unbind"
)

// Subsystems a camera pipeline registers devices under.
const (
	SubsystemMedia       = "media"
	SubsystemVideo4Linux = "video4linux"
	SubsystemI2C         = "i2c"
	SubsystemPlatform    = "platform"
)

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string // /devices/platform/soc/48030000.dcmipp/media0
	Subsystem string
	DevType   string
	DevName   string // media0, v4l-subdev3
	DevPath   string
	Driver    string
	Env       map[string]string
}

// Matcher selects events.
type Matcher func(Event) bool

// Match returns a Matcher for an action on a subsystem. Empty arguments match
// anything.
func Match(subsystem, action string) Matcher {
	return func(e Event) bool {
		if subsystem != "" && e.Subsystem != subsystem {
			return false
		}
		return action == "" || e.Action == action
	}
}

// Monitor reads uevents from the kernel broadcast group.
type Monitor struct {
	fd        int
	filters   map[string]struct{}
	filtersMu sync.RWMutex
}

// NewMonitor opens a NETLINK_KOBJECT_UEVENT socket.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Monitor{
		fd:      fd,
		filters: make(map[string]struct{}),
	}, nil
}

// AddSubsystemFilter restricts Run to the given subsystems. Without filters
// every event passes. Safe for concurrent use.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.filtersMu.Lock()
	m.filters[subsystem] = struct{}{}
	m.filtersMu.Unlock()
}

func (m *Monitor) accepts(subsystem string) bool {
	m.filtersMu.RLock()
	defer m.filtersMu.RUnlock()
	if len(m.filters) == 0 {
		return true
	}
	_, ok := m.filters[subsystem]
	return ok
}

// Close releases the socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run sends events to the channel until ctx is done or the socket fails.
// The channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	// receive timeout so cancellation is noticed
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(m.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return err
	}

	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		event := ParseUEvent(buf[:n])
		if event == nil || !m.accepts(event.Subsystem) {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitFor returns the first event from the channel accepted by match.
func WaitFor(ctx context.Context, events <-chan Event, match Matcher) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case e, ok := <-events:
			if !ok {
				return Event{}, errors.New("hotplug: event stream closed")
			}
			if match(e) {
				return e, nil
			}
		}
	}
}

// WaitForMedia blocks until a media controller device is added.
func WaitForMedia(ctx context.Context) (Event, error) {
	m, err := NewMonitor()
	if err != nil {
		return Event{}, err
	}
	defer func() { _ = m.Close() }()
	m.AddSubsystemFilter(SubsystemMedia)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, 8)
	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx, events) }()

	e, err := WaitFor(ctx, events, Match(SubsystemMedia, ActionAdd))
	if err != nil && ctx.Err() == nil {
		// stream closed early, surface the socket error
		if rerr := <-runErr; rerr != nil {
			return Event{}, rerr
		}
	}
	return e, err
}

// ParseUEvent parses "ACTION@KOBJ\0KEY=VALUE\0...". Messages relayed by
// udev carry a binary "libudev" header which is skipped.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] != 0 {
				continue
			}
			rest := data[i+1:]
			head, _, _ := bytes.Cut(rest, []byte{0})
			if idx := bytes.IndexByte(head, '@'); idx > 0 && idx < 20 {
				data = rest
				break
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts[0]) == 0 {
		return nil
	}

	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return nil
	}

	event := &Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "DEVPATH":
			event.DevPath = value
		case "DRIVER":
			event.Driver = value
		}
	}

	return event
}
