// Package systemd reports daemon state to the service manager.
package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/ispctl/internal/logging"
)

// Notifier sends sd_notify messages. Outside a Type=notify unit every call
// is a no-op.
type Notifier struct {
	notify func(unsetEnvironment bool, state string) (bool, error)
	logger *slog.Logger
}

// NewNotifier creates a notifier bound to $NOTIFY_SOCKET.
func NewNotifier() *Notifier {
	return &Notifier{
		notify: daemon.SdNotify,
		logger: logging.GetLogger("systemd"),
	}
}

// Ready reports that the pipeline is bound and the API is serving.
func (n *Notifier) Ready() error {
	return n.send(daemon.SdNotifyReady)
}

// Stopping reports that shutdown has begun.
func (n *Notifier) Stopping() error {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) error {
	return n.send("STATUS=" + status)
}

func (n *Notifier) send(state string) error {
	sent, err := n.notify(false, state)
	if err != nil {
		return err
	}
	if sent {
		n.logger.Debug("Notified service manager", "state", state)
	}
	return nil
}
