package systemd

import (
	"errors"
	"testing"

	"github.com/smazurov/ispctl/internal/logging"
)

func TestNotifierStates(t *testing.T) {
	var sent []string
	n := &Notifier{
		notify: func(_ bool, state string) (bool, error) {
			sent = append(sent, state)
			return true, nil
		},
		logger: logging.GetLogger("systemd"),
	}

	if err := n.Status("waiting for media device"); err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if err := n.Ready(); err != nil {
		t.Fatalf("Ready() error: %v", err)
	}
	if err := n.Stopping(); err != nil {
		t.Fatalf("Stopping() error: %v", err)
	}

	want := []string{"STATUS=waiting for media device", "READY=1", "STOPPING=1"}
	if len(sent) != len(want) {
		t.Fatalf("sent %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestNotifierError(t *testing.T) {
	boom := errors.New("socket gone")
	n := &Notifier{
		notify: func(bool, string) (bool, error) { return false, boom },
		logger: logging.GetLogger("systemd"),
	}
	if err := n.Ready(); !errors.Is(err, boom) {
		t.Errorf("Ready() = %v, want %v", err, boom)
	}
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	if err := NewNotifier().Ready(); err != nil {
		t.Errorf("Ready() outside systemd = %v, want nil", err)
	}
}
