package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeTuningFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startWatcher(t *testing.T, w *Watcher[Tuning]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Wait for watcher to initialize
	time.Sleep(100 * time.Millisecond)
}

func TestTuningWatcher_BasicReload(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	received := make(chan Tuning, 1)
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	watcher.OnReload(func(tn Tuning) {
		received <- tn
	})
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("contrast = \"dynamic\"\nilluminant = \"tl84\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case tn := <-received:
		if tn.Contrast != "dynamic" || tn.Illuminant != "tl84" {
			t.Errorf("got %+v, want contrast=dynamic, illuminant=tl84", tn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for tuning reload")
	}
}

func TestTuningWatcher_ReplacedByRename(t *testing.T) {
	path := writeTuningFile(t, "illuminant = \"d50\"\n")

	received := make(chan Tuning, 4)
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	watcher.OnReload(func(tn Tuning) {
		received <- tn
	})
	startWatcher(t, watcher)

	for _, ill := range []string{"tl84", "d50"} {
		if err := SaveTuning(path, Tuning{Illuminant: ill}); err != nil {
			t.Fatal(err)
		}
		select {
		case tn := <-received:
			if tn.Illuminant != ill {
				t.Errorf("illuminant = %q, want %q", tn.Illuminant, ill)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for reload after replacing with %s", ill)
		}
	}
}

func TestTuningWatcher_IgnoresSiblingFiles(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"half\"\n")

	var count atomic.Int32
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](20*time.Millisecond))
	watcher.OnReload(func(Tuning) { count.Add(1) })
	startWatcher(t, watcher)

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("contrast = \"double\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reload for sibling file, got %d", got)
	}
}

func TestTuningWatcher_MultipleHandlers(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	first := make(chan Tuning, 1)
	second := make(chan Tuning, 1)
	watcher.OnReload(func(tn Tuning) { first <- tn })
	watcher.OnReload(func(tn Tuning) { second <- tn })
	startWatcher(t, watcher)

	if err := os.WriteFile(path, []byte("contrast = \"double\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []chan Tuning{first, second} {
		select {
		case tn := <-ch:
			if tn.Contrast != "double" {
				t.Errorf("handler %d got %+v", i, tn)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for handler %d", i)
		}
	}
}

func TestTuningWatcher_Unsubscribe(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	var count atomic.Int32
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	unsub := watcher.OnReload(func(Tuning) { count.Add(1) })
	received := make(chan struct{}, 1)
	watcher.OnReload(func(Tuning) { received <- struct{}{} })
	startWatcher(t, watcher)

	unsub()
	if err := os.WriteFile(path, []byte("contrast = \"half\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	if got := count.Load(); got != 0 {
		t.Errorf("unsubscribed handler called %d times", got)
	}
}

func TestTuningWatcher_ErrorHandler(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	errorReceived := make(chan error, 1)
	tuningReceived := make(chan Tuning, 1)
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(),
		WithDebounce[Tuning](50*time.Millisecond),
		WithErrorHandler[Tuning](func(err error) { errorReceived <- err }),
	)
	watcher.OnReload(func(tn Tuning) { tuningReceived <- tn })
	startWatcher(t, watcher)

	// Parses, but names an unknown preset
	if err := os.WriteFile(path, []byte("contrast = \"vivid\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
	case <-tuningReceived:
		t.Fatal("reload handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestTuningWatcher_Debounce(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	var count atomic.Int32
	var last atomic.Value
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](200*time.Millisecond))
	watcher.OnReload(func(tn Tuning) {
		count.Add(1)
		last.Store(tn.Contrast)
	})
	startWatcher(t, watcher)

	// Rapid changes within debounce window
	for _, c := range []string{"half", "double", "dynamic", "0", "dynamic"} {
		if err := os.WriteFile(path, fmt.Appendf(nil, "contrast = %q\n", c), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got, _ := last.Load().(string); got != "dynamic" {
		t.Errorf("expected final contrast dynamic, got %q", got)
	}
}

func TestTuningWatcher_ThreadSafety(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](10*time.Millisecond))
	startWatcher(t, watcher)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := watcher.OnReload(func(Tuning) {})
			time.Sleep(time.Millisecond)
			unsub()
		}()
	}

	for _, c := range []string{"half", "double", "none"} {
		if err := os.WriteFile(path, fmt.Appendf(nil, "contrast = %q\n", c), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()
}

func TestTuningWatcher_Stop(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")

	var count atomic.Int32
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	watcher.OnReload(func(Tuning) { count.Add(1) })

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := watcher.Stop(); err != nil {
		t.Fatal(err)
	}

	// Changes after stop should not trigger handler
	if err := os.WriteFile(path, []byte("contrast = \"half\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}

func TestTuningWatcher_SkipsUnchangedContent(t *testing.T) {
	content := "contrast = \"half\"\n"
	path := writeTuningFile(t, content)

	var count atomic.Int32
	received := make(chan Tuning, 1)
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](20*time.Millisecond))
	watcher.OnReload(func(tn Tuning) {
		count.Add(1)
		received <- tn
	})
	startWatcher(t, watcher)

	// Same bytes as the baseline
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("rewrite with identical content reported %d times", got)
	}

	if err := os.WriteFile(path, []byte("contrast = \"double\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case tn := <-received:
		if tn.Contrast != "double" {
			t.Errorf("got %+v, want contrast=double", tn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestTuningWatcher_AcknowledgedWrite(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"half\"\n")

	received := make(chan Tuning, 2)
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger(), WithDebounce[Tuning](50*time.Millisecond))
	watcher.OnReload(func(tn Tuning) { received <- tn })
	startWatcher(t, watcher)

	if err := SaveTuning(path, Tuning{Contrast: "half", Illuminant: "d50"}); err != nil {
		t.Fatal(err)
	}
	watcher.Acknowledge()

	select {
	case tn := <-received:
		t.Fatalf("acknowledged write reloaded as %+v", tn)
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("contrast = \"dynamic\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case tn := <-received:
		if tn.Contrast != "dynamic" {
			t.Errorf("got %+v, want contrast=dynamic", tn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after external edit")
	}
}

func TestTuningWatcher_StopTwice(t *testing.T) {
	path := writeTuningFile(t, "contrast = \"none\"\n")
	watcher := NewConfigWatcher(path, LoadTuning, newTestLogger())

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() before Start() = %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("first Stop() = %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}
