package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Identifier tags every record sent to the systemd journal.
const Identifier = "ispctl"

// Config selects the output format and the levels. Modules maps a module
// name to its own level; modules not listed follow Level.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// registry holds the process wide logging state. Level vars are shared with
// the handlers, so loggers handed out before Initialize follow later level
// changes.
type registry struct {
	mu      sync.RWMutex
	config  Config
	ready   bool
	global  slog.LevelVar
	modules map[string]moduleLogger
}

var std = newRegistry()

func newRegistry() *registry {
	return &registry{modules: make(map[string]moduleLogger)}
}

// Initialize applies config to every existing and future module logger and
// installs the slog default.
func Initialize(config Config) {
	r := std
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = config
	r.ready = true
	r.global.Set(levelOrDefault(config.Level, slog.LevelInfo))

	for name, m := range r.modules {
		m.level.Set(r.levelOf(name))
		m.logger = newModuleLogger(config.Format, m.level, name)
		r.modules[name] = m
	}
	slog.SetDefault(slog.New(createHandler(config.Format, &r.global)))
}

// SetLevel changes the global level. Modules with an explicit level keep it.
// Unknown level names are ignored.
func SetLevel(level string) {
	parsed := parseLevel(level)
	if parsed == nil {
		return
	}

	r := std
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config.Level = level
	r.global.Set(*parsed)
	for name, m := range r.modules {
		m.level.Set(r.levelOf(name))
	}
}

// GetLogger returns the logger of a module, tagged with module=<name>.
func GetLogger(module string) *slog.Logger {
	r := std
	r.mu.RLock()
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if ok {
		return m.logger
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if r.ready {
		level.Set(r.levelOf(module))
		format = r.config.Format
	}
	m = moduleLogger{logger: newModuleLogger(format, level, module), level: level}
	r.modules[module] = m
	return m.logger
}

// levelOf resolves the level of one module. Callers hold mu.
func (r *registry) levelOf(module string) slog.Level {
	if parsed := parseLevel(r.config.Modules[module]); parsed != nil {
		return *parsed
	}
	return r.global.Level()
}

func newModuleLogger(format string, level slog.Leveler, module string) *slog.Logger {
	return slog.New(createHandler(format, level)).With("module", module)
}

// createHandler writes to stdout and, when journald is reachable, to the
// journal as well.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	journalUp := IsJournalAvailable()
	switch {
	case journalUp && stdoutConnected():
		return NewMultiHandler(stdout, NewJournalHandler(level))
	case journalUp:
		return NewJournalHandler(level)
	default:
		return stdout
	}
}

// stdoutConnected reports whether stdout goes to a terminal, pipe, socket
// or file. Under systemd without StandardOutput it is usually closed.
func stdoutConnected() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOrDefault(level string, def slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return def
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
