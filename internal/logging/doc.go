// Package logging configures log/slog for ispctl with one level per module.
//
// Records go to stdout when it is connected and to the systemd journal when
// journald is reachable, so the daemon logs to the journal under systemd and
// the CLI subcommands log to the terminal.
//
// Modules used across the tree: topology, channel, sensor, aec, session,
// api, metrics, config, hotplug, systemd.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Modules: map[string]string{"aec": "debug"},
//	})
//	logger := logging.GetLogger("aec")
//	logger.Debug("AEC attempt", "luminance", 30, "exposure", 1250)
//
// In the config file:
//
//	[logging]
//	level = "info"
//	format = "json"
//	aec = "debug"
//
// Reading the journal:
//
//	journalctl -t ispctl MODULE=aec
package logging
