package main

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/ispctl/cmd"
	"github.com/smazurov/ispctl/internal/version"
)

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Runs before every subcommand as well
		if loadErr := cmd.Load(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		d := newDaemon(opts)
		hooks.OnStart(d.run)
		hooks.OnStop(d.stop)
	})

	cli.Root().Use = "ispctl"
	cli.Root().Short = "DCMIPP ISP control daemon"
	cli.Root().Long = `Without a subcommand ispctl binds the ISP pipeline, applies the tuning file ` +
		`and serves the control API, the event stream and Prometheus metrics.`
	cli.Root().Version = version.Get().String()
	cli.Root().AddCommand(cmd.Commands()...)

	// Run the CLI
	cli.Run()
}
