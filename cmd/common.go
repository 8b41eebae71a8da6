package cmd

import (
	"context"
	"os"

	"github.com/smazurov/ispctl/internal/logging"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/spf13/cobra"
)

// withSession opens the pipeline for one subcommand and closes it afterwards.
func withSession(ctx context.Context, opts *Options, fn func(*session.Session) error) error {
	s, err := OpenSession(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logging.GetLogger("session").Warn("Failed to close session", "error", closeErr)
		}
	}()
	return fn(s)
}

// exitOnError logs err and exits with status 1.
func exitOnError(c *cobra.Command, err error) {
	if err == nil {
		return
	}
	logging.GetLogger("main").Error("Command failed", "command", c.Name(), "error", err)
	os.Exit(1)
}

// Commands returns every subcommand.
func Commands() []*cobra.Command {
	return []*cobra.Command{
		NewInfoCmd(),
		NewAECCmd(),
		NewContrastCmd(),
		NewIlluminantCmd(),
		NewStatsCmd(),
	}
}
