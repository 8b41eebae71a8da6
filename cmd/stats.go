package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/report"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/spf13/cobra"
)

// clearScreen is written before every report in continuous mode.
const clearScreen = "\f"

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	var continuous bool
	var interval time.Duration
	var profileName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ISP statistics",
		Long: `Captures statistics buffers and prints the average components, the cumulative bins ` +
			`and the histogram by luminance range, before and after demosaicing.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(c *cobra.Command, _ []string, opts *Options) {
			profile, err := isp.ParseStatProfile(profileName)
			exitOnError(c, err)

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := c.OutOrStdout()
			exitOnError(c, withSession(ctx, opts, func(s *session.Session) error {
				if !continuous {
					stats, err := s.CaptureStats(profile)
					if err != nil {
						return err
					}
					return report.Write(out, stats)
				}
				return streamReports(ctx, s, profile, interval, out)
			}))
		}),
	}

	cmd.Flags().BoolVar(&continuous, "continuous", false, "Print statistics until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "Pause between reports in continuous mode")
	cmd.Flags().StringVar(&profileName, "profile", "full", "Statistics profile: full, average-pre, bins-pre, average-post or 0-3")
	return cmd
}

// statsStreamer is the part of a session continuous mode needs.
type statsStreamer interface {
	StreamStats(profile isp.StatProfile, onEach func(session.Sample) error, shouldStop func() bool) error
}

func streamReports(ctx context.Context, s statsStreamer, profile isp.StatProfile, interval time.Duration, out io.Writer) error {
	return s.StreamStats(profile, func(sample session.Sample) error {
		if _, err := fmt.Fprint(out, clearScreen); err != nil {
			return err
		}
		if err := report.Write(out, sample.Stats); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
		return nil
	}, func() bool {
		return ctx.Err() != nil
	})
}
