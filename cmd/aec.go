package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/ispctl/internal/aec"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/spf13/cobra"
)

// NewAECCmd creates the aec command.
func NewAECCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aec",
		Short: "Run auto exposure",
		Long: `Adjusts sensor exposure and analogue gain until the average luminance measured by the ISP ` +
			`is within tolerance of the target. Use -v to log every iteration.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(c *cobra.Command, _ []string, opts *Options) {
			cfg := opts.AECConfig()
			exitOnError(c, cfg.Validate())

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			exitOnError(c, withSession(ctx, opts, func(s *session.Session) error {
				res, err := s.RunAutoExposure(ctx, cfg)
				if err != nil {
					return err
				}
				return printAECResult(c.OutOrStdout(), cfg, res)
			}))
		}),
	}
}

func printAECResult(w io.Writer, cfg aec.Config, res aec.Result) error {
	var status string
	switch res.Outcome {
	case aec.Converged:
		status = "converged"
	case aec.LimitReached:
		status = "stopped at the sensor limits"
	default:
		status = fmt.Sprintf("gave up after %d attempts", res.Attempts)
	}
	_, err := fmt.Fprintf(w,
		"AEC %s: luminance %d (target %d +/- %d), gain %d, exposure %d, %d iterations\n",
		status, res.Luminance, cfg.Target, cfg.Tolerance, res.Gain, res.Exposure, res.Iterations)
	return err
}
