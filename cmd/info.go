package cmd

import (
	"fmt"
	"io"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/ispctl/internal/topology"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the ISP pipeline",
		Long:  `Resolves the media controller, the ISP, statistics, parameters and sensor nodes and prints them with the ISP input frame format.`,
		Args:  cobra.NoArgs,
		Run: humacli.WithOptions(func(c *cobra.Command, _ []string, opts *Options) {
			cfg, err := opts.SessionConfig()
			exitOnError(c, err)

			p, err := topology.NewLocator().Discover(c.Context(), cfg.Names)
			exitOnError(c, err)
			exitOnError(c, printPipeline(c.OutOrStdout(), p))
		}),
	}
}

func printPipeline(w io.Writer, p topology.Pipeline) error {
	_, err := fmt.Fprintf(w,
		"Media device:    %s\n"+
			"ISP subdev:      %s\n"+
			"Stats device:    %s\n"+
			"Params device:   %s\n"+
			"Sensor subdev:   %s\n"+
			"Frame:           %dx%d %s\n",
		p.Media, p.ISP, p.Stats, p.Params, p.Sensor,
		p.Format.Width, p.Format.Height, p.Format.Name)
	return err
}
