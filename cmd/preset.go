package cmd

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/ispctl/internal/isp"
	"github.com/smazurov/ispctl/internal/session"
	"github.com/spf13/cobra"
)

// NewContrastCmd creates the contrast command.
func NewContrastCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "contrast <none|half|double|dynamic|0-3>",
		Short:     "Apply a contrast enhancement preset",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"none", "half", "double", "dynamic"},
		Run: humacli.WithOptions(func(c *cobra.Command, args []string, opts *Options) {
			profile, err := isp.ParseContrast(args[0])
			exitOnError(c, err)

			exitOnError(c, withSession(c.Context(), opts, func(s *session.Session) error {
				if err := s.ApplyContrast(profile); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.OutOrStdout(), "Contrast set to %s\n", profile)
				return err
			}))
		}),
	}
}

// NewIlluminantCmd creates the illuminant command.
func NewIlluminantCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "illuminant <d50|tl84|0-1>",
		Short:     "Apply the black level, white balance and color correction of a light source",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"d50", "tl84"},
		Run: humacli.WithOptions(func(c *cobra.Command, args []string, opts *Options) {
			profile, err := isp.ParseIlluminant(args[0])
			exitOnError(c, err)

			exitOnError(c, withSession(c.Context(), opts, func(s *session.Session) error {
				if err := s.ApplyIlluminant(profile); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.OutOrStdout(), "Illuminant set to %s\n", profile)
				return err
			}))
		}),
	}
}
