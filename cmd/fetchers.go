package cmd

import (
	"github.com/spf13/cobra"
)

// newFetchersCmd creates the 'fetchers' subcommand listing the platforms the
// binary can crawl.
func newFetchersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetchers",
		Short: "List the supported hosting platforms",

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, platform := range a.Registry().Platforms() {
				cmd.Println(platform.String())
			}
			return nil
		},
	}
}
