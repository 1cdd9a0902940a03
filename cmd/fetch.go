package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newFetchCmd creates the 'fetch' subcommand for one-off fetches of a single
// project or manifest URL.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch the manifest of a single project URL",
		Long: `Fetches one project or manifest file URL through the adapter responsible
for its hosting platform. The result is archived like a crawled one; the
manifest content is printed to stdout.`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			outcome, err := a.FetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !outcome.OK() {
				return fmt.Errorf("fetch %s: %w", args[0], outcome.Err)
			}
			cmd.Println(string(outcome.Manifest.Content))
			return nil
		},
	}
}
