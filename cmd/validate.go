package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oseg/krawler/internal/validate"
)

// newValidateCmd creates the 'validate' subcommand checking local manifest
// files without touching the network.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file ...>",
		Short: "Validate local manifest files",
		Args:  cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if _, err := validate.File(path); err != nil {
					return err
				}
				cmd.Printf("%s: ok\n", path)
			}
			return nil
		},
	}
}
