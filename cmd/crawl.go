package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// newCrawlCmd creates the 'crawl' subcommand. With no arguments it crawls
// every registered platform; otherwise only the named ones.
func newCrawlCmd() *cobra.Command {
	var startOver bool

	cmd := &cobra.Command{
		Use:   "crawl [platform ...]",
		Short: "Crawl hosting platforms for manifest files",
		Long: `Walks the named hosting platforms page by page, fetching every manifest
they advertise. Progress is checkpointed after each page; an interrupted
crawl resumes from its last checkpoint unless --start-over is given.`,

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := a.Logger()

			g, ctx := errgroup.WithContext(cmd.Context())
			opsCtx, stopOps := context.WithCancel(ctx)
			defer stopOps()

			g.Go(func() error {
				return a.ServeOps(opsCtx)
			})
			g.Go(func() error {
				defer stopOps()
				return a.Crawl(ctx, args, startOver)
			})

			err = g.Wait()
			for platform, tally := range a.Stats().Snapshot() {
				logger.Info("crawl finished",
					zap.String("platform", platform),
					zap.Int("succeeded", tally.Succeeded),
					zap.Int("failed", tally.Failed),
				)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&startOver, "start-over", false,
		"discard any saved checkpoint and crawl from the beginning")
	return cmd
}
