package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newReindexCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the index from the article store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := root.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			res, err := s.svc.ReindexAll(ctx)
			if err != nil {
				return err
			}
			root.output(cmd.OutOrStdout()).Successf("Indexed %d articles in %s", res.Documents, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Compact the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := root.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.svc.Optimize(ctx); err != nil {
				return err
			}
			root.output(cmd.OutOrStdout()).Success("Index optimized")
			return nil
		},
	}
}
