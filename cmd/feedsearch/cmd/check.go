package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the index with the article store",
		Long: `Compare the index with the article store and report visible articles
without a document and documents without a visible article.

With --repair the differences are queued and applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := root.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			res, err := s.svc.Check(ctx, repair)
			if err != nil {
				return err
			}

			out := root.output(cmd.OutOrStdout())
			if res.Consistent() {
				out.Successf("Index consistent: %d articles, %d documents", res.Checked, res.Documents)
				return nil
			}

			rows := make([][]string, len(res.Inconsistencies))
			for i, issue := range res.Inconsistencies {
				rows[i] = []string{strconv.FormatInt(issue.ArticleID, 10), issue.Type.String(), issue.Details}
			}
			out.Table([]string{"ARTICLE", "TYPE", "DETAILS"}, rows)

			if !repair {
				out.Warningf("%d inconsistencies; run with --repair to fix", len(res.Inconsistencies))
				return fmt.Errorf("index inconsistent")
			}
			out.Successf("Repaired %d inconsistencies", len(res.Inconsistencies))
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Queue and apply fixes")
	return cmd
}
