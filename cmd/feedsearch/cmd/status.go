package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// statusJSON is the JSON shape of `feedsearch status --json`.
type statusJSON struct {
	State       string `json:"state"`
	DataDir     string `json:"data_dir"`
	Documents   uint64 `json:"documents"`
	Outstanding int    `json:"outstanding"`
	Recovered   bool   `json:"recovered"`
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index state, document count and outstanding work",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := root.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			st, err := s.svc.Status(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statusJSON{
					State:       st.State.String(),
					DataDir:     st.DataDir,
					Documents:   st.Documents,
					Outstanding: st.Outstanding,
					Recovered:   st.Recovered,
				})
			}

			out := root.output(cmd.OutOrStdout())
			out.KeyValue("state", st.State)
			out.KeyValue("data dir", st.DataDir)
			out.KeyValue("documents", st.Documents)
			out.KeyValue("outstanding", st.Outstanding)
			if st.Recovered {
				out.Warning("Index was rebuilt after a failed open")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}
