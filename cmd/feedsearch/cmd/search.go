package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/feedsearch/internal/search"
	"github.com/Aman-CERP/feedsearch/pkg/feedsearch"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	matchAny bool
	scope    string
	limit    int
	format   string // "text", "json"
}

// searchResult is one line of JSON output.
type searchResult struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title,omitempty"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <condition>...",
		Short: "Search articles with structured conditions",
		Long: `Search articles. Each argument is one condition of the form
"<field> <specifier> <value>". By default every condition must match;
--any matches articles satisfying at least one.

Fields: all, title, description, author, categories, attachments, label,
feed, state, flagged, has_attachments, age, location.

Examples:
  feedsearch search 'title contains "release notes"'
  feedsearch search 'all contains go*' 'age is less than 7'
  feedsearch search --any 'flagged is true' 'label is Important'
  feedsearch search --scope folder:1,bin:7 'state is unread,new'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.matchAny, "any", false, "Match articles satisfying any condition")
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "", "Restrict to locations, e.g. folder:1,bookmark:2,bin:3")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, args []string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", opts.format)
	}

	parser := search.NewParser(nil)
	conditions, err := parser.ParseAll(args)
	if err != nil {
		return err
	}
	var scope *feedsearch.Condition
	if opts.scope != "" {
		sc, err := parser.Parse("location scope " + opts.scope)
		if err != nil {
			return err
		}
		scope = &sc
	}

	s, err := root.openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	requireAll := !opts.matchAny
	var hits []feedsearch.Hit
	if scope != nil {
		hits, err = s.svc.SearchArticlesInScope(ctx, conditions, *scope, requireAll)
	} else {
		hits, err = s.svc.SearchArticles(ctx, conditions, requireAll)
	}
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("conditions", len(conditions)), slog.Int("results", len(hits)))

	if opts.limit > 0 && len(hits) > opts.limit {
		hits = hits[:opts.limit]
	}

	results := make([]searchResult, len(hits))
	for i, h := range hits {
		results[i] = searchResult{ID: h.Ref.ID, Score: h.Match.Score}
		if a, err := s.store.Article(ctx, h.Ref.ID); err == nil {
			results[i].Title = a.Title
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := root.output(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Warning("No matching articles")
		return nil
	}
	out.Statusf("🔍", "Found %d articles", len(results))
	out.Newline()
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{strconv.FormatInt(r.ID, 10), strconv.FormatFloat(r.Score, 'f', 3, 64), r.Title}
	}
	out.Table([]string{"ID", "SCORE", "TITLE"}, rows)
	return nil
}
