// Package logging configures structured slog output for feedsearch.
// With --debug the CLI writes JSON records to ~/.feedsearch/logs/feedsearch.log,
// rotated by size; without it only warnings reach stderr.
package logging
