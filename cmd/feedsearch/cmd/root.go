// Package cmd provides the CLI commands for feedsearch.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/feedsearch/internal/config"
	"github.com/Aman-CERP/feedsearch/internal/entity"
	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
	"github.com/Aman-CERP/feedsearch/internal/logging"
	"github.com/Aman-CERP/feedsearch/internal/metrics"
	"github.com/Aman-CERP/feedsearch/internal/output"
	"github.com/Aman-CERP/feedsearch/internal/profiling"
	"github.com/Aman-CERP/feedsearch/pkg/feedsearch"
	"github.com/Aman-CERP/feedsearch/pkg/version"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	fixture      string
	dataDir      string
	debug        bool
	noColor      bool
	printMetrics bool
	profile      profiling.Options

	profiler       *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the feedsearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "feedsearch",
		Short: "Structured full-text search over feed articles",
		Long: `feedsearch keeps a bleve index consistent with a feed/article store
and answers structured searches over it.

Articles are read from a YAML fixture (--fixture). The index and its
outstanding-work queue live in the data directory and survive restarts.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.start,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.stop(cmd.OutOrStdout())
		},
	}
	cmd.SetVersionTemplate("feedsearch version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.fixture, "fixture", "", "YAML file with labels, folders, bookmarks, bins and articles")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Index data directory (default from config)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.feedsearch/logs/")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&opts.printMetrics, "print-metrics", false, "Print Prometheus metrics when the command finishes")
	flags.StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	flags.StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	flags.StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newOptimizeCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints failures for the terminal.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), fserrors.FormatForCLI(err))
		return err
	}
	return nil
}

func (o *rootOptions) start(_ *cobra.Command, _ []string) error {
	metrics.Register()

	if o.debug {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		o.loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Short()))
	}

	if o.profile.Enabled() {
		s, err := profiling.Start(o.profile)
		if err != nil {
			return err
		}
		o.profiler = s
	}
	return nil
}

func (o *rootOptions) stop(out io.Writer) error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
	}
	if o.printMetrics {
		if merr := writeMetrics(out); merr != nil && err == nil {
			err = merr
		}
	}
	if o.loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

func writeMetrics(out io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// session is an open service plus the store it indexes.
type session struct {
	svc   *feedsearch.Service
	store *entity.MemoryStore
}

// openSession loads the configuration and fixture and starts the service.
// With sync, articles the index is missing (or holds but should not) are
// queued so the next search picks them up.
func (o *rootOptions) openSession(ctx context.Context, sync bool) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fserrors.ConfigError("failed to load configuration", err)
	}
	if o.dataDir != "" {
		cfg.Paths.DataDir = o.dataDir
	}

	st := entity.NewMemoryStore()
	if o.fixture != "" {
		if st, err = entity.LoadFixture(ctx, o.fixture); err != nil {
			return nil, err
		}
	}

	logger := slog.Default()
	if !o.debug {
		logger = logging.Console(os.Stderr, logging.ParseLevel(cfg.Log.Level))
	}
	svc, err := feedsearch.New(st, cfg, feedsearch.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := svc.Startup(ctx); err != nil {
		return nil, err
	}

	if sync && o.fixture != "" {
		if _, err := svc.Check(ctx, true); err != nil {
			_ = svc.Close(ctx)
			return nil, err
		}
	}
	return &session{svc: svc, store: st}, nil
}

// output returns the writer for command results.
func (o *rootOptions) output(w io.Writer) *output.Writer {
	if o.noColor {
		return output.NewPlain(w)
	}
	return output.New(w)
}

func (s *session) close(ctx context.Context) {
	if err := s.svc.Close(ctx); err != nil {
		slog.Warn("shutdown_failed", slog.String("error", err.Error()))
	}
}
