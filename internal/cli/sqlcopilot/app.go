// Package sqlcopilot implements the sqlcopilot command: batch generation,
// evaluation, the combined pipeline, an interactive loop and run history.
package sqlcopilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/evaluate"
	"github.com/sqlcopilot/sqlcopilot/internal/history"
	historypostgres "github.com/sqlcopilot/sqlcopilot/internal/history/postgres"
	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
	"github.com/sqlcopilot/sqlcopilot/internal/storage"
	s3store "github.com/sqlcopilot/sqlcopilot/internal/storage/s3"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type GeneratorFactory func(ctx context.Context, variant nl2sql.Variant) (nl2sql.Generator, error)

type Evaluator interface {
	Evaluate(ctx context.Context, sqlText string) report.Outcome
	EvaluateFile(ctx context.Context, input, output string, opts evaluate.FileOptions) (evaluate.FileReport, error)
	Close() error
}

type EvaluatorFactory func(cfg config.DatabaseConfig, logger *slog.Logger) Evaluator

// HistoryFactory opens the run store. The returned func releases it.
type HistoryFactory func(ctx context.Context, cfg config.HistoryConfig) (history.Store, func() error, error)

type ReportArchiver interface {
	ArchiveFile(ctx context.Context, meta storage.ReportMeta, localPath string) (storage.ArchivedReport, error)
	Fetch(ctx context.Context, key, destPath string) (storage.ArchivedReport, error)
}

type ArchiveFactory func(ctx context.Context, cfg config.ObjectStoreConfig) (ReportArchiver, error)

type Options struct {
	Config config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	NewGenerator GeneratorFactory
	NewEvaluator EvaluatorFactory
	OpenHistory  HistoryFactory
	OpenArchive  ArchiveFactory
	Now          func() time.Time
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

type app struct {
	opts   Options
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	ui     *ui

	metricsFile string
}

// Run executes the command line and returns the process exit code: 0 on
// success, 1 when a step failed and 2 on usage errors.
func Run(ctx context.Context, args []string, opts Options) int {
	a := newApp(opts)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(opts.Stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if flushErr := observability.WriteMetricsFile(a.metricsFile); flushErr != nil {
		a.ui.failure(a.stderr, "write metrics file: "+flushErr.Error())
		if err == nil {
			err = flushErr
		}
	}
	if err == nil {
		return exitOK
	}
	var usage usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "Error: %v\n\n", err)
		fmt.Fprint(a.stderr, root.UsageString())
		return exitUsage
	}
	a.ui.failure(a.stderr, err.Error())
	return exitFailure
}

func newApp(opts Options) *app {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = observability.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewGenerator == nil {
		cfg, logger := opts.Config, opts.Logger
		opts.NewGenerator = func(ctx context.Context, variant nl2sql.Variant) (nl2sql.Generator, error) {
			return nl2sql.NewGenerator(ctx, variant, nl2sql.Options{Config: cfg, Logger: logger})
		}
	}
	if opts.NewEvaluator == nil {
		opts.NewEvaluator = func(cfg config.DatabaseConfig, logger *slog.Logger) Evaluator {
			return evaluate.New(cfg, logger)
		}
	}
	if opts.OpenHistory == nil {
		opts.OpenHistory = openPostgresHistory
	}
	if opts.OpenArchive == nil {
		opts.OpenArchive = openS3Archive
	}
	return &app{
		opts:   opts,
		cfg:    opts.Config,
		logger: opts.Logger,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		ui:     newUI(opts.Stdout),
	}
}

func (a *app) rootCommand() *cobra.Command {
	var model string
	root := &cobra.Command{
		Use:           "sqlcopilot",
		Short:         "Generate SQL from natural-language questions and check that it runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.interactive(cmd.Context(), model, cmd.Flags().Changed("model"))
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", a.cfg.Observability.MetricsFile, "write Prometheus metrics to this file on exit")
	root.Flags().StringVar(&model, "model", string(nl2sql.VariantTurbo), "generator variant: qwen_turbo|qwen_coder|local_qwen")

	root.AddCommand(
		a.generateCommand(),
		a.evaluateCommand(),
		a.fullCommand(),
		a.interactiveCommand(),
		a.runsCommand(),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%q accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func parseVariant(raw string) (nl2sql.Variant, error) {
	variant, err := nl2sql.ParseVariant(raw)
	if err != nil {
		return "", usageError{err: err}
	}
	return variant, nil
}

// defaultReportPath is <output dir>/sql_result_<variant>.xlsx.
func (a *app) defaultReportPath(variant nl2sql.Variant) string {
	return filepath.Join(a.cfg.Files.OutputDir, "sql_result_"+string(variant)+".xlsx")
}

func openPostgresHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, func() error, error) {
	db, err := historypostgres.Open(ctx, historypostgres.DBConfig{DSN: cfg.DSN})
	if err != nil {
		return nil, nil, err
	}
	return historypostgres.NewRepository(db), db.Close, nil
}

func openS3Archive(ctx context.Context, cfg config.ObjectStoreConfig) (ReportArchiver, error) {
	store, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewArchiver(store), nil
}
