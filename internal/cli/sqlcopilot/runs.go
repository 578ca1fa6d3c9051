package sqlcopilot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sqlcopilot/sqlcopilot/internal/batch"
	"github.com/sqlcopilot/sqlcopilot/internal/history"
)

func (a *app) runsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded generation runs",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return usagef("--limit must be positive")
			}
			return a.withHistory(cmd.Context(), func(store history.Store) error {
				return a.listRuns(cmd.Context(), store, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the questions, SQL and outcomes of one run",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return usagef("invalid run id %q", args[0])
			}
			return a.withHistory(cmd.Context(), func(store history.Store) error {
				return a.showRun(cmd.Context(), store, id)
			})
		},
	}

	fetch := &cobra.Command{
		Use:   "fetch <archive-key> <dest>",
		Short: "Download an archived report",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver, err := a.opts.OpenArchive(cmd.Context(), a.cfg.ObjectStore)
			if err != nil {
				return fmt.Errorf("open report archive: %w", err)
			}
			fetched, err := archiver.Fetch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			a.ui.success(a.stdout, fmt.Sprintf("Fetched %s (%d bytes, run %s) to %s", fetched.Key, fetched.Size, fetched.Meta.RunID, args[1]))
			return nil
		},
	}

	cmd.AddCommand(show, fetch)
	return cmd
}

func (a *app) withHistory(ctx context.Context, fn func(history.Store) error) error {
	if !a.cfg.History.Enabled {
		return errors.New("run history is disabled (set SQLCOPILOT_HISTORY_ENABLED=true)")
	}
	store, closeStore, err := a.opts.OpenHistory(ctx, a.cfg.History)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer func() { _ = closeStore() }()
	return fn(store)
}

func (a *app) listRuns(ctx context.Context, store history.Store, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		a.ui.note(a.stdout, "No runs recorded yet.")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID.String(),
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.Variant,
			run.Model,
			strconv.Itoa(run.Total),
			run.Score().String(),
			batch.FormatSeconds(run.TotalSeconds),
		})
	}
	a.ui.table(a.stdout, []string{"ID", "Created", "Variant", "Model", "Questions", "Score", "Time"}, rows)
	return nil
}

func (a *app) showRun(ctx context.Context, store history.Store, id uuid.UUID) error {
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return err
	}

	summary := run.Summary()
	a.ui.section(a.stdout, "Run "+run.ID.String())
	fmt.Fprintf(a.stdout, "Variant: %s (%s)\n", run.Variant, run.Model)
	fmt.Fprintf(a.stdout, "Created: %s\n", run.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(a.stdout, "Total time: %s\n", batch.FormatSeconds(summary.TotalSeconds))
	fmt.Fprintf(a.stdout, "Score: %s\n", summary.Score())
	if run.ReportPath != "" {
		fmt.Fprintf(a.stdout, "Report: %s\n", run.ReportPath)
	}
	if run.ArchiveKey != "" {
		fmt.Fprintf(a.stdout, "Archive key: %s\n", run.ArchiveKey)
	}

	rows := make([][]string, 0, len(run.Entries))
	for i, entry := range run.Entries {
		runnable := "-"
		if entry.Evaluation != nil {
			runnable = entry.Evaluation.Marker()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			entry.Generation.Question,
			entry.Generation.SQL,
			batch.FormatSeconds(entry.Generation.ElapsedSeconds),
			runnable,
		})
	}
	a.ui.table(a.stdout, []string{"#", "Question", "SQL", "Time", "Runnable"}, rows)
	return nil
}
