package sqlcopilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlcopilot/sqlcopilot/internal/batch"
	"github.com/sqlcopilot/sqlcopilot/internal/evaluate"
	"github.com/sqlcopilot/sqlcopilot/internal/history"
	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
	"github.com/sqlcopilot/sqlcopilot/internal/storage"
)

type pipelineFlags struct {
	model     string
	input     string
	output    string
	qaFile    string
	tableDesc string
	archive   bool
}

func (a *app) bindPipelineFlags(cmd *cobra.Command, f *pipelineFlags) {
	cmd.Flags().StringVar(&f.model, "model", string(nl2sql.VariantTurbo), "generator variant: qwen_turbo|qwen_coder|local_qwen")
	cmd.Flags().StringVar(&f.input, "input", "", "report file to evaluate (default <output dir>/sql_result_<model>.xlsx)")
	cmd.Flags().StringVar(&f.output, "output", "", "report file to write")
	cmd.Flags().StringVar(&f.qaFile, "qa-file", a.cfg.Files.Questions, "question list file")
	cmd.Flags().StringVar(&f.tableDesc, "table-desc", a.cfg.Files.TableDescription, "table description file")
	cmd.Flags().BoolVar(&f.archive, "archive", a.cfg.ObjectStore.ArchiveReports, "upload the written report to object storage")
}

func (a *app) generateCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate SQL for every question in the question file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := parseVariant(f.model)
			if err != nil {
				return err
			}
			a.ui.banner(a.stdout, "SQL Copilot")
			run, err := a.generate(cmd.Context(), variant, f)
			if run == nil {
				return err
			}
			return errors.Join(err, a.record(cmd.Context(), run, f.archive))
		},
	}
	a.bindPipelineFlags(cmd, &f)
	return cmd
}

func (a *app) evaluateCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Execute the SQL column of a report file and score it",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := parseVariant(f.model)
			if err != nil {
				return err
			}
			input := f.input
			if input == "" {
				input = a.defaultReportPath(variant)
			}
			a.ui.banner(a.stdout, "SQL Copilot")
			run, err := a.evaluate(cmd.Context(), variant, input, f.output)
			if err != nil {
				return err
			}
			return a.record(cmd.Context(), run, f.archive)
		},
	}
	a.bindPipelineFlags(cmd, &f)
	return cmd
}

func (a *app) fullCommand() *cobra.Command {
	var f pipelineFlags
	cmd := &cobra.Command{
		Use:   "full",
		Short: "Generate SQL, then evaluate the generated report",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			variant, err := parseVariant(f.model)
			if err != nil {
				return err
			}
			a.ui.banner(a.stdout, "SQL Copilot")
			return a.full(cmd.Context(), variant, f)
		},
	}
	a.bindPipelineFlags(cmd, &f)
	return cmd
}

// pipelineRun is the outcome of one pipeline step. path is empty when no
// report file was written.
type pipelineRun struct {
	variant nl2sql.Variant
	model   string
	path    string
	report  report.BatchReport
}

// generate returns a partial run alongside the error when questions were
// answered but the report could not be written.
func (a *app) generate(ctx context.Context, variant nl2sql.Variant, f pipelineFlags) (*pipelineRun, error) {
	a.ui.section(a.stdout, "Generating SQL with model: "+string(variant))

	tableDescription, err := batch.ReadTableDescription(f.tableDesc)
	if err != nil {
		return nil, err
	}
	questions, err := batch.LoadQuestions(f.qaFile)
	if err != nil {
		return nil, err
	}
	a.ui.note(a.stdout, fmt.Sprintf("Loaded %d questions", len(questions)))

	generator, err := a.opts.NewGenerator(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", variant, err)
	}
	model := string(variant)
	if named, ok := generator.(interface{ Model() string }); ok {
		model = named.Model()
	}

	path := f.output
	if path == "" {
		path = a.defaultReportPath(variant)
	}
	results, err := batch.NewRunner(generator, a.logger, a.stdout).RunToFile(ctx, questions, tableDescription, path)
	run := &pipelineRun{variant: variant, model: model, path: path, report: report.NewBatchReport(results)}
	total, average := batch.Summary(results)
	if err != nil {
		run.path = ""
		a.ui.failure(a.stderr, fmt.Sprintf("%d generated queries could not be saved to %s", len(results), path))
		fmt.Fprintf(a.stdout, "Total time: %.2fs\n", total)
		return run, err
	}

	a.ui.success(a.stdout, "SQL generation complete. Results saved to: "+path)
	fmt.Fprintf(a.stdout, "Total time: %.2fs\n", total)
	fmt.Fprintf(a.stdout, "Average time: %.2fs/question\n", average)
	return run, nil
}

// evaluate scores a report file and returns the generations it reloaded
// from it. An empty output overwrites the input.
func (a *app) evaluate(ctx context.Context, variant nl2sql.Variant, input, output string) (*pipelineRun, error) {
	a.ui.section(a.stdout, "Evaluating SQL results")
	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("input file does not exist: %s (run generate first or pass --input)", input)
		}
		return nil, fmt.Errorf("stat input: %w", err)
	}

	evaluator := a.opts.NewEvaluator(a.cfg.Database, a.logger)
	defer func() { _ = evaluator.Close() }()

	fileReport, err := evaluator.EvaluateFile(ctx, input, output, evaluate.FileOptions{
		OnRow: func(row evaluate.RowResult) {
			fmt.Fprintf(a.stdout, "[%d/%d] %s\n", row.Index, row.Total, a.ui.verdict(row.Marker))
		},
	})
	if err != nil {
		return nil, err
	}

	a.ui.success(a.stdout, "Evaluation complete. Results saved to: "+fileReport.Output)
	fmt.Fprintf(a.stdout, "Success rate: %s\n", fileReport.Score)
	return &pipelineRun{variant: variant, model: string(variant), path: fileReport.Output, report: fileReport.Report}, nil
}

// full runs both steps. A failed generation is reported and evaluation
// still runs against whatever report already exists at the path.
func (a *app) full(ctx context.Context, variant nl2sql.Variant, f pipelineFlags) error {
	var errs []error
	gen, genErr := a.generate(ctx, variant, f)
	if genErr != nil {
		a.ui.failure(a.stderr, "generation failed: "+genErr.Error())
		errs = append(errs, genErr)
	}

	input := f.input
	switch {
	case input != "":
	case gen != nil && gen.path != "":
		input = gen.path
	case f.output != "":
		input = f.output
	default:
		input = a.defaultReportPath(variant)
	}
	evaluated, evalErr := a.evaluate(ctx, variant, input, "")
	if evalErr != nil {
		a.ui.failure(a.stderr, "evaluation failed: "+evalErr.Error())
		errs = append(errs, evalErr)
	}

	// The evaluated report only describes this run when it is the file
	// generate just wrote.
	run := gen
	if evaluated != nil && (gen == nil || input == gen.path) {
		run = evaluated
		if gen != nil {
			run.model = gen.model
		}
	}
	if run != nil {
		if err := a.record(ctx, run, f.archive); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record archives the report and stores the run when those features are
// enabled.
func (a *app) record(ctx context.Context, pr *pipelineRun, archive bool) error {
	run := history.NewRun(string(pr.variant), pr.model, pr.report, a.opts.Now())
	run.ReportPath = pr.path

	var errs []error
	switch {
	case archive && pr.path == "":
		a.ui.warning(a.stderr, "no report file was written; skipping archive")
	case archive:
		archiver, err := a.opts.OpenArchive(ctx, a.cfg.ObjectStore)
		if err == nil {
			var archived storage.ArchivedReport
			archived, err = archiver.ArchiveFile(ctx, storage.ReportMeta{RunID: run.ID, Variant: run.Variant, Model: run.Model}, pr.path)
			if err == nil {
				run.ArchiveKey = archived.Key
				a.ui.note(a.stdout, "Report archived as "+archived.Key)
			}
		}
		if err != nil {
			a.ui.warning(a.stderr, "archive report: "+err.Error())
			errs = append(errs, fmt.Errorf("archive report: %w", err))
		}
	}

	if a.cfg.History.Enabled {
		if err := a.saveRun(ctx, run); err != nil {
			a.ui.warning(a.stderr, "save run history: "+err.Error())
			errs = append(errs, fmt.Errorf("save run history: %w", err))
		} else {
			a.ui.note(a.stdout, "Run recorded as "+run.ID.String())
		}
	}
	a.logger.InfoContext(ctx, "run complete",
		slog.String("run_id", run.ID.String()),
		slog.String("variant", run.Variant),
		slog.String("score", run.Summary().Score().String()),
	)
	return errors.Join(errs...)
}

func (a *app) saveRun(ctx context.Context, run history.Run) error {
	store, closeStore, err := a.opts.OpenHistory(ctx, a.cfg.History)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return store.SaveRun(ctx, run)
}
