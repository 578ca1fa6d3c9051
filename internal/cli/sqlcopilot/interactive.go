package sqlcopilot

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlcopilot/sqlcopilot/internal/batch"
	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

const interactiveHelp = `# SQL Copilot

Type a question in plain language and press enter. The generated SQL is
shown and you can choose to execute it against the configured database.

| Command | Action |
| --- | --- |
| help | show this help |
| quit, exit | leave the session |
`

var modelMenu = []nl2sql.Variant{nl2sql.VariantTurbo, nl2sql.VariantCoder, nl2sql.VariantLocal}

func (a *app) interactiveCommand() *cobra.Command {
	var (
		model     string
		tableDesc string
	)
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Ask questions one at a time and optionally run the generated SQL",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg.Files.TableDescription = tableDesc
			return a.interactive(cmd.Context(), model, cmd.Flags().Changed("model"))
		},
	}
	cmd.Flags().StringVar(&model, "model", string(nl2sql.VariantTurbo), "generator variant: qwen_turbo|qwen_coder|local_qwen")
	cmd.Flags().StringVar(&tableDesc, "table-desc", a.cfg.Files.TableDescription, "table description file")
	return cmd
}

type session struct {
	a         *app
	in        *bufio.Scanner
	generator nl2sql.Generator
	tableDesc string
	evaluator Evaluator
}

func (a *app) interactive(ctx context.Context, model string, modelChosen bool) error {
	in := bufio.NewScanner(a.opts.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	a.ui.banner(a.stdout, "SQL Copilot - interactive mode")

	var variant nl2sql.Variant
	if modelChosen {
		parsed, err := parseVariant(model)
		if err != nil {
			return err
		}
		variant = parsed
	} else {
		variant = a.chooseModel(in)
	}

	tableDescription, err := batch.ReadTableDescription(a.cfg.Files.TableDescription)
	if err != nil {
		return err
	}
	generator, err := a.opts.NewGenerator(ctx, variant)
	if err != nil {
		return fmt.Errorf("create %s generator: %w", variant, err)
	}
	a.ui.success(a.stdout, "Using model: "+string(variant))
	a.ui.note(a.stdout, "Type a question, 'help' for help or 'quit' to exit.")

	s := &session{a: a, in: in, generator: generator, tableDesc: tableDescription}
	defer s.close()
	return s.loop(ctx)
}

// chooseModel reads a menu choice. Anything unrecognised selects turbo.
func (a *app) chooseModel(in *bufio.Scanner) nl2sql.Variant {
	a.ui.section(a.stdout, "Choose a model")
	fmt.Fprintln(a.stdout, "1. qwen_turbo (recommended)")
	fmt.Fprintln(a.stdout, "2. qwen_coder")
	fmt.Fprintln(a.stdout, "3. local_qwen (requires local model)")
	fmt.Fprint(a.stdout, "Select 1-3: ")
	if !in.Scan() {
		fmt.Fprintln(a.stdout)
		return nl2sql.VariantTurbo
	}
	switch strings.TrimSpace(in.Text()) {
	case "2":
		return modelMenu[1]
	case "3":
		return modelMenu[2]
	default:
		return modelMenu[0]
	}
}

func (s *session) loop(ctx context.Context) error {
	out := s.a.stdout
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "\nQuestion> ")
		if !s.in.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(s.in.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			s.a.ui.note(out, "Goodbye.")
			return nil
		case "help":
			s.a.ui.renderMarkdown(out, interactiveHelp)
			continue
		}
		if err := s.ask(ctx, line); err != nil {
			return err
		}
	}
	if err := s.in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (s *session) ask(ctx context.Context, question string) error {
	out := s.a.stdout
	sqlText, elapsed := s.generator.Generate(ctx, question, s.tableDesc)
	if strings.TrimSpace(sqlText) == "" {
		s.a.ui.failure(out, "no SQL was generated, try rephrasing the question")
		return nil
	}
	s.a.ui.sqlBlock(out, sqlText)
	fmt.Fprintf(out, "Generated in %s\n", batch.FormatSeconds(report.RoundSeconds(elapsed.Seconds())))

	fmt.Fprint(out, "Execute this SQL? (y/n): ")
	if !s.in.Scan() {
		fmt.Fprintln(out)
		return nil
	}
	if answer := strings.ToLower(strings.TrimSpace(s.in.Text())); answer != "y" && answer != "yes" {
		return nil
	}

	if s.evaluator == nil {
		s.evaluator = s.a.opts.NewEvaluator(s.a.cfg.Database, s.a.logger)
	}
	outcome := s.evaluator.Evaluate(ctx, sqlText)
	if !outcome.Succeeded {
		s.a.ui.failure(out, "Execution failed: "+outcome.Content)
		return nil
	}
	s.a.ui.success(out, "Execution succeeded")
	if outcome.Kind == report.KindSuccess {
		s.a.ui.renderMarkdown(out, outcome.Content)
	} else {
		fmt.Fprintln(out, outcome.Content)
	}
	return nil
}

func (s *session) close() {
	if s.evaluator == nil {
		return
	}
	if err := s.evaluator.Close(); err != nil {
		s.a.ui.warning(s.a.stderr, "close evaluator: "+err.Error())
	}
}
