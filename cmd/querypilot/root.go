package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/querypilot/querypilot/internal/app"
	"github.com/querypilot/querypilot/internal/cli/repl"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/interactionlog"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
)

// exitError carries a process exit code through cobra without printing.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func execute(args []string) int {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	root := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "querypilot",
		Short:         "Ask questions about your warehouse in plain language",
		Long:          "querypilot turns each question into SQL with a language model, checks the referenced table, runs the query and prints the result.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code := runInteractive(cmd.Context(), stdin, stdout, stderr)
			if code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newHistoryCommand(stdout))
	return root
}

func runInteractive(parent context.Context, stdin io.Reader, stdout, stderr io.Writer) int {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.LoadFromEnv("querypilot")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}

	// Operational logs share the terminal with answers, so only warnings and
	// worse are shown.
	level := cfg.Observability.LogLevel
	if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := observability.NewLoggerWithLevel(cfg, stderr, level)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		return 1
	}
	defer func() { _ = rt.Close() }()

	interactions, err := interactionlog.Open(cfg.Interaction.LogPath, cfg.Interaction.PreviewRows)
	if err != nil {
		logger.Error("failed to open interaction log", slog.String("path", cfg.Interaction.LogPath), slog.Any("error", err))
		return 1
	}
	defer func() { _ = interactions.Close() }()

	options := repl.Options{
		Asker:          rt.Pipeline,
		In:             stdin,
		Stdout:         stdout,
		Stderr:         stderr,
		Logger:         logger,
		InteractionLog: interactions,
		History:        rt.History,
		PreviewRows:    cfg.Interaction.PreviewRows,
		RenderTable:    renderStyledTable,
		Busy:           startSpinner,
	}
	return repl.Run(ctx, options)
}

func startSpinner(message string) func() {
	spinner, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(message)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}

func renderStyledTable(w io.Writer, result query.Result) error {
	data := pterm.TableData{result.Columns}
	data = append(data, result.StringRows()...)
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
