// Package repl is the interactive question loop of the querypilot command.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/querypilot/querypilot/internal/history"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/query"
)

const (
	Banner = "Welcome to the Enhanced AI BigQuery Agent!"
	Prompt = "Ask your question or type 'exit' to quit: "
)

type Asker interface {
	Run(ctx context.Context, question string) pipeline.Outcome
}

type InteractionRecorder interface {
	Record(ctx context.Context, outcome pipeline.Outcome) error
}

type Options struct {
	Asker          Asker
	In             io.Reader
	Stdout         io.Writer
	Stderr         io.Writer
	Logger         *slog.Logger
	InteractionLog InteractionRecorder
	History        history.Store
	PreviewRows    int
	// RenderTable prints a full result. It defaults to a plain text table.
	RenderTable func(w io.Writer, result query.Result) error
	// Busy starts a progress indicator and returns the function that stops
	// it. It is active while the pipeline runs.
	Busy func(message string) (stop func())
}

// Run loops until the user types exit or input ends. Per-question failures
// are printed and never end the loop. The return value is the process exit
// code.
func Run(ctx context.Context, opts Options) int {
	stdout := writerOr(opts.Stdout)
	stderr := writerOr(opts.Stderr)
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Asker == nil {
		_, _ = fmt.Fprintln(stderr, "question pipeline is not configured")
		return 1
	}
	if opts.RenderTable == nil {
		opts.RenderTable = RenderPlainTable
	}

	done := make(chan struct{})
	defer close(done)
	lines := readLines(opts.In, done)
	_, _ = fmt.Fprintln(stdout, Banner)
	for {
		_, _ = fmt.Fprint(stdout, "\n"+Prompt)

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stdout, "\nGoodbye!")
			return 130
		case line, ok = <-lines:
		}
		if !ok {
			_, _ = fmt.Fprintln(stdout)
			return 0
		}
		if strings.EqualFold(strings.TrimSpace(line), "exit") {
			_, _ = fmt.Fprintln(stdout, "Goodbye!")
			return 0
		}

		outcome := ask(ctx, opts, stdout, line)
		present(stdout, opts.RenderTable, outcome, logger)
		record(ctx, opts, logger, outcome)
	}
}

func ask(ctx context.Context, opts Options, stdout io.Writer, question string) pipeline.Outcome {
	_, _ = fmt.Fprintln(stdout, "\nProcessing your request...")
	stop := func() {}
	if opts.Busy != nil {
		stop = opts.Busy("Processing your request...")
	}
	defer stop()
	return opts.Asker.Run(ctx, question)
}

func present(stdout io.Writer, render func(io.Writer, query.Result) error, outcome pipeline.Outcome, logger *slog.Logger) {
	if outcome.Kind == pipeline.KindEmptyQuestion || outcome.Kind == pipeline.KindLLMCallFailure {
		_, _ = fmt.Fprintln(stdout, outcome.Text())
		return
	}

	_, _ = fmt.Fprintf(stdout, "\nGenerated SQL Query:\n%s\n", outcome.SQL)
	_, _ = fmt.Fprintln(stdout, "\nQuerying BigQuery...")
	if outcome.Kind != pipeline.KindRows || outcome.Table == nil {
		_, _ = fmt.Fprintln(stdout, outcome.Text())
		return
	}

	_, _ = fmt.Fprintln(stdout, "\nQuery Results:")
	if err := render(stdout, *outcome.Table); err != nil {
		logger.Warn("failed to render query results", "error", err)
		_ = RenderPlainTable(stdout, *outcome.Table)
	}
}

// record writes the outcome to the interaction log and history. Failures are
// logged and counted, never returned.
func record(ctx context.Context, opts Options, logger *slog.Logger, outcome pipeline.Outcome) {
	if opts.InteractionLog != nil {
		if err := opts.InteractionLog.Record(ctx, outcome); err != nil {
			observability.IncrementInteractionLogFailure()
			logger.Error("failed to write interaction log", "error", err)
		}
	}
	if opts.History != nil {
		entry := history.EntryFromOutcome(outcome, history.SourceCLI, opts.PreviewRows)
		if _, err := opts.History.Record(ctx, entry); err != nil {
			logger.Error("failed to record interaction history", "error", err)
		}
	}
}

func RenderPlainTable(w io.Writer, result query.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(result.Columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(result.StringRows())
	table.Render()
	return nil
}

// readLines feeds input lines to a channel so the loop can also watch ctx.
// It stops once done is closed.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		if in == nil {
			return
		}
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
