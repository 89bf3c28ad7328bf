package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/querypilot/querypilot/internal/app"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/history"
)

func newHistoryCommand(stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent interactions from the history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv("querypilot")
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if strings.TrimSpace(cfg.History.DSN) == "" {
				return fmt.Errorf("QUERYPILOT_HISTORY_DSN is required")
			}
			if limit <= 0 {
				limit = cfg.History.RecentLimit
			}

			db, err := app.OpenHistoryDB(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			entries, err := history.NewRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeHistory(stdout, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of interactions to show (default QUERYPILOT_HISTORY_RECENT_LIMIT)")
	return cmd
}

func writeHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No interactions recorded yet.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"When", "Source", "Outcome", "Rows", "Question", "SQL"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, entry := range entries {
		table.Append([]string{
			entry.OccurredAt.Local().Format(time.DateTime),
			entry.Source,
			entry.Outcome,
			strconv.FormatInt(entry.RowCount, 10),
			entry.Question,
			oneLine(entry.SQL),
		})
	}
	table.Render()
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
