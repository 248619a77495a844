package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/config"
	"github.com/systmms/secretcron/internal/history"
)

func NewHistoryCommand(cfg *config.Config) *cobra.Command {
	return newHistoryCommand(cfg, &wiring{})
}

func newHistoryCommand(cfg *config.Config, w *wiring) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history [secret-id]",
		Short: "Show what recent check and refresh runs did",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unsupported format %q: use table, json or yaml", format)
			}

			rt, err := w.setup(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if rt.history == nil {
				return fmt.Errorf("history is disabled: HISTORY_DIR is empty")
			}

			var entries []history.Entry
			if len(args) == 1 {
				entries, err = rt.history.List(args[0], limit)
			} else {
				entries, err = rt.history.ListAll(limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, entries)
			case "yaml":
				return writeYAML(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history recorded.")
				return nil
			}
			return writeHistoryTable(out, entries, rt.now())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, yaml")

	return cmd
}

func writeHistoryTable(out io.Writer, entries []history.Entry, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "WHEN\tSECRET\tCOMMAND\tOUTCOME\tARMED\tEMAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			formatRelative(e.Timestamp, now),
			e.SecretID,
			e.Command,
			e.Outcome,
			yesNo(e.Armed),
			yesNo(e.EmailSent),
		)
		if e.Error != "" {
			fmt.Fprintf(w, "  └─ Error: %s\n", e.Error)
		}
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
