package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/config"
)

func NewTriggersCommand(cfg *config.Config) *cobra.Command {
	return newTriggersCommand(cfg, &wiring{})
}

func newTriggersCommand(cfg *config.Config, w *wiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Inspect and remove secretcron crontab entries",
		Long: `Manage the one-shot crontab entries check arms. Only lines carrying
the "# secretcron:<id>" marker are listed; other crontab lines are never touched.`,
	}

	cmd.AddCommand(
		newTriggersListCommand(cfg, w),
		newTriggersClearCommand(cfg, w),
	)

	return cmd
}

func newTriggersListCommand(cfg *config.Config, w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List armed triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := w.setup(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			entries, err := rt.scheduler.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No triggers armed.")
				return nil
			}

			now := rt.now().In(rt.scheduler.Location())
			tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "SECRET\tSCHEDULE\tFIRES\tCOMMAND")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.SecretID,
					e.Schedule,
					e.Time(now).Format("2006-01-02 15:04 MST"),
					e.Invocation(),
				)
			}
			return tw.Flush()
		},
	}
}

func newTriggersClearCommand(cfg *config.Config, w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [secret-id]",
		Short: "Remove the trigger for one secret, or all triggers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := w.setup(cfg, out)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var ids []string
			if len(args) == 1 {
				ids = args
			} else {
				entries, err := rt.scheduler.List(ctx)
				if err != nil {
					return err
				}
				seen := make(map[string]bool)
				for _, e := range entries {
					if !seen[e.SecretID] {
						seen[e.SecretID] = true
						ids = append(ids, e.SecretID)
					}
				}
			}

			if len(ids) == 0 {
				fmt.Fprintln(out, "No triggers armed.")
				return nil
			}

			for _, id := range ids {
				removed, err := rt.scheduler.Disarm(ctx, id)
				rt.metrics.RecordTrigger("disarm", err)
				if err != nil {
					return fmt.Errorf("failed to clear trigger for %s: %w", id, err)
				}
				rt.logger.Info("Cleared %d trigger(s) for %s", removed, id)
			}
			return nil
		},
	}
}
