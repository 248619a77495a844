package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/config"
)

func NewRefreshCommand(cfg *config.Config) *cobra.Command {
	return newRefreshCommand(cfg, &wiring{})
}

func newRefreshCommand(cfg *config.Config, w *wiring) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every configured secret into the cache",
		Long: `Fetch the current value and next rotation date of every secret in
AWS_SECRET_IDS, write them to the cache and email the recipient.

refresh does not touch the crontab; run check to arm triggers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if jsonOutput {
				out = cmd.ErrOrStderr()
			}
			rt, err := w.setup(cfg, out)
			if err != nil {
				return err
			}

			report := rt.refresher().Run(cmd.Context(), rt.settings.SecretIDs)
			rt.finish("refresh", report)

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")

	return cmd
}
