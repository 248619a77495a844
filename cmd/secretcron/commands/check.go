package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/config"
)

func NewCheckCommand(cfg *config.Config) *cobra.Command {
	return newCheckCommand(cfg, &wiring{})
}

func newCheckCommand(cfg *config.Config, w *wiring) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check [secret-id]",
		Short: "Refresh due secrets and re-arm their crontab triggers",
		Long: `Check the cached rotation date of each secret.

For every secret ID (or only the one given as an argument) check removes the
one-shot crontab trigger that fired it, then:
- refreshes the secret if the cache is missing or the rotation date has passed,
  and arms a trigger for the new rotation date
- arms a trigger for the cached rotation date if it is still in the future
- leaves the secret alone if the cache has no rotation date

Failures are reported per secret and never stop the other secrets.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
				if id == "" {
					return fmt.Errorf("secret ID must not be empty")
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				out = cmd.ErrOrStderr()
			}
			rt, err := w.setup(cfg, out)
			if err != nil {
				return err
			}

			ids := rt.settings.SecretIDs
			if len(args) == 1 {
				ids = []string{id}
			}

			report := rt.checker().Run(cmd.Context(), ids)
			rt.finish("check", report)

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")

	return cmd
}
