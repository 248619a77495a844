package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/cache"
	"github.com/systmms/secretcron/internal/config"
	"github.com/systmms/secretcron/internal/history"
	"github.com/systmms/secretcron/internal/rotation"
	"gopkg.in/yaml.v3"
)

// SecretStatus is one row of status output.
type SecretStatus struct {
	SecretID         string         `json:"secretId" yaml:"secretId"`
	State            rotation.State `json:"state" yaml:"state"`
	NextRotationDate *time.Time     `json:"nextRotationDate,omitempty" yaml:"nextRotationDate,omitempty"`
	Trigger          string         `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	TriggerAt        *time.Time     `json:"triggerAt,omitempty" yaml:"triggerAt,omitempty"`
	CacheError       string         `json:"cacheError,omitempty" yaml:"cacheError,omitempty"`
	LastRun          *history.Entry `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
}

func NewStatusCommand(cfg *config.Config) *cobra.Command {
	return newStatusCommand(cfg, &wiring{})
}

func newStatusCommand(cfg *config.Config, w *wiring) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache and trigger state for each secret",
		Long: `Show the lifecycle state of every configured secret.

States:
  NO_CACHE             no usable cache record
  CACHED_WITHOUT_DATE  cached, but the store reported no rotation date
  CACHED_WITH_DATE     cached with a rotation date, no trigger armed
  ARMED                cached with a rotation date and a crontab trigger`,
		Args: cobra.NoArgs,
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
			statuses, err := collectStatus(cmd.Context(), rt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, statuses)
			case "yaml":
				return writeYAML(out, statuses)
			default:
				return writeStatusTable(out, statuses, rt.now())
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, yaml")

	return cmd
}

func collectStatus(ctx context.Context, rt *runtime) ([]SecretStatus, error) {
	entries, err := rt.scheduler.List(ctx)
	if err != nil {
		return nil, err
	}

	now := rt.now().In(rt.scheduler.Location())
	statuses := make([]SecretStatus, 0, len(rt.settings.SecretIDs))
	for _, id := range rt.settings.SecretIDs {
		st := SecretStatus{SecretID: id}

		rec, err := rt.store.Load(id)
		found := err == nil
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			st.CacheError = err.Error()
		}
		if found && rec.HasRotationDate() {
			next := rec.NextRotationDate.UTC()
			st.NextRotationDate = &next
		}

		armed := false
		for _, e := range entries {
			if e.SecretID != id {
				continue
			}
			armed = true
			st.Trigger = e.Schedule.String()
			at := e.Time(now)
			st.TriggerAt = &at
			break
		}

		if rt.history != nil {
			last, err := rt.history.Latest(id)
			if err != nil {
				rt.logger.Debug("No history for %s: %v", id, err)
			}
			st.LastRun = last
		}

		st.State = rotation.StateOf(rec, found, armed)
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func writeStatusTable(out io.Writer, statuses []SecretStatus, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	fmt.Fprintln(w, "SECRET\tSTATE\tNEXT ROTATION\tTRIGGER\tLAST RUN")
	fmt.Fprintln(w, "------\t-----\t-------------\t-------\t--------")
	for _, st := range statuses {
		next := "Not set"
		if st.NextRotationDate != nil {
			next = fmt.Sprintf("%s (%s)", st.NextRotationDate.Format(time.RFC3339), formatRelative(*st.NextRotationDate, now))
		}
		trigger := "-"
		if st.Trigger != "" {
			trigger = st.Trigger
		}
		last := "Never"
		if st.LastRun != nil {
			last = fmt.Sprintf("%s %s (%s)", st.LastRun.Command, st.LastRun.Outcome, formatRelative(st.LastRun.Timestamp, now))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", st.SecretID, st.State, next, trigger, last)
		if st.CacheError != "" {
			fmt.Fprintf(w, "  └─ %s\n", st.CacheError)
		}
	}
	return w.Flush()
}

func formatRelative(t, now time.Time) string {
	diff := t.Sub(now)
	past := diff < 0
	if past {
		diff = -diff
	}

	var s string
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		s = fmt.Sprintf("%d min", int(diff.Minutes()))
	case diff < 24*time.Hour:
		s = fmt.Sprintf("%d hr", int(diff.Hours()))
	default:
		s = fmt.Sprintf("%d days", int(diff.Hours()/24))
	}
	if past {
		return s + " ago"
	}
	return "in " + s
}

func writeYAML(out io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
