package crontab

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	dserrors "github.com/systmms/secretcron/internal/errors"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/pkg/exec"
)

// DefaultBuffer delays each trigger past the rotation instant so the provider
// has finished rotating when the checker runs.
const DefaultBuffer = time.Minute

// Scheduler reads and rewrites the crontab through a CommandExecutor.
// Read-modify-write is not atomic across processes.
type Scheduler struct {
	checker  string
	args     []string
	bin      string
	executor exec.CommandExecutor
	location *time.Location
	buffer   time.Duration
	out      io.Writer
	logger   *logging.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithExecutor sets the command executor. Tests pass an in-memory crontab.
func WithExecutor(e exec.CommandExecutor) Option {
	return func(s *Scheduler) {
		s.executor = e
	}
}

// WithArgs sets arguments rendered between the checker and "check", such as
// the --config file the current run was started with.
func WithArgs(args ...string) Option {
	return func(s *Scheduler) {
		s.args = append([]string(nil), args...)
	}
}

// WithBinary overrides the crontab executable.
func WithBinary(bin string) Option {
	return func(s *Scheduler) {
		if bin != "" {
			s.bin = bin
		}
	}
}

// WithLocation sets the zone cron interprets schedules in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithBuffer overrides DefaultBuffer.
func WithBuffer(d time.Duration) Option {
	return func(s *Scheduler) {
		s.buffer = d
	}
}

// WithOutput sets where status lines are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Scheduler) {
		if w != nil {
			s.out = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler returns a scheduler whose entries run "<checker> [args...] check <id>".
func NewScheduler(checker string, opts ...Option) *Scheduler {
	s := &Scheduler{
		checker:  checker,
		bin:      "crontab",
		executor: exec.DefaultExecutor(),
		location: time.Local,
		buffer:   DefaultBuffer,
		out:      io.Discard,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checker returns the executable used in trigger commands.
func (s *Scheduler) Checker() string {
	return s.checker
}

// Location returns the zone schedules are rendered in.
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// EntryFor returns the entry Arm would install for at and secretID.
func (s *Scheduler) EntryFor(at time.Time, secretID string) Entry {
	return NewEntry(at.Add(s.buffer).In(s.location), s.checker, secretID, s.args...)
}

// Arm installs a one-shot trigger for secretID at at plus the buffer. If the
// identical line is already present nothing is written; an entry for the same
// secret with another schedule is replaced. It reports whether the table changed.
func (s *Scheduler) Arm(ctx context.Context, at time.Time, secretID string) (bool, error) {
	if err := validateID(secretID); err != nil {
		return false, err
	}
	table, err := s.read(ctx)
	if err != nil {
		return false, err
	}

	line := s.EntryFor(at, secretID).String()
	existing := table.Keyed(secretID, s.checker, s.args...)
	if len(existing) == 1 && existing[0] == line {
		fmt.Fprintf(s.out, "Cron job already scheduled: %s\n", line)
		return false, nil
	}
	if len(existing) > 0 {
		s.logger.Debug("Replacing %d stale trigger(s) for %s", len(existing), secretID)
		table.Remove(secretID, s.checker, s.args...)
	}
	table.Append(line)

	if err := s.write(ctx, table); err != nil {
		return false, err
	}
	fmt.Fprintf(s.out, "Cron job scheduled: %s\n", line)
	return true, nil
}

// Disarm removes every trigger keyed to secretID and returns how many were
// removed. The table is rewritten even when nothing matched.
func (s *Scheduler) Disarm(ctx context.Context, secretID string) (int, error) {
	table, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	removed := table.Remove(secretID, s.checker, s.args...)
	if err := s.write(ctx, table); err != nil {
		return 0, err
	}
	fmt.Fprintln(s.out, "Temporary cron job removed.")
	s.logger.Debug("Disarmed %d trigger(s) for %s", removed, secretID)
	return removed, nil
}

// List returns every managed entry in the table.
func (s *Scheduler) List(ctx context.Context) ([]Entry, error) {
	table, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return table.Managed(), nil
}

// Lookup returns the managed entry for secretID, or nil.
func (s *Scheduler) Lookup(ctx context.Context, secretID string) (*Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].SecretID == secretID {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// Available checks that the crontab executable can be found.
func (s *Scheduler) Available() error {
	if _, err := s.executor.LookPath(s.bin); err != nil {
		return dserrors.WrapCommandNotFound(s.bin, err)
	}
	return nil
}

func (s *Scheduler) read(ctx context.Context) (*Table, error) {
	stdout, stderr, err := s.executor.Execute(ctx, s.bin, "-l")
	if err != nil {
		// crontab -l exits non-zero for a user that has never had a crontab.
		if strings.Contains(strings.ToLower(string(stderr)), "no crontab for") {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("failed to read crontab: %w", dserrors.NewCommandError(s.bin, err, stderr))
	}
	return ParseTable(stdout), nil
}

func (s *Scheduler) write(ctx context.Context, table *Table) error {
	_, stderr, err := s.executor.ExecuteWithInput(ctx, table.Bytes(), s.bin, "-")
	if err != nil {
		return fmt.Errorf("failed to install crontab: %w", dserrors.NewCommandError(s.bin, err, stderr))
	}
	return nil
}

func validateID(secretID string) error {
	if strings.TrimSpace(secretID) == "" {
		return fmt.Errorf("secret ID is required")
	}
	if strings.ContainsAny(secretID, "\r\n") {
		return fmt.Errorf("secret ID %q contains a line break", secretID)
	}
	return nil
}
