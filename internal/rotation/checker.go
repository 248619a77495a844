package rotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/systmms/secretcron/internal/cache"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/metrics"
)

// TriggerScheduler arms and disarms one-shot checker triggers.
type TriggerScheduler interface {
	Arm(ctx context.Context, at time.Time, secretID string) (bool, error)
	Disarm(ctx context.Context, secretID string) (int, error)
}

// Checker runs the rotation state machine for each secret.
type Checker struct {
	store     *cache.Store
	scheduler TriggerScheduler
	refresher *Refresher
	notifier  Notifier

	out     io.Writer
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	label   string
}

// NewChecker returns a checker.
func NewChecker(store *cache.Store, scheduler TriggerScheduler, refresher *Refresher, notifier Notifier, opts ...Option) *Checker {
	o := buildOptions(opts)
	return &Checker{
		store:     store,
		scheduler: scheduler,
		refresher: refresher,
		notifier:  notifier,
		out:       o.out,
		logger:    o.logger,
		metrics:   o.metrics,
		now:       o.now,
		label:     o.label,
	}
}

// Run checks every id independently and reports each outcome.
func (c *Checker) Run(ctx context.Context, ids []string) *Report {
	report := NewReport(c.now())
	for _, id := range ids {
		report.Add(c.CheckOne(ctx, id))
	}
	report.FinishedAt = c.now()
	c.metrics.MarkRun(report.FinishedAt)
	return report
}

// CheckOne disarms any trigger for id, then refreshes or re-arms it based on
// the cached rotation date.
func (c *Checker) CheckOne(ctx context.Context, id string) Result {
	_, err := c.scheduler.Disarm(ctx, id)
	c.metrics.RecordTrigger("disarm", err)
	if err != nil {
		c.logger.Error("Error removing temporary cron job for %s: %v", id, err)
	}

	rec, found := c.load(id)
	action := Decide(rec, found, c.now())
	c.logger.Debug("Decision for %s: %s", id, action)

	switch action {
	case ActionRefreshMissing:
		fmt.Fprintf(c.out, "Cache file not found for %s. Running the refresher.\n", id)
		return c.refreshAndReschedule(ctx, id, action)

	case ActionRefreshDue:
		return c.refreshAndReschedule(ctx, id, action)

	case ActionUnmanaged:
		fmt.Fprintf(c.out, "Next rotation date not set in cache for %s.\n", id)
		return Result{SecretID: id, Action: action, Outcome: OutcomeUnmanaged}

	default:
		res := Result{SecretID: id, Action: action, NextRotation: rec.NextRotationDate}
		c.metrics.SetNextRotation(id, *rec.NextRotationDate)
		if err := c.arm(ctx, *rec.NextRotationDate, id); err != nil {
			res.fail(err)
			return res
		}
		fmt.Fprintf(c.out, "Scheduled cron job for next rotation date for %s.\n", id)
		res.Outcome = OutcomeArmed
		res.Armed = true
		return res
	}
}

// load reads the cache record. Missing and malformed records both count as absent.
func (c *Checker) load(id string) (*cache.Record, bool) {
	rec, err := c.store.Load(id)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, cache.ErrNotFound):
		return nil, false
	default:
		c.logger.Warn("Cache file for %s is unusable, treating it as absent: %v", id, err)
		return nil, false
	}
}

func (c *Checker) refreshAndReschedule(ctx context.Context, id string, action Action) Result {
	res := c.refresher.RefreshOne(ctx, id)
	res.Action = action
	if res.Outcome != OutcomeRefreshed {
		return res
	}

	subject := fmt.Sprintf("%s: Secret Refreshed for %s", c.label, id)
	sent, err := c.notifier.Notify(ctx, subject, "The secret has been refreshed and stored in the cache.")
	if err != nil {
		c.logger.Error("Error sending email for %s: %v", id, err)
	}
	res.EmailSent = res.EmailSent || sent

	rec, found := c.load(id)
	if !found || !rec.HasRotationDate() {
		c.logger.Debug("No next rotation date for %s after refresh, not arming", id)
		return res
	}
	next := *rec.NextRotationDate
	res.NextRotation = &next
	if !next.After(c.now()) {
		c.logger.Warn("Next rotation date %s for %s is not in the future, not arming", next.Format(time.RFC3339), id)
		return res
	}

	if err := c.arm(ctx, next, id); err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Armed = true
	return res
}

func (c *Checker) arm(ctx context.Context, at time.Time, id string) error {
	_, err := c.scheduler.Arm(ctx, at, id)
	c.metrics.RecordTrigger("arm", err)
	if err != nil {
		c.logger.Error("Error scheduling cron job for %s: %v", id, err)
	}
	return err
}
