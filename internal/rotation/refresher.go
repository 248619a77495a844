package rotation

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/systmms/secretcron/internal/cache"
	dserrors "github.com/systmms/secretcron/internal/errors"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/metrics"
	"github.com/systmms/secretcron/internal/providers"
)

// Notifier sends an operator email. It returns false without error when the
// email was skipped, e.g. for an invalid recipient.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) (bool, error)
}

// Refresher fetches secrets from a source and writes them to the cache.
type Refresher struct {
	source   providers.SecretSource
	store    *cache.Store
	notifier Notifier

	out     io.Writer
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	label   string
	backoff func() backoff.BackOff
}

// Option configures a Refresher or Checker.
type Option func(*options)

type options struct {
	out     io.Writer
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	label   string
	backoff func() backoff.BackOff
}

// WithOutput sets where operator status lines are printed.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records counters for the run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSourceLabel sets the store name used in email subjects.
func WithSourceLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithBackOff sets the retry policy for transient provider errors. Each
// provider call gets a fresh policy from newBackOff.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *options) {
		if newBackOff != nil {
			o.backoff = newBackOff
		}
	}
}

// DefaultBackOff retries up to three times over at most 30 seconds.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

func buildOptions(opts []Option) options {
	o := options{
		out:     io.Discard,
		logger:  logging.Discard(),
		now:     time.Now,
		label:   "secretcron",
		backoff: DefaultBackOff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SourceLabel returns the human name of a provider type for email subjects.
func SourceLabel(providerType string) string {
	switch providerType {
	case providers.TypeSecretsManager:
		return "AWS Secret Manager"
	case providers.TypeSSM:
		return "AWS Parameter Store"
	case providers.TypeGCPSecretManager:
		return "Google Secret Manager"
	case providers.TypeVault:
		return "Vault"
	default:
		return "secretcron"
	}
}

// NewRefresher returns a refresher.
func NewRefresher(source providers.SecretSource, store *cache.Store, notifier Notifier, opts ...Option) *Refresher {
	o := buildOptions(opts)
	return &Refresher{
		source:   source,
		store:    store,
		notifier: notifier,
		out:      o.out,
		logger:   o.logger,
		metrics:  o.metrics,
		now:      o.now,
		label:    o.label,
		backoff:  o.backoff,
	}
}

// Run refreshes every id independently and reports each outcome.
func (r *Refresher) Run(ctx context.Context, ids []string) *Report {
	report := NewReport(r.now())
	for _, id := range ids {
		report.Add(r.RefreshOne(ctx, id))
	}
	report.FinishedAt = r.now()
	r.metrics.MarkRun(report.FinishedAt)
	return report
}

// RefreshOne fetches id, caches it and emails the recipient. Failures are
// logged and returned in the result, never as a panic or error return.
func (r *Refresher) RefreshOne(ctx context.Context, id string) Result {
	res := Result{SecretID: id}

	var value providers.SecretValue
	err := r.retry(ctx, "GetSecret", id, func() (err error) {
		value, err = r.source.GetSecret(ctx, id)
		return err
	})
	if err != nil {
		r.logger.Error("Error retrieving secret %s: %v", id, err)
		res.fail(err)
		r.metrics.RecordRefresh(string(OutcomeFailed))
		return res
	}
	if !value.IsString {
		r.logger.Warn("Secret %s has no string value; binary secrets are not cached", id)
		res.Outcome = OutcomeSkipped
		res.Message = "secret has no string value"
		r.metrics.RecordRefresh(string(OutcomeSkipped))
		return res
	}
	r.logger.Debug("Fetched %s version %q: %s", id, value.Version, logging.Secret(value.Value))

	var next *time.Time
	err = r.retry(ctx, "NextRotationDate", id, func() (err error) {
		next, err = r.source.NextRotationDate(ctx, id)
		return err
	})
	if err != nil {
		r.logger.Error("Error reading rotation schedule for %s: %v", id, err)
		res.fail(err)
		r.metrics.RecordRefresh(string(OutcomeFailed))
		return res
	}

	rec := &cache.Record{
		Secret:           cache.EncodeSecret(value.Value),
		NextRotationDate: next,
	}
	if err := r.store.Save(id, rec); err != nil {
		r.logger.Error("Error writing cache for %s: %v", id, err)
		res.fail(err)
		r.metrics.RecordRefresh(string(OutcomeFailed))
		return res
	}
	res.Outcome = OutcomeRefreshed
	res.NextRotation = next
	r.metrics.RecordRefresh(string(OutcomeRefreshed))
	if next != nil {
		r.metrics.SetNextRotation(id, *next)
	}

	subject := fmt.Sprintf("%s: Secret Refreshed", r.label)
	body := fmt.Sprintf("The secret for %s has been refreshed and stored in the cache.\n\nNext rotation date: %s", id, formatDate(next))
	sent, err := r.notifier.Notify(ctx, subject, body)
	if err != nil {
		r.logger.Error("Error sending email for %s: %v", id, err)
		res.Message = "cache written but email failed"
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.EmailSent = sent

	if sent {
		fmt.Fprintf(r.out, "Secret %s refreshed, stored in file cache, and email sent.\n", id)
	} else {
		fmt.Fprintf(r.out, "Secret %s refreshed and stored in file cache.\n", id)
	}
	return res
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "not set"
	}
	return t.UTC().Format(time.RFC3339)
}

// retry runs call until it succeeds, fails with a non-transient error or the
// backoff policy gives up.
func (r *Refresher) retry(ctx context.Context, op, id string, call func() error) error {
	attempt := func() error {
		err := call()
		if err != nil && !dserrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("%s for %s failed, retrying in %s: %v", op, id, wait.Round(time.Millisecond), err)
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(r.backoff(), ctx), notify)
}
