package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/systmms/secretcron/internal/cache"
	"github.com/systmms/secretcron/internal/config"
	"github.com/systmms/secretcron/internal/crontab"
	"github.com/systmms/secretcron/internal/history"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/metrics"
	"github.com/systmms/secretcron/internal/notify"
	"github.com/systmms/secretcron/internal/providers"
	"github.com/systmms/secretcron/internal/rotation"
	"github.com/systmms/secretcron/pkg/exec"
)

// wiring holds the collaborators commands talk to. Nil fields are built from
// configuration; tests set them to fakes.
type wiring struct {
	executor exec.CommandExecutor
	mailer   notify.Mailer
	source   providers.SecretSource
	sts      providers.STSClientAPI
	registry *providers.Registry
	now      func() time.Time
	location *time.Location
}

// runtime is everything one invocation needs, built from the loaded settings.
type runtime struct {
	settings  *config.Settings
	store     *cache.Store
	history   *history.Store
	scheduler *crontab.Scheduler
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	logger    *logging.Logger
	out       io.Writer
	now       func() time.Time
	label     string
	w         *wiring
}

func (w *wiring) setup(cfg *config.Config, out io.Writer) (*runtime, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	s := cfg.Settings

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := cache.NewStore(s.CacheDir)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	schedOpts := []crontab.Option{
		crontab.WithBinary(s.CrontabBin),
		crontab.WithOutput(out),
		crontab.WithLogger(logger),
		crontab.WithLocation(w.location),
	}
	if args := cfg.TriggerArgs(); len(args) > 0 {
		schedOpts = append(schedOpts, crontab.WithArgs(args...))
	}
	if w.executor != nil {
		schedOpts = append(schedOpts, crontab.WithExecutor(w.executor))
	}

	mailer := w.mailer
	if mailer == nil {
		mailer = newMailer(s)
	}

	now := w.now
	if now == nil {
		now = time.Now
	}

	var hist *history.Store
	if s.HistoryDir != "" {
		hist = history.NewStore(s.HistoryDir)
	}

	return &runtime{
		settings:  s,
		store:     store,
		history:   hist,
		scheduler: crontab.NewScheduler(s.CheckerPath, schedOpts...),
		notifier: notify.NewNotifier(mailer, s.RecipientEmail,
			notify.WithSender(s.Sender()),
			notify.WithOutput(out),
			notify.WithLogger(logger),
			notify.WithMetrics(m),
		),
		metrics: m,
		logger:  logger,
		out:     out,
		now:     now,
		label:   rotation.SourceLabel(s.Provider),
		w:       w,
	}, nil
}

// newMailer picks the transport named by NOTIFIER. SES shares the provider's
// AWS credentials and region; its endpoint override only applies when the
// provider is an AWS one, since AWS_ENDPOINT also points GCP at an emulator.
func newMailer(s *config.Settings) notify.Mailer {
	if s.Notifier == notify.MailerSMTP {
		return notify.NewSMTPMailer(s.SMTP)
	}
	pc := s.ProviderConfig()
	var opts []notify.SESOption
	if s.Provider == providers.TypeSecretsManager || s.Provider == providers.TypeSSM {
		opts = append(opts, notify.WithSESEndpoint(pc.Endpoint))
	}
	return notify.NewSESMailer(func(ctx context.Context) (aws.Config, error) {
		return providers.LoadAWSConfig(ctx, pc)
	}, opts...)
}

func (rt *runtime) source(ctx context.Context) (providers.SecretSource, error) {
	if rt.w.source != nil {
		return rt.w.source, nil
	}
	registry := rt.w.registry
	if registry == nil {
		registry = providers.NewRegistry()
	}
	src, err := registry.Create(ctx, rt.settings.Provider, rt.settings.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", rt.settings.Provider, err)
	}
	return src, nil
}

func (rt *runtime) options() []rotation.Option {
	return []rotation.Option{
		rotation.WithOutput(rt.out),
		rotation.WithLogger(rt.logger),
		rotation.WithMetrics(rt.metrics),
		rotation.WithClock(rt.now),
		rotation.WithSourceLabel(rt.label),
	}
}

// refresher builds the provider on first fetch, so a provider that cannot be
// created fails only the secrets that need refreshing.
func (rt *runtime) refresher() *rotation.Refresher {
	src := providers.NewLazySource(rt.settings.Provider, rt.source)
	return rotation.NewRefresher(src, rt.store, rt.notifier, rt.options()...)
}

func (rt *runtime) checker() *rotation.Checker {
	return rotation.NewChecker(rt.store, rt.scheduler, rt.refresher(), rt.notifier, rt.options()...)
}

// finish logs the run summary, records history and flushes metrics.
// Per-secret failures never make the command fail.
func (rt *runtime) finish(command string, report *rotation.Report) {
	counts := report.Counts()
	rt.logger.Debug("Run %s: %d refreshed, %d armed, %d unmanaged, %d skipped, %d failed",
		report.RunID,
		counts[rotation.OutcomeRefreshed], counts[rotation.OutcomeArmed],
		counts[rotation.OutcomeUnmanaged], counts[rotation.OutcomeSkipped],
		counts[rotation.OutcomeFailed])
	for _, res := range report.Failed() {
		rt.logger.Warn("%s failed: %s", res.SecretID, res.Error)
	}

	rt.recordHistory(command, report)

	if err := rt.metrics.WriteTextfile(rt.settings.MetricsTextfile); err != nil {
		rt.logger.Warn("Failed to write metrics: %v", err)
	}
}

func (rt *runtime) recordHistory(command string, report *rotation.Report) {
	if rt.history == nil {
		return
	}
	if err := rt.history.Record(command, report); err != nil {
		rt.logger.Warn("Failed to record history: %v", err)
	}
	if rt.settings.HistoryRetention > 0 {
		cutoff := rt.now().Add(-rt.settings.HistoryRetention)
		if n, err := rt.history.Prune(cutoff); err != nil {
			rt.logger.Warn("Failed to prune history: %v", err)
		} else if n > 0 {
			rt.logger.Debug("Pruned %d history entries older than %s", n, cutoff.Format(time.RFC3339))
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
