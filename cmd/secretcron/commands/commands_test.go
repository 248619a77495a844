package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/systmms/secretcron/internal/cache"
	"github.com/systmms/secretcron/internal/config"
	"github.com/systmms/secretcron/internal/crontab"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/notify"
	"github.com/systmms/secretcron/internal/providers"
	"github.com/systmms/secretcron/internal/rotation"
	"github.com/systmms/secretcron/tests/fakes"
	"github.com/systmms/secretcron/tests/testutil"
)

const checkerPath = "/usr/local/bin/secretcron"

var now = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	cfg     *config.Config
	w       *wiring
	store   *cache.Store
	crontab *fakes.FakeCrontab
	sm      *fakes.FakeSecretsManagerClient
	sts     *fakes.FakeSTSClient
	mailer  *fakes.FakeMailer
	logs    *bytes.Buffer
}

func newTestEnv(t *testing.T, ids ...string) *testEnv {
	t.Helper()

	root := t.TempDir()
	cacheDir := filepath.Join(root, "secrets")
	store, err := cache.NewStore(cacheDir)
	require.NoError(t, err)

	e := &testEnv{
		store:   store,
		crontab: fakes.NewFakeCrontab(),
		sm:      fakes.NewFakeSecretsManagerClient(),
		sts:     &fakes.FakeSTSClient{Account: "123456789012", Arn: "arn:aws:iam::123456789012:user/ops"},
		mailer:  &fakes.FakeMailer{},
		logs:    &bytes.Buffer{},
	}

	source, err := providers.NewAWSSecretsManagerSource(context.Background(), providers.Config{},
		providers.WithSecretsManagerClient(e.sm))
	require.NoError(t, err)

	e.cfg = &config.Config{
		Logger: logging.NewWithWriter(e.logs, false, true),
		Settings: &config.Settings{
			SecretIDs:      ids,
			Region:         "us-east-1",
			RecipientEmail: "ops@example.com",
			CacheDir:       cacheDir,
			CheckerPath:    checkerPath,
			Provider:       providers.TypeSecretsManager,
			SMTP:           notify.SMTPConfig{Host: "localhost", Port: 25},
			VaultMount:     providers.DefaultVaultMount,
			CrontabBin:     "crontab",
			HistoryDir:     filepath.Join(root, "history"),
		},
	}
	e.w = &wiring{
		executor: e.crontab,
		mailer:   e.mailer,
		source:   source,
		sts:      e.sts,
		now:      func() time.Time { return now },
		location: time.UTC,
	}
	return e
}

// useGCP switches the environment to a fake GCP Secret Manager.
func (e *testEnv) useGCP(t *testing.T) *fakes.FakeGCPSecretManagerClient {
	t.Helper()
	fake := fakes.NewFakeGCPSecretManagerClient()
	source, err := providers.NewGCPSecretManagerSource(context.Background(), providers.Config{GCPProject: "acme-prod"},
		providers.WithGCPSecretManagerClient(fake))
	require.NoError(t, err)
	e.cfg.Settings.Provider = providers.TypeGCPSecretManager
	e.cfg.Settings.GCPProject = "acme-prod"
	e.w.source = source
	return fake
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCheckCommandFutureDate(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	testutil.SeedCache(t, e.store, "db-creds", "s3cret", testutil.TimePtr(now.Add(48*time.Hour)))

	stdout, _, err := execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Scheduled cron job for next rotation date for db-creds.")
	lines := e.crontab.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], checkerPath)
	assert.Contains(t, lines[0], "db-creds")
	assert.Equal(t, 0, e.sm.TotalGetCalls("db-creds"))
}

func TestCheckCommandPastDate(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	original := now.Add(-time.Hour)
	testutil.SeedCache(t, e.store, "db-creds", "old", &original)
	e.sm.AddSecretString("db-creds", `{"password":"new"}`)
	e.sm.SetNextRotationDate("db-creds", now.AddDate(0, 0, 30))

	stdout, _, err := execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Email sent:")
	rec, err := e.store.Load("db-creds")
	require.NoError(t, err)
	require.NotNil(t, rec.NextRotationDate)
	assert.False(t, rec.NextRotationDate.Equal(original))
	assert.JSONEq(t, `{"password":"new"}`, string(rec.Secret))
	assert.Len(t, e.crontab.LinesContaining("# secretcron:db-creds"), 1)
}

func TestCheckCommandCarriesConfigPath(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	envFile := filepath.Join(t.TempDir(), "secretcron.env")
	e.cfg.Path = envFile
	e.cfg.PathRequired = true
	testutil.SeedCache(t, e.store, "db-creds", "s3cret", testutil.TimePtr(now.Add(48*time.Hour)))

	_, _, err := execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)

	lines := e.crontab.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], checkerPath+" --config "+envFile+" check db-creds")

	entry, ok := crontab.ParseEntry(lines[0])
	require.True(t, ok)
	assert.Equal(t, []string{"--config", envFile}, entry.Args)
}

func TestCheckCommandSingleID(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds", "api-key")
	testutil.SeedCache(t, e.store, "db-creds", "a", testutil.TimePtr(now.Add(time.Hour)))
	testutil.SeedCache(t, e.store, "api-key", "b", testutil.TimePtr(now.Add(time.Hour)))

	stdout, _, err := execute(t, newCheckCommand(e.cfg, e.w), "api-key")
	require.NoError(t, err)

	assert.Contains(t, stdout, "for api-key.")
	assert.NotContains(t, stdout, "db-creds")
	assert.Empty(t, e.crontab.LinesContaining("# secretcron:db-creds"))
	assert.Len(t, e.crontab.LinesContaining("# secretcron:api-key"), 1)
}

func TestCheckCommandTrimsSecretID(t *testing.T) {
	t.Parallel()

	t.Run("surrounding whitespace", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "api-key")
		testutil.SeedCache(t, e.store, "api-key", "b", testutil.TimePtr(now.Add(time.Hour)))

		stdout, _, err := execute(t, newCheckCommand(e.cfg, e.w), "  api-key ")
		require.NoError(t, err)
		assert.Contains(t, stdout, "for api-key.")
		assert.Len(t, e.crontab.LinesContaining("# secretcron:api-key"), 1)
	})

	t.Run("blank id", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "api-key")

		_, _, err := execute(t, newCheckCommand(e.cfg, e.w), "   ")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret ID must not be empty")
		assert.Equal(t, 0, e.crontab.Writes)
	})
}

func TestCheckCommandProviderFailureIsPerSecret(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds", "api-key")
	registry := providers.NewRegistry()
	registry.RegisterFactory(providers.TypeSecretsManager, func(context.Context, providers.Config) (providers.SecretSource, error) {
		return nil, errors.New("provider unavailable")
	})
	e.w.source = nil
	e.w.registry = registry

	testutil.SeedCache(t, e.store, "db-creds", "s3cret", testutil.TimePtr(now.Add(48*time.Hour)))
	e.crontab.WithLines("00 12 01 06 * /usr/local/bin/secretcron check db-creds # secretcron:db-creds")

	stdout, stderr, err := execute(t, newCheckCommand(e.cfg, e.w), "--json")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Scheduled cron job for next rotation date for db-creds.")
	lines := e.crontab.LinesContaining("# secretcron:db-creds")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "01 12 03 06 * "), lines[0])

	var report rotation.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, rotation.OutcomeArmed, report.Results[0].Outcome)
	assert.Equal(t, rotation.OutcomeFailed, report.Results[1].Outcome)
	assert.Contains(t, report.Results[1].Error, "provider unavailable")
	assert.Empty(t, e.mailer.Messages())
}

func TestCheckCommandJSONReport(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds", "missing")
	testutil.SeedCache(t, e.store, "db-creds", "a", testutil.TimePtr(now.Add(time.Hour)))

	stdout, stderr, err := execute(t, newCheckCommand(e.cfg, e.w), "--json")
	require.NoError(t, err, "per-secret failures do not fail the command")

	var report rotation.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, 2)
	assert.Equal(t, rotation.OutcomeArmed, report.Results[0].Outcome)
	assert.Equal(t, rotation.OutcomeFailed, report.Results[1].Outcome)
	assert.Contains(t, stderr, "Scheduled cron job for next rotation date for db-creds.")
}

func TestCheckCommandConfigFailure(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Path:         filepath.Join(t.TempDir(), "missing.env"),
		PathRequired: true,
		Logger:       logging.Discard(),
	}
	_, _, err := execute(t, newCheckCommand(cfg, &wiring{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestRefreshCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds", "api-key")
	e.sm.AddSecretString("db-creds", "one")
	e.sm.AddSecretString("api-key", "two")
	e.sm.SetNextRotationDate("db-creds", now.Add(24*time.Hour))

	stdout, _, err := execute(t, newRefreshCommand(e.cfg, e.w))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Secret db-creds refreshed, stored in file cache, and email sent.")
	assert.Contains(t, stdout, "Secret api-key refreshed, stored in file cache, and email sent.")
	assert.Len(t, e.mailer.Messages(), 2)
	assert.Equal(t, 0, e.crontab.Writes, "refresh never touches the crontab")

	for _, id := range []string{"db-creds", "api-key"} {
		_, err := e.store.Load(id)
		require.NoError(t, err, id)
	}
}

func TestRefreshCommandRejectsArgs(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	_, _, err := execute(t, newRefreshCommand(e.cfg, e.w), "db-creds")
	require.Error(t, err)
}

func TestStatusCommandFormats(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) *testEnv {
		e := newTestEnv(t, "armed", "dated", "undated", "absent")
		next := now.Add(72 * time.Hour)
		testutil.SeedCache(t, e.store, "armed", "a", &next)
		testutil.SeedCache(t, e.store, "dated", "b", &next)
		testutil.SeedCache(t, e.store, "undated", "c", nil)
		e.crontab.WithLines(
			"MAILTO=ops@example.com",
			"01 12 04 06 * /usr/local/bin/secretcron check armed # secretcron:armed",
		)
		return e
	}
	want := map[string]rotation.State{
		"armed":   rotation.StateArmed,
		"dated":   rotation.StateCachedWithDate,
		"undated": rotation.StateCachedWithoutDate,
		"absent":  rotation.StateNoCache,
	}

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		stdout, _, err := execute(t, newStatusCommand(e.cfg, e.w), "--format", "json")
		require.NoError(t, err)

		var statuses []SecretStatus
		require.NoError(t, json.Unmarshal([]byte(stdout), &statuses))
		require.Len(t, statuses, 4)
		for _, st := range statuses {
			assert.Equal(t, want[st.SecretID], st.State, st.SecretID)
		}
		assert.Equal(t, "01 12 04 06 *", statuses[0].Trigger)
		require.NotNil(t, statuses[0].TriggerAt)
		assert.Equal(t, time.Date(2030, 6, 4, 12, 1, 0, 0, time.UTC), *statuses[0].TriggerAt)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		stdout, _, err := execute(t, newStatusCommand(e.cfg, e.w), "--format", "yaml")
		require.NoError(t, err)

		var statuses []SecretStatus
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &statuses))
		require.Len(t, statuses, 4)
		for _, st := range statuses {
			assert.Equal(t, want[st.SecretID], st.State, st.SecretID)
		}
	})

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		stdout, _, err := execute(t, newStatusCommand(e.cfg, e.w))
		require.NoError(t, err)

		assert.Contains(t, stdout, "SECRET")
		assert.Contains(t, stdout, "CACHED_WITHOUT_DATE")
		assert.Contains(t, stdout, "in 3 days")
		assert.Contains(t, stdout, "Not set")
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()
		e := setup(t)
		_, _, err := execute(t, newStatusCommand(e.cfg, e.w), "--format", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})
}

func TestStatusReportsMalformedCache(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	testutil.WriteRawCache(t, e.store, "db-creds", []byte("{not json"))

	stdout, _, err := execute(t, newStatusCommand(e.cfg, e.w), "--format", "json")
	require.NoError(t, err)

	var statuses []SecretStatus
	require.NoError(t, json.Unmarshal([]byte(stdout), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, rotation.StateNoCache, statuses[0].State)
	assert.Contains(t, statuses[0].CacheError, "malformed")
}

func TestTriggersListAndClear(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db")
	e.crontab.WithLines(
		"0 3 * * * /usr/bin/backup",
		"01 12 04 06 * /usr/local/bin/secretcron check db # secretcron:db",
		"01 12 05 06 * /usr/local/bin/secretcron check db-backup # secretcron:db-backup",
	)

	stdout, _, err := execute(t, newTriggersCommand(e.cfg, e.w), "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "db-backup")
	assert.Contains(t, stdout, "2030-06-04 12:01 UTC")
	assert.NotContains(t, stdout, "/usr/bin/backup")

	stdout, _, err = execute(t, newTriggersCommand(e.cfg, e.w), "clear", "db")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Temporary cron job removed.")
	for _, line := range e.crontab.Lines() {
		assert.False(t, strings.HasSuffix(line, "# secretcron:db"), line)
	}
	assert.Len(t, e.crontab.LinesContaining("# secretcron:db-backup"), 1)
	assert.Len(t, e.crontab.LinesContaining("/usr/bin/backup"), 1)

	_, _, err = execute(t, newTriggersCommand(e.cfg, e.w), "clear")
	require.NoError(t, err)
	assert.Equal(t, []string{"0 3 * * * /usr/bin/backup"}, e.crontab.Lines())

	stdout, _, err = execute(t, newTriggersCommand(e.cfg, e.w), "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No triggers armed.")
}

func TestDoctorCommand(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "arn:aws:iam::123456789012:user/ops")
		assert.Contains(t, stdout, "Summary: 5/5 checks passed")
	})

	t.Run("crontab missing", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.crontab.Missing = true

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.Error(t, err)
		assert.Contains(t, stdout, "✗ crontab")
		assert.Contains(t, stdout, "Install cron")
	})

	t.Run("bad credentials", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.sts.Err = errors.New("ExpiredToken: the security token included in the request is expired")

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.Error(t, err)
		assert.Contains(t, stdout, "✗ provider")
		assert.Contains(t, stdout, "Failed to validate AWS credentials")
	})

	t.Run("gcp provider", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.useGCP(t)

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "gcp.secretmanager in project acme-prod")
	})

	t.Run("ses notifier", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.cfg.Settings.Notifier = notify.MailerSES

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "ops@example.com via SES in us-east-1")
	})

	t.Run("smtp notifier without host", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.cfg.Settings.Notifier = notify.MailerSMTP
		e.cfg.Settings.SMTP.Host = ""
		e.w.mailer = nil

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.Error(t, err)
		assert.Contains(t, stdout, "✗ email")
		assert.Contains(t, stdout, "Set SMTP_HOST and SMTP_PORT")
	})

	t.Run("invalid recipient only warns", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t, "db-creds")
		e.cfg.Settings.RecipientEmail = "not-an-address"

		stdout, _, err := execute(t, newDoctorCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "⚠ email")
	})
}

func TestNewMailerFollowsNotifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		notifier string
		provider string
		wantSES  bool
	}{
		{name: "ses", notifier: notify.MailerSES, provider: providers.TypeSecretsManager, wantSES: true},
		{name: "unset defaults to ses", notifier: "", provider: providers.TypeSSM, wantSES: true},
		{name: "ses with gcp provider", notifier: notify.MailerSES, provider: providers.TypeGCPSecretManager, wantSES: true},
		{name: "smtp", notifier: notify.MailerSMTP, provider: providers.TypeSecretsManager},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &config.Settings{
				Region:   "us-east-1",
				Endpoint: "http://localhost:4566",
				Provider: tt.provider,
				Notifier: tt.notifier,
				SMTP:     notify.SMTPConfig{Host: "localhost", Port: 25},
			}

			mailer := newMailer(s)
			if tt.wantSES {
				assert.IsType(t, &notify.SESMailer{}, mailer)
			} else {
				assert.IsType(t, &notify.SMTPMailer{}, mailer)
			}
		})
	}
}

func TestFormatRelative(t *testing.T) {
	t.Parallel()

	tests := []struct {
		offset time.Duration
		want   string
	}{
		{30 * time.Second, "now"},
		{90 * time.Minute, "in 1 hr"},
		{-10 * time.Minute, "10 min ago"},
		{50 * time.Hour, "in 2 days"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelative(now.Add(tt.offset), now), tt.offset.String())
	}
}

func TestCommandsUseMarkerFormat(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	testutil.SeedCache(t, e.store, "db-creds", "a", testutil.TimePtr(now.Add(time.Hour)))
	_, _, err := execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)

	line := e.crontab.Lines()[0]
	assert.True(t, strings.HasSuffix(line, "# secretcron:db-creds"), line)
	assert.True(t, strings.HasPrefix(line, "01 13 01 06 * "), line)
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds", "api-key")
	testutil.SeedCache(t, e.store, "db-creds", "a", testutil.TimePtr(now.Add(48*time.Hour)))

	stdout, _, err := execute(t, newHistoryCommand(e.cfg, e.w))
	require.NoError(t, err)
	assert.Contains(t, stdout, "No history recorded.")

	_, _, err = execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		stdout, _, err := execute(t, newHistoryCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "WHEN")
		assert.Contains(t, stdout, "db-creds")
		assert.Contains(t, stdout, "api-key")
		assert.Contains(t, stdout, "armed")
	})

	t.Run("single secret json", func(t *testing.T) {
		stdout, _, err := execute(t, newHistoryCommand(e.cfg, e.w), "db-creds", "--format", "json")
		require.NoError(t, err)
		var entries []map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "check", entries[0]["command"])
		assert.Equal(t, "armed", entries[0]["outcome"])
		assert.Equal(t, true, entries[0]["armed"])
	})

	t.Run("limit", func(t *testing.T) {
		stdout, _, err := execute(t, newHistoryCommand(e.cfg, e.w), "--limit", "1", "--format", "yaml")
		require.NoError(t, err)
		var entries []map[string]interface{}
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &entries))
		assert.Len(t, entries, 1)
	})

	t.Run("status shows last run", func(t *testing.T) {
		stdout, _, err := execute(t, newStatusCommand(e.cfg, e.w))
		require.NoError(t, err)
		assert.Contains(t, stdout, "LAST RUN")
		assert.Contains(t, stdout, "check armed (now)")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, newHistoryCommand(e.cfg, e.w), "--format", "xml")
		assert.Error(t, err)
	})
}

func TestRefreshCommandWithGCP(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t, "db-creds")
	gcp := e.useGCP(t)
	gcp.AddSecret("projects/acme-prod/secrets/db-creds", []byte(`{"password":"gcp"}`))
	gcp.SetNextRotation("projects/acme-prod/secrets/db-creds", now.AddDate(0, 0, 7))

	stdout, _, err := execute(t, newCheckCommand(e.cfg, e.w))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cache file not found for db-creds.")

	rec, err := e.store.Load("db-creds")
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"gcp"}`, string(rec.Secret))
	require.NotNil(t, rec.NextRotationDate)
	assert.True(t, rec.NextRotationDate.Equal(now.AddDate(0, 0, 7)))
	assert.Len(t, e.crontab.LinesContaining("# secretcron:db-creds"), 1)

	msgs := e.mailer.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Google Secret Manager: Secret Refreshed", msgs[0].Subject)
}
