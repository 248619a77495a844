package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	dserrors "github.com/systmms/secretcron/internal/errors"
	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/notify"
	"github.com/systmms/secretcron/internal/providers"
	"github.com/systmms/secretcron/internal/secure"
)

// Environment keys. Values come from the process environment, falling back to
// the dotenv file and then to defaults.
const (
	KeyRegion          = "AWS_REGION"
	KeySecretIDs       = "AWS_SECRET_IDS"
	KeyRecipient       = "RECIPIENT_EMAIL"
	KeyCacheDir        = "CACHE_DIR"
	KeyCheckerPath     = "CHECKER_PATH"
	KeyProvider        = "SECRET_PROVIDER"
	KeyEndpoint        = "AWS_ENDPOINT"
	KeyAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeySecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeySender          = "SENDER_EMAIL"
	KeyNotifier        = "NOTIFIER"
	KeySMTPHost        = "SMTP_HOST"
	KeySMTPPort        = "SMTP_PORT"
	KeySMTPUsername    = "SMTP_USERNAME"
	KeySMTPPassword    = "SMTP_PASSWORD"
	KeyVaultAddress    = "VAULT_ADDR"
	KeyVaultToken      = "VAULT_TOKEN"
	KeyVaultNamespace  = "VAULT_NAMESPACE"
	KeyVaultMount      = "VAULT_MOUNT"
	KeyCrontabBin      = "CRONTAB_BIN"
	KeyMetricsTextfile = "METRICS_TEXTFILE"
	KeyHistoryDir      = "HISTORY_DIR"
	KeyHistoryDays     = "HISTORY_RETENTION_DAYS"
	KeyGCPProject      = "GCP_PROJECT"
	KeyGCPCredentials  = "GCP_CREDENTIALS_FILE"
)

var allKeys = []string{
	KeyRegion, KeySecretIDs, KeyRecipient, KeyCacheDir, KeyCheckerPath, KeyProvider,
	KeyEndpoint, KeyAccessKeyID, KeySecretAccessKey, KeySender, KeyNotifier,
	KeySMTPHost, KeySMTPPort, KeySMTPUsername, KeySMTPPassword,
	KeyVaultAddress, KeyVaultToken, KeyVaultNamespace, KeyVaultMount,
	KeyCrontabBin, KeyMetricsTextfile, KeyHistoryDir, KeyHistoryDays,
	KeyGCPProject, KeyGCPCredentials,
}

// Config holds the runtime configuration
type Config struct {
	// Path is the optional dotenv file.
	Path string
	// PathRequired makes a missing Path an error instead of being skipped.
	PathRequired bool
	// InstallDir anchors the default cache directory. Empty means the
	// directory of the running executable.
	InstallDir string

	Logger *logging.Logger
	Out    io.Writer

	Settings *Settings
}

// Settings is the loaded configuration.
type Settings struct {
	SecretIDs       []string
	Region          string
	RecipientEmail  string
	SenderEmail     string
	CacheDir        string
	CheckerPath     string
	Provider        string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// Notifier selects the mail transport: notify.MailerSES or notify.MailerSMTP.
	Notifier        string
	SMTP            notify.SMTPConfig
	VaultAddress    string
	VaultToken      string
	VaultNamespace  string
	VaultMount      string
	GCPProject      string
	GCPCredentials  string
	CrontabBin      string
	MetricsTextfile string
	HistoryDir      string
	// HistoryRetention is how long run history is kept. Zero keeps it forever.
	HistoryRetention time.Duration
}

// DefaultInstallDir returns the directory holding the running executable.
func DefaultInstallDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// DefaultPath returns the dotenv file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(DefaultInstallDir(), "config", ".env")
}

// Load reads the dotenv file (if any) and the environment into c.Settings.
func (c *Config) Load() error {
	if c.Settings != nil {
		return nil
	}

	installDir := c.InstallDir
	if installDir == "" {
		installDir = DefaultInstallDir()
	}

	v := viper.New()
	for _, key := range allKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	setDefaults(v, installDir)

	if err := c.readFile(v); err != nil {
		return err
	}

	s, err := settingsFrom(v)
	if err != nil {
		return err
	}
	if err := validate(s); err != nil {
		return err
	}
	c.Settings = s
	return nil
}

func (c *Config) readFile(v *viper.Viper) error {
	if c.Path == "" {
		return nil
	}
	if _, err := os.Stat(c.Path); err != nil {
		if os.IsNotExist(err) && !c.PathRequired {
			c.logger().Debug("No config file at %s, using environment only", c.Path)
			return nil
		}
		return dserrors.ConfigError{
			Field:      "config",
			Value:      c.Path,
			Message:    "configuration file not found",
			Suggestion: "Pass an existing dotenv file with --config or omit the flag to use the environment",
		}
	}

	v.SetConfigFile(c.Path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Use KEY=value lines, one per setting",
			Err:        err,
		}
	}
	c.logger().Debug("Loaded config file %s", c.Path)
	return nil
}

// TriggerArgs returns the arguments armed triggers pass before "check" so the
// fired run loads the same dotenv file. Only an explicit --config is carried;
// the default path is found again from the install directory.
func (c *Config) TriggerArgs() []string {
	if !c.PathRequired || c.Path == "" {
		return nil
	}
	path := c.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []string{"--config", path}
}

func (c *Config) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

func setDefaults(v *viper.Viper, installDir string) {
	v.SetDefault(KeyRegion, providers.DefaultRegion)
	v.SetDefault(KeyCacheDir, filepath.Join(installDir, "secrets"))
	v.SetDefault(KeyProvider, providers.TypeSecretsManager)
	v.SetDefault(KeyNotifier, notify.MailerSES)
	v.SetDefault(KeySMTPHost, "localhost")
	v.SetDefault(KeySMTPPort, "25")
	v.SetDefault(KeyVaultMount, providers.DefaultVaultMount)
	v.SetDefault(KeyCrontabBin, "crontab")
	v.SetDefault(KeyHistoryDir, filepath.Join(installDir, "history"))
	v.SetDefault(KeyHistoryDays, "90")
}

func settingsFrom(v *viper.Viper) (*Settings, error) {
	get := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	port, err := strconv.Atoi(get(KeySMTPPort))
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      KeySMTPPort,
			Value:      get(KeySMTPPort),
			Message:    "SMTP port must be a number",
			Suggestion: "Set SMTP_PORT to e.g. 25 or 587",
		}
	}

	days, err := strconv.Atoi(get(KeyHistoryDays))
	if err != nil || days < 0 {
		return nil, dserrors.ConfigError{
			Field:      KeyHistoryDays,
			Value:      get(KeyHistoryDays),
			Message:    "history retention must be a whole number of days",
			Suggestion: "Set HISTORY_RETENTION_DAYS to e.g. 90, or 0 to keep history forever",
		}
	}

	checker := get(KeyCheckerPath)
	if checker == "" {
		if exe, err := os.Executable(); err == nil {
			checker = exe
		}
	}

	return &Settings{
		SecretIDs:       ParseSecretIDs(v.GetString(KeySecretIDs)),
		Region:          get(KeyRegion),
		RecipientEmail:  get(KeyRecipient),
		SenderEmail:     get(KeySender),
		CacheDir:        get(KeyCacheDir),
		CheckerPath:     checker,
		Provider:        get(KeyProvider),
		Endpoint:        get(KeyEndpoint),
		AccessKeyID:     get(KeyAccessKeyID),
		SecretAccessKey: get(KeySecretAccessKey),
		Notifier:        strings.ToLower(get(KeyNotifier)),
		SMTP: notify.SMTPConfig{
			Host:     get(KeySMTPHost),
			Port:     port,
			Username: get(KeySMTPUsername),
			Password: secure.NewCredential(v.GetString(KeySMTPPassword)),
		},
		VaultAddress:     get(KeyVaultAddress),
		VaultToken:       get(KeyVaultToken),
		VaultNamespace:   get(KeyVaultNamespace),
		VaultMount:       get(KeyVaultMount),
		GCPProject:       get(KeyGCPProject),
		GCPCredentials:   get(KeyGCPCredentials),
		CrontabBin:       get(KeyCrontabBin),
		MetricsTextfile:  get(KeyMetricsTextfile),
		HistoryDir:       get(KeyHistoryDir),
		HistoryRetention: time.Duration(days) * 24 * time.Hour,
	}, nil
}

// ParseSecretIDs splits a comma-separated list. Elements are trimmed, empty
// ones dropped and duplicates removed in first-seen order.
func ParseSecretIDs(raw string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func validate(s *Settings) error {
	if len(s.SecretIDs) == 0 {
		return dserrors.ConfigError{
			Field:      KeySecretIDs,
			Message:    "no secret IDs configured",
			Suggestion: "Set AWS_SECRET_IDS to a comma-separated list, e.g. AWS_SECRET_IDS=db-creds,api-key",
		}
	}
	if s.RecipientEmail == "" {
		return dserrors.ConfigError{
			Field:      KeyRecipient,
			Message:    "notification recipient is required",
			Suggestion: "Set RECIPIENT_EMAIL to the operator address",
		}
	}
	registry := providers.NewRegistry()
	if !registry.IsSupported(s.Provider) {
		return dserrors.ConfigError{
			Field:      KeyProvider,
			Value:      s.Provider,
			Message:    "unsupported secret provider",
			Suggestion: fmt.Sprintf("Supported providers: %s", strings.Join(registry.SupportedTypes(), ", ")),
		}
	}
	if s.Notifier != notify.MailerSES && s.Notifier != notify.MailerSMTP {
		return dserrors.ConfigError{
			Field:      KeyNotifier,
			Value:      s.Notifier,
			Message:    "unsupported notifier",
			Suggestion: "Set NOTIFIER to ses (Amazon SES) or smtp (SMTP relay)",
		}
	}
	if s.CheckerPath == "" {
		return dserrors.ConfigError{
			Field:      KeyCheckerPath,
			Message:    "cannot determine the checker executable",
			Suggestion: "Set CHECKER_PATH to the absolute path of the secretcron binary",
		}
	}
	return nil
}

// ProviderConfig returns the settings the secret source needs.
func (s *Settings) ProviderConfig() providers.Config {
	return providers.Config{
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		VaultAddress:    s.VaultAddress,
		VaultToken:      s.VaultToken,
		VaultNamespace:  s.VaultNamespace,
		VaultMount:      s.VaultMount,

		GCPProject:         s.GCPProject,
		GCPCredentialsFile: s.GCPCredentials,
	}
}

// Sender returns the From address, defaulting to the recipient.
func (s *Settings) Sender() string {
	if s.SenderEmail != "" {
		return s.SenderEmail
	}
	return s.RecipientEmail
}
