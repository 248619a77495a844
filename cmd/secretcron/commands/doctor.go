package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/secretcron/internal/config"
	dserrors "github.com/systmms/secretcron/internal/errors"
	"github.com/systmms/secretcron/internal/notify"
	"github.com/systmms/secretcron/internal/providers"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name       string
	Status     string // ok, warn, fail
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	return newDoctorCommand(cfg, &wiring{})
}

func newDoctorCommand(cfg *config.Config, w *wiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, crontab access and provider credentials",
		Long: `Verify that secretcron can run unattended from cron.

This command checks:
- Configuration loads and validates
- The crontab binary is available and readable
- The cache directory exists with private permissions
- The notification addresses and mail transport (SES or SMTP) are usable
- Provider credentials work (sts:GetCallerIdentity for AWS providers)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := w.setup(cfg, io.Discard)
			if err != nil {
				printChecks(out, []CheckResult{failed("configuration", err)})
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx := cmd.Context()
			results := []CheckResult{{
				Name:    "configuration",
				Status:  "ok",
				Message: fmt.Sprintf("%d secret(s) via %s", len(rt.settings.SecretIDs), rt.settings.Provider),
			}}
			results = append(results,
				checkCrontab(ctx, rt),
				checkCacheDir(rt),
				checkEmail(rt),
				checkProvider(ctx, rt),
			)
			printChecks(out, results)

			failures := 0
			for _, r := range results {
				if r.Status == "fail" {
					failures++
				}
			}
			fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", len(results)-failures, len(results))
			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			rt.logger.Info("All checks passed")
			return nil
		},
	}

	return cmd
}

func checkCrontab(ctx context.Context, rt *runtime) CheckResult {
	res := CheckResult{Name: "crontab"}
	if err := rt.scheduler.Available(); err != nil {
		return failed(res.Name, err)
	}
	entries, err := rt.scheduler.List(ctx)
	if err != nil {
		res.Status = "fail"
		res.Message = err.Error()
		res.Suggestion = "Check that the current user is allowed to use cron (cron.allow / cron.deny)"
		return res
	}
	res.Status = "ok"
	res.Message = fmt.Sprintf("%d trigger(s) armed, checker %s", len(entries), rt.scheduler.Checker())
	if _, err := os.Stat(rt.scheduler.Checker()); err != nil {
		res.Status = "warn"
		res.Message = fmt.Sprintf("checker %s not found", rt.scheduler.Checker())
		res.Suggestion = "Set CHECKER_PATH to the installed secretcron binary"
	}
	return res
}

func checkCacheDir(rt *runtime) CheckResult {
	res := CheckResult{Name: "cache"}
	dir := rt.store.Dir()
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		res.Status = "warn"
		res.Message = fmt.Sprintf("%s does not exist yet", dir)
		res.Suggestion = "It is created on the first refresh"
	case err != nil:
		res.Status = "fail"
		res.Message = err.Error()
	case !info.IsDir():
		res.Status = "fail"
		res.Message = fmt.Sprintf("%s is not a directory", dir)
		res.Suggestion = "Point CACHE_DIR at a directory"
	case info.Mode().Perm()&0o077 != 0:
		res.Status = "warn"
		res.Message = fmt.Sprintf("%s is accessible to other users (%o)", dir, info.Mode().Perm())
		res.Suggestion = fmt.Sprintf("Run: chmod 700 %s", dir)
	default:
		res.Status = "ok"
		res.Message = dir
	}
	return res
}

func checkEmail(rt *runtime) CheckResult {
	res := CheckResult{Name: "email"}
	if err := notify.ValidateAddress(rt.settings.RecipientEmail); err != nil {
		res.Status = "warn"
		res.Message = fmt.Sprintf("recipient: %v", err)
		res.Suggestion = "Emails are skipped until RECIPIENT_EMAIL is a valid address"
		return res
	}
	if err := notify.ValidateAddress(rt.settings.Sender()); err != nil {
		res.Status = "warn"
		res.Message = fmt.Sprintf("sender: %v", err)
		res.Suggestion = "Set SENDER_EMAIL to a valid address"
		return res
	}
	if rt.settings.Notifier != notify.MailerSMTP {
		res.Status = "ok"
		res.Message = fmt.Sprintf("%s via SES in %s", rt.settings.RecipientEmail, rt.settings.Region)
		return res
	}
	if rt.w.mailer == nil {
		if err := notify.NewSMTPMailer(rt.settings.SMTP).Validate(); err != nil {
			res.Status = "fail"
			res.Message = err.Error()
			res.Suggestion = "Set SMTP_HOST and SMTP_PORT"
			return res
		}
	}
	res.Status = "ok"
	res.Message = fmt.Sprintf("%s via %s:%d", rt.settings.RecipientEmail, rt.settings.SMTP.Host, rt.settings.SMTP.Port)
	return res
}

func checkProvider(ctx context.Context, rt *runtime) CheckResult {
	res := CheckResult{Name: "provider"}
	src, err := rt.source(ctx)
	if err != nil {
		return failed(res.Name, err)
	}

	if p := rt.settings.Provider; p == providers.TypeSecretsManager || p == providers.TypeSSM {
		checker, err := providers.NewIdentityChecker(ctx, rt.settings.ProviderConfig(), rt.w.sts)
		if err == nil {
			var id providers.Identity
			id, err = checker.CallerIdentity(ctx)
			if err == nil {
				res.Status = "ok"
				res.Message = fmt.Sprintf("%s as %s (account %s)", p, id.Arn, id.Account)
				return res
			}
		}
		return failed(res.Name, err)
	}

	res.Status = "ok"
	switch src := src.(type) {
	case *providers.GCPSecretManagerSource:
		res.Message = fmt.Sprintf("%s in project %s", src.Name(), src.ProjectID())
	default:
		res.Message = fmt.Sprintf("%s configured at %s", src.Name(), rt.settings.VaultAddress)
	}
	return res
}

// failed turns err into a failing check, keeping the suggestion of user-facing errors.
func failed(name string, err error) CheckResult {
	res := CheckResult{Name: name, Status: "fail", Message: err.Error()}

	var userErr dserrors.UserError
	var cfgErr dserrors.ConfigError
	var cmdErr dserrors.CommandError
	switch {
	case errors.As(err, &userErr):
		res.Message = userErr.Message
		if userErr.Details != "" {
			res.Message += ": " + userErr.Details
		}
		res.Suggestion = userErr.Suggestion
	case errors.As(err, &cfgErr):
		res.Message = fmt.Sprintf("%s: %s", cfgErr.Field, cfgErr.Message)
		res.Suggestion = cfgErr.Suggestion
	case errors.As(err, &cmdErr):
		res.Message = fmt.Sprintf("%s: %s", cmdErr.Command, cmdErr.Message)
		res.Suggestion = cmdErr.Suggestion
	default:
		res.Message = dserrors.SimplifyError(err).Error()
	}
	return res
}

func printChecks(out io.Writer, results []CheckResult) {
	for _, r := range results {
		marker := "✓"
		switch r.Status {
		case "warn":
			marker = "⚠"
		case "fail":
			marker = "✗"
		}
		fmt.Fprintf(out, "%s %-13s %s\n", marker, r.Name, r.Message)
		if r.Suggestion != "" && r.Status != "ok" {
			fmt.Fprintf(out, "  💡 %s\n", r.Suggestion)
		}
	}
}
