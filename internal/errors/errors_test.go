package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUserError(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("boom")
	err := UserError{
		Message:    "Failed to refresh secret",
		Details:    "db-creds",
		Suggestion: "Check credentials",
		Err:        inner,
	}

	assert.Equal(t, "Failed to refresh secret: boom\n  Details: db-creds\n  💡 Try: Check credentials", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := UserError{Err: inner}
	assert.Equal(t, "boom", bare.Error())
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := ConfigError{
		Field:      "AWS_SECRET_IDS",
		Message:    "at least one secret ID is required",
		Suggestion: "Set AWS_SECRET_IDS=db-creds,api-key",
	}
	assert.Equal(t,
		"Configuration error in field 'AWS_SECRET_IDS': at least one secret ID is required\n  💡 Set AWS_SECRET_IDS=db-creds,api-key",
		err.Error())

	withValue := ConfigError{Field: "SECRET_PROVIDER", Value: "gcp", Message: "unsupported provider"}
	assert.Contains(t, withValue.Error(), "(value: gcp)")
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	err := CommandError{Command: "crontab", ExitCode: 1, Message: "bad minute"}
	assert.Equal(t, "Command 'crontab' failed (exit code: 1): bad minute", err.Error())
}

func TestNewCommandError(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		err := NewCommandError("crontab", fmt.Errorf("exec: %w", exec.ErrNotFound), nil)
		var ce CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "command not found", ce.Message)
		assert.Contains(t, ce.Suggestion, "Install cron")
	})

	t.Run("stderr becomes message", func(t *testing.T) {
		t.Parallel()
		err := NewCommandError("crontab", errors.New("exit status 1"), []byte("  errors in crontab file\n"))
		var ce CommandError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "errors in crontab file", ce.Message)
	})

	t.Run("falls back to error text", func(t *testing.T) {
		t.Parallel()
		err := NewCommandError("crontab", errors.New("signal: killed"), nil)
		assert.Contains(t, err.Error(), "signal: killed")
	})
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		provider       string
		err            error
		wantSuggestion string
	}{
		{
			name:           "secrets manager not found",
			provider:       "aws.secretsmanager",
			err:            &smtypes.ResourceNotFoundException{Message: aws.String("missing")},
			wantSuggestion: "Verify the secret ID",
		},
		{
			name:           "secrets manager access denied",
			provider:       "aws.secretsmanager",
			err:            &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"},
			wantSuggestion: "secretsmanager:GetSecretValue",
		},
		{
			name:           "ssm access denied",
			provider:       "aws.ssm",
			err:            &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"},
			wantSuggestion: "ssm:GetParameter",
		},
		{
			name:           "throttled",
			provider:       "aws.secretsmanager",
			err:            fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "ThrottlingException"}),
			wantSuggestion: "rate limit",
		},
		{
			name:           "ses unverified sender",
			provider:       "aws.ses",
			err:            &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified."},
			wantSuggestion: "SES identity",
		},
		{
			name:           "ses access denied",
			provider:       "aws.ses",
			err:            &smithy.GenericAPIError{Code: "AccessDeniedException"},
			wantSuggestion: "ses:SendEmail",
		},
		{
			name:           "gcp permission denied",
			provider:       "gcp.secretmanager",
			err:            status.Error(codes.PermissionDenied, "caller lacks access"),
			wantSuggestion: "secretmanager.versions.access",
		},
		{
			name:           "gcp not found",
			provider:       "gcp.secretmanager",
			err:            fmt.Errorf("rpc: %w", status.Error(codes.NotFound, "secret missing")),
			wantSuggestion: "GCP_PROJECT",
		},
		{
			name:           "vault permission denied",
			provider:       "vault",
			err:            errors.New("Code: 403. Errors: permission denied"),
			wantSuggestion: "VAULT_TOKEN",
		},
		{
			name:           "generic network error",
			provider:       "vault",
			err:            errors.New("dial tcp: connection refused"),
			wantSuggestion: "Unable to connect",
		},
		{
			name:           "unknown error has no suggestion",
			provider:       "aws.secretsmanager",
			err:            errors.New("odd"),
			wantSuggestion: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ProviderError(tt.provider, "GetSecret", tt.err)
			var ue UserError
			require.True(t, errors.As(err, &ue))
			assert.Contains(t, ue.Message, tt.provider)
			assert.ErrorIs(t, err, tt.err)
			if tt.wantSuggestion == "" {
				assert.Empty(t, ue.Suggestion)
			} else {
				assert.Contains(t, ue.Suggestion, tt.wantSuggestion)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "throttling code", err: &smithy.GenericAPIError{Code: "ThrottlingException"}, want: true},
		{name: "ses rate", err: &smithy.GenericAPIError{Code: "TooManyRequestsException"}, want: true},
		{name: "timeout text", err: errors.New("i/o timeout"), want: true},
		{name: "not found", err: &smtypes.ResourceNotFoundException{}, want: false},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "backend down"), want: true},
		{name: "grpc not found", err: status.Error(codes.NotFound, "missing"), want: false},
		{name: "plain", err: errors.New("bad request"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, SimplifyError(nil))

	cfgErr := ConfigError{Message: "x"}
	assert.Equal(t, error(cfgErr), SimplifyError(cfgErr))

	perm := SimplifyError(fmt.Errorf("open cache: %w", errors.New("permission denied")))
	var ue UserError
	require.True(t, errors.As(perm, &ue))
	assert.Equal(t, "Permission denied", ue.Message)

	plain := errors.New("something else")
	assert.Equal(t, plain, SimplifyError(plain))
}
