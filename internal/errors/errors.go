package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aws/smithy-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Message != "" && e.Err != nil {
		parts = append(parts, ": "+e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a failed external command, such as crontab
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// NewCommandError builds a CommandError from an exec failure and its stderr.
func NewCommandError(command string, err error, stderr []byte) error {
	if errors.Is(err, exec.ErrNotFound) {
		return WrapCommandNotFound(command, err)
	}

	ce := CommandError{
		Command: command,
		Message: strings.TrimSpace(string(stderr)),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	if ce.Message == "" && err != nil {
		ce.Message = err.Error()
	}
	return ce
}

// ProviderError enhances provider-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// APIErrorCode returns the smithy error code carried by err, or "".
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch provider {
	case "aws.secretsmanager", "aws.ssm":
		switch APIErrorCode(err) {
		case "AccessDeniedException", "AccessDenied":
			if provider == "aws.ssm" {
				return "Check IAM permissions for ssm:GetParameter and kms:Decrypt"
			}
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:DescribeSecret"
		case "ResourceNotFoundException", "ParameterNotFound":
			return "Verify the secret ID in AWS_SECRET_IDS and the AWS_REGION it lives in"
		case "ThrottlingException", "TooManyUpdates":
			return "AWS rate limit exceeded. Wait a moment and try again"
		case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
			return "Refresh your AWS credentials or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "credentials") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}

	case "aws.ses":
		switch APIErrorCode(err) {
		case "MessageRejected", "MailFromDomainNotVerifiedException":
			return "Verify SENDER_EMAIL as an SES identity in AWS_REGION; in the SES sandbox RECIPIENT_EMAIL must be verified too"
		case "AccessDeniedException", "AccessDenied":
			return "Check IAM permissions for ses:SendEmail"
		case "AccountSuspendedException", "SendingPausedException":
			return "SES sending is disabled for this account; check the SES console"
		case "TooManyRequestsException", "LimitExceededException":
			return "SES sending rate exceeded. Wait a moment and try again"
		}

	case "gcp.secretmanager":
		switch status.Code(err) {
		case codes.PermissionDenied:
			return "Check IAM permissions: secretmanager.secrets.get, secretmanager.versions.access"
		case codes.NotFound:
			return "Verify the secret ID in AWS_SECRET_IDS and the GCP_PROJECT it lives in"
		case codes.Unauthenticated:
			return "Set GCP_CREDENTIALS_FILE or run 'gcloud auth application-default login'"
		case codes.ResourceExhausted:
			return "GCP quota exceeded. Wait a moment and try again"
		}

	case "vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "Code: 403") {
			return "Check that VAULT_TOKEN has read access to the KV mount"
		}
		if strings.Contains(errStr, "secret not found") {
			return "Verify the secret path exists under VAULT_MOUNT"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and provider configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestion := fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	if command == "crontab" {
		suggestion = "Install cron (e.g. 'apt install cron' or 'dnf install cronie') or set CRONTAB_BIN"
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch APIErrorCode(err) {
	case "ThrottlingException", "TooManyUpdates", "TooManyRequestsException", "InternalServiceError", "RequestTimeout":
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var (
		userErr UserError
		cfgErr  ConfigError
		cmdErr  CommandError
	)
	if errors.As(err, &userErr) || errors.As(err, &cfgErr) || errors.As(err, &cmdErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "json:") || strings.Contains(errStr, "invalid character") {
		return UserError{
			Message:    "Invalid JSON",
			Suggestion: "Delete the cache file to force a refresh",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
