package providers

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// TypeSecretsManager is the provider type for AWS Secrets Manager.
const TypeSecretsManager = "aws.secretsmanager"

// SecretsManagerClientAPI is the subset of the Secrets Manager client used here.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// AWSSecretsManagerSource reads secrets and rotation dates from AWS Secrets Manager.
type AWSSecretsManagerSource struct {
	client SecretsManagerClientAPI
	region string
}

// SecretsManagerOption configures an AWSSecretsManagerSource.
type SecretsManagerOption func(*AWSSecretsManagerSource)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(s *AWSSecretsManagerSource) {
		s.client = client
	}
}

// NewAWSSecretsManagerSource creates a Secrets Manager source. Without an
// injected client the default AWS credential chain is used.
func NewAWSSecretsManagerSource(ctx context.Context, cfg Config, opts ...SecretsManagerOption) (*AWSSecretsManagerSource, error) {
	s := &AWSSecretsManagerSource{region: cfg.Region}
	if s.region == "" {
		s.region = DefaultRegion
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// Name returns the provider type.
func (s *AWSSecretsManagerSource) Name() string {
	return TypeSecretsManager
}

// Region returns the configured region.
func (s *AWSSecretsManagerSource) Region() string {
	return s.region
}

// GetSecret fetches the AWSCURRENT value of id.
func (s *AWSSecretsManagerSource) GetSecret(ctx context.Context, id string) (SecretValue, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return SecretValue{}, dserrors.ProviderError(TypeSecretsManager, "GetSecretValue", err)
	}

	value := SecretValue{
		Version: aws.ToString(out.VersionId),
	}
	if out.SecretString != nil {
		value.Value = *out.SecretString
		value.IsString = true
	}
	return value, nil
}

// NextRotationDate reads the secret's scheduled rotation from DescribeSecret.
func (s *AWSSecretsManagerSource) NextRotationDate(ctx context.Context, id string) (*time.Time, error) {
	out, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return nil, dserrors.ProviderError(TypeSecretsManager, "DescribeSecret", err)
	}
	if out.NextRotationDate == nil || out.NextRotationDate.IsZero() {
		return nil, nil
	}
	next := out.NextRotationDate.UTC()
	return &next, nil
}
