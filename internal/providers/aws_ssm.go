package providers

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// TypeSSM is the provider type for SSM Parameter Store.
const TypeSSM = "aws.ssm"

// SSMClientAPI is the subset of the SSM client used here.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// AWSSSMSource reads SecureString parameters. Parameter Store has no rotation
// schedule, so secrets from it are cached without a next rotation date.
type AWSSSMSource struct {
	client SSMClientAPI
}

// SSMOption configures an AWSSSMSource.
type SSMOption func(*AWSSSMSource)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(s *AWSSSMSource) {
		s.client = client
	}
}

// NewAWSSSMSource creates a Parameter Store source.
func NewAWSSSMSource(ctx context.Context, cfg Config, opts ...SSMOption) (*AWSSSMSource, error) {
	s := &AWSSSMSource{}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*ssm.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = ssm.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// Name returns the provider type.
func (s *AWSSSMSource) Name() string {
	return TypeSSM
}

// GetSecret fetches the decrypted parameter value.
func (s *AWSSSMSource) GetSecret(ctx context.Context, id string) (SecretValue, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(id),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return SecretValue{}, dserrors.ProviderError(TypeSSM, "GetParameter", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return SecretValue{}, nil
	}
	return SecretValue{
		Value:    *out.Parameter.Value,
		IsString: true,
		Version:  strconv.FormatInt(out.Parameter.Version, 10),
	}, nil
}

// NextRotationDate always returns nil.
func (s *AWSSSMSource) NextRotationDate(ctx context.Context, id string) (*time.Time, error) {
	return nil, nil
}
