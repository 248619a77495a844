package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// STSClientAPI is the subset of the STS client used here.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS principal the process runs as.
type Identity struct {
	Account string
	Arn     string
}

// IdentityChecker resolves the caller identity, used by doctor to verify credentials.
type IdentityChecker struct {
	client STSClientAPI
}

// NewIdentityChecker returns a checker. A nil client loads the default AWS configuration.
func NewIdentityChecker(ctx context.Context, cfg Config, client STSClientAPI) (*IdentityChecker, error) {
	if client == nil {
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*sts.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *sts.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		client = sts.NewFromConfig(awsCfg, clientOpts...)
	}
	return &IdentityChecker{client: client}, nil
}

// CallerIdentity calls sts:GetCallerIdentity.
func (c *IdentityChecker) CallerIdentity(ctx context.Context) (Identity, error) {
	out, err := c.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, dserrors.UserError{
			Message:    "Failed to validate AWS credentials",
			Details:    err.Error(),
			Suggestion: "Check AWS credentials and permissions to call sts:GetCallerIdentity",
			Err:        err,
		}
	}
	return Identity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
	}, nil
}
