package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret IDs to their data
	Secrets map[string]*SecretData
	// Errors maps secret IDs to errors returned by every call
	Errors map[string]error
	// DescribeErrors maps secret IDs to errors returned only by DescribeSecret
	DescribeErrors map[string]error
	// Transient queues errors returned by the next GetSecretValue calls for an ID
	Transient map[string][]error

	// GetSecretValueFunc allows custom behavior for GetSecretValue
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	// DescribeSecretFunc allows custom behavior for DescribeSecret
	DescribeSecretFunc func(ctx context.Context, params *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error)

	// GetCalls and DescribeCalls count requests per secret ID
	GetCalls      map[string]int
	DescribeCalls map[string]int
}

// SecretData holds the data for a fake secret
type SecretData struct {
	SecretString     *string
	SecretBinary     []byte
	VersionId        *string
	NextRotationDate *time.Time
	RotationEnabled  bool
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets:        make(map[string]*SecretData),
		Errors:         make(map[string]error),
		DescribeErrors: make(map[string]error),
		Transient:      make(map[string][]error),
		GetCalls:       make(map[string]int),
		DescribeCalls:  make(map[string]int),
	}
}

// AddSecretString adds a string secret.
func (f *FakeSecretsManagerClient) AddSecretString(id, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[id] = &SecretData{
		SecretString: aws.String(value),
		VersionId:    aws.String("v1-abc123"),
	}
}

// AddSecretBinary adds a binary-only secret.
func (f *FakeSecretsManagerClient) AddSecretBinary(id string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[id] = &SecretData{
		SecretBinary: value,
		VersionId:    aws.String("v1-abc123"),
	}
}

// SetNextRotationDate sets the rotation date DescribeSecret reports.
func (f *FakeSecretsManagerClient) SetNextRotationDate(id string, next time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.Secrets[id]; ok {
		data.NextRotationDate = &next
		data.RotationEnabled = true
	}
}

// FailTimes makes the next n GetSecretValue calls for id fail with err.
func (f *FakeSecretsManagerClient) FailTimes(id string, err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.Transient[id] = append(f.Transient[id], err)
	}
}

// AddError makes every call for id fail with err.
func (f *FakeSecretsManagerClient) AddError(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[id] = err
}

// GetSecretValue returns the stored value.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.GetSecretValueFunc != nil {
		return f.GetSecretValueFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.SecretId)
	f.GetCalls[id]++

	if queued := f.Transient[id]; len(queued) > 0 {
		f.Transient[id] = queued[1:]
		return nil, queued[0]
	}
	if err, exists := f.Errors[id]; exists {
		return nil, err
	}
	data, exists := f.Secrets[id]
	if !exists {
		return nil, notFound(id)
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           aws.String(arn(id)),
		Name:          aws.String(id),
		SecretString:  data.SecretString,
		SecretBinary:  data.SecretBinary,
		VersionId:     data.VersionId,
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// DescribeSecret returns the stored rotation metadata.
func (f *FakeSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.DescribeSecretFunc != nil {
		return f.DescribeSecretFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.SecretId)
	f.DescribeCalls[id]++

	if err, exists := f.Errors[id]; exists {
		return nil, err
	}
	if err, exists := f.DescribeErrors[id]; exists {
		return nil, err
	}
	data, exists := f.Secrets[id]
	if !exists {
		return nil, notFound(id)
	}

	return &secretsmanager.DescribeSecretOutput{
		ARN:              aws.String(arn(id)),
		Name:             aws.String(id),
		RotationEnabled:  aws.Bool(data.RotationEnabled),
		NextRotationDate: data.NextRotationDate,
	}, nil
}

// TotalDescribeCalls returns the number of DescribeSecret calls for id.
func (f *FakeSecretsManagerClient) TotalDescribeCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.DescribeCalls[id]
}

// TotalGetCalls returns the number of GetSecretValue calls for id.
func (f *FakeSecretsManagerClient) TotalGetCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GetCalls[id]
}

func notFound(id string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", id)),
	}
}

func arn(id string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", id)
}

// FakeSSMClient is an in-memory Parameter Store.
type FakeSSMClient struct {
	mu sync.Mutex

	// Parameters maps parameter names to values
	Parameters map[string]string
	// Errors maps parameter names to errors
	Errors map[string]error
	// Decrypted records the WithDecryption flag of each request
	Decrypted []bool
}

// NewFakeSSMClient creates an empty fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Errors:     make(map[string]error),
	}
}

// AddParameter stores a SecureString parameter.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Parameters[name] = value
}

// GetParameter returns the stored parameter.
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	f.Decrypted = append(f.Decrypted, aws.ToBool(params.WithDecryption))

	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	value, exists := f.Parameters[name]
	if !exists {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String(fmt.Sprintf("parameter %s not found", name))}
	}

	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Type:    ssmtypes.ParameterTypeSecureString,
			Value:   aws.String(value),
			Version: 3,
		},
	}, nil
}

// FakeSTSClient answers GetCallerIdentity.
type FakeSTSClient struct {
	Account string
	Arn     string
	Err     error
}

// GetCallerIdentity returns the configured identity or error.
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.Arn),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil
}
