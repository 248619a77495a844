package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager keyed by full
// secret resource name (projects/P/secrets/S).
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex

	Payloads     map[string][]byte
	Versions     map[string]string
	NextRotation map[string]time.Time
	Errors       map[string]error

	AccessCalls map[string]int
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Payloads:     make(map[string][]byte),
		Versions:     make(map[string]string),
		NextRotation: make(map[string]time.Time),
		Errors:       make(map[string]error),
		AccessCalls:  make(map[string]int),
	}
}

// AddSecret stores payload as version 1 of name.
func (f *FakeGCPSecretManagerClient) AddSecret(name string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Payloads[name] = payload
	f.Versions[name] = "1"
}

// SetNextRotation sets the rotation time GetSecret reports.
func (f *FakeGCPSecretManagerClient) SetNextRotation(name string, next time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NextRotation[name] = next
}

// AddError makes every call for name fail with err.
func (f *FakeGCPSecretManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	if i := strings.Index(name, "/versions/"); i >= 0 {
		name = name[:i]
	}
	f.AccessCalls[name]++

	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	payload, ok := f.Payloads[name]
	if !ok {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("Secret [%s] not found or has no versions.", name))
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%s", name, f.Versions[name]),
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	}, nil
}

func (f *FakeGCPSecretManagerClient) GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	if err := f.Errors[name]; err != nil {
		return nil, err
	}
	if _, ok := f.Payloads[name]; !ok {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("Secret [%s] not found.", name))
	}

	secret := &secretmanagerpb.Secret{Name: name}
	if next, ok := f.NextRotation[name]; ok {
		secret.Rotation = &secretmanagerpb.Rotation{NextRotationTime: timestamppb.New(next)}
	}
	return secret, nil
}
