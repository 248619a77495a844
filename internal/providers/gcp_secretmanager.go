package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// TypeGCPSecretManager is the provider type for Google Cloud Secret Manager.
const TypeGCPSecretManager = "gcp.secretmanager"

// GCPSecretManagerClientAPI is the subset of the Secret Manager client used here.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
}

// GCPSecretManagerSource reads secrets from Google Cloud Secret Manager. The
// rotation date is the secret's rotation.next_rotation_time.
type GCPSecretManagerSource struct {
	client    GCPSecretManagerClientAPI
	projectID string
}

// GCPSecretManagerOption configures a GCPSecretManagerSource.
type GCPSecretManagerOption func(*GCPSecretManagerSource)

// WithGCPSecretManagerClient sets a custom client (for testing)
func WithGCPSecretManagerClient(client GCPSecretManagerClientAPI) GCPSecretManagerOption {
	return func(s *GCPSecretManagerSource) {
		s.client = client
	}
}

// NewGCPSecretManagerSource creates a Secret Manager source. Without a
// credentials file, Application Default Credentials are used.
func NewGCPSecretManagerSource(ctx context.Context, cfg Config, opts ...GCPSecretManagerOption) (*GCPSecretManagerSource, error) {
	s := &GCPSecretManagerSource{projectID: cfg.GCPProject}
	if s.projectID == "" {
		s.projectID = gcpProjectFromEnv()
	}
	if s.projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "GCP_PROJECT",
			Message:    "project is required for GCP Secret Manager",
			Suggestion: "Set GCP_PROJECT or GOOGLE_CLOUD_PROJECT",
		}
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := newGCPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.client = client
	}
	return s, nil
}

func newGCPClient(ctx context.Context, cfg Config) (*secretmanager.Client, error) {
	var clientOpts []option.ClientOption
	if path := cfg.GCPCredentialsFile; path != "" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	return client, nil
}

func gcpProjectFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Name returns the provider type.
func (s *GCPSecretManagerSource) Name() string {
	return TypeGCPSecretManager
}

// ProjectID returns the project secrets are read from.
func (s *GCPSecretManagerSource) ProjectID() string {
	return s.projectID
}

// GetSecret accesses the latest enabled version of id. Payloads that are not
// valid UTF-8 are reported as binary.
func (s *GCPSecretManagerSource) GetSecret(ctx context.Context, id string) (SecretValue, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(id) + "/versions/latest",
	})
	if err != nil {
		return SecretValue{}, dserrors.ProviderError(TypeGCPSecretManager, "AccessSecretVersion", err)
	}

	value := SecretValue{Version: versionOf(resp.GetName())}
	data := resp.GetPayload().GetData()
	if utf8.Valid(data) {
		value.Value = string(data)
		value.IsString = true
	}
	return value, nil
}

// NextRotationDate reads the secret's rotation schedule.
func (s *GCPSecretManagerSource) NextRotationDate(ctx context.Context, id string) (*time.Time, error) {
	secret, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretName(id),
	})
	if err != nil {
		return nil, dserrors.ProviderError(TypeGCPSecretManager, "GetSecret", err)
	}

	ts := secret.GetRotation().GetNextRotationTime()
	if ts == nil {
		return nil, nil
	}
	next := ts.AsTime().UTC()
	return &next, nil
}

// secretName accepts either a short name or a full projects/... resource name.
func (s *GCPSecretManagerSource) secretName(id string) string {
	if strings.HasPrefix(id, "projects/") {
		return strings.TrimSuffix(id, "/")
	}
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, id)
}

// versionOf extracts VERSION from projects/P/secrets/S/versions/VERSION.
func versionOf(name string) string {
	if i := strings.LastIndex(name, "/versions/"); i >= 0 {
		return name[i+len("/versions/"):]
	}
	return ""
}
