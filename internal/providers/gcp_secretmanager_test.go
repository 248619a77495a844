package providers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/secretcron/internal/errors"
	"github.com/systmms/secretcron/internal/providers"
	"github.com/systmms/secretcron/tests/fakes"
)

const gcpPrefix = "projects/acme-prod/secrets/"

func newGCPSource(t *testing.T, fake *fakes.FakeGCPSecretManagerClient) *providers.GCPSecretManagerSource {
	t.Helper()
	s, err := providers.NewGCPSecretManagerSource(context.Background(), providers.Config{GCPProject: "acme-prod"},
		providers.WithGCPSecretManagerClient(fake))
	require.NoError(t, err)
	return s
}

func TestGCPSecretManagerRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")

	_, err := providers.NewGCPSecretManagerSource(context.Background(), providers.Config{},
		providers.WithGCPSecretManagerClient(fakes.NewFakeGCPSecretManagerClient()))
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GCP_PROJECT", cfgErr.Field)
}

func TestGCPSecretManagerProjectFromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-env")

	s, err := providers.NewGCPSecretManagerSource(context.Background(), providers.Config{},
		providers.WithGCPSecretManagerClient(fakes.NewFakeGCPSecretManagerClient()))
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.ProjectID())
	assert.Equal(t, "gcp.secretmanager", s.Name())
}

func TestGCPSecretManagerGetSecret(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeGCPSecretManagerClient()
	fake.AddSecret(gcpPrefix+"db-creds", []byte(`{"password":"hunter2"}`))
	fake.AddSecret(gcpPrefix+"blob", []byte{0xff, 0xfe, 0x00})
	fake.AddSecret("projects/other/secrets/shared", []byte("plain"))
	fake.AddError(gcpPrefix+"denied", status.Error(codes.PermissionDenied, "denied"))
	s := newGCPSource(t, fake)

	tests := []struct {
		name         string
		id           string
		wantValue    string
		wantIsString bool
		wantErr      string
	}{
		{name: "string secret", id: "db-creds", wantValue: `{"password":"hunter2"}`, wantIsString: true},
		{name: "binary payload", id: "blob", wantIsString: false},
		{name: "full resource name", id: "projects/other/secrets/shared", wantValue: "plain", wantIsString: true},
		{name: "missing secret", id: "nope", wantErr: "GCP_PROJECT"},
		{name: "permission denied", id: "denied", wantErr: "secretmanager.versions.access"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.GetSecret(context.Background(), tt.id)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIsString, got.IsString)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, "1", got.Version)
		})
	}
}

func TestGCPSecretManagerNextRotationDate(t *testing.T) {
	t.Parallel()

	next := time.Date(2030, 7, 1, 9, 30, 0, 0, time.UTC)
	fake := fakes.NewFakeGCPSecretManagerClient()
	fake.AddSecret(gcpPrefix+"rotating", []byte("a"))
	fake.SetNextRotation(gcpPrefix+"rotating", next)
	fake.AddSecret(gcpPrefix+"static", []byte("b"))
	s := newGCPSource(t, fake)

	got, err := s.NextRotationDate(context.Background(), "rotating")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, next.Equal(*got))

	got, err = s.NextRotationDate(context.Background(), "static")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.NextRotationDate(context.Background(), "missing")
	assert.Error(t, err)
}
