// Package providers fetches secrets and their rotation schedule from a secret store.
package providers

import (
	"context"
	"time"
)

// SecretValue is a secret as returned by a store.
type SecretValue struct {
	// Value holds the secret string. It is empty when IsString is false.
	Value string
	// IsString is false for stores that returned only binary data.
	IsString bool
	// Version is the store's version identifier, if any.
	Version string
}

// SecretSource is a secret store secretcron can mirror.
type SecretSource interface {
	// Name returns the provider type, e.g. "aws.secretsmanager".
	Name() string
	// GetSecret fetches the current value of id.
	GetSecret(ctx context.Context, id string) (SecretValue, error)
	// NextRotationDate returns when the store will next rotate id, or nil if unknown.
	NextRotationDate(ctx context.Context, id string) (*time.Time, error)
}

// Config carries the settings every built-in source may need. Sources ignore
// fields that do not apply to them.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	VaultAddress   string
	VaultToken     string
	VaultNamespace string
	VaultMount     string

	GCPProject         string
	GCPCredentialsFile string
}
