package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	vault "github.com/hashicorp/vault/api"

	dserrors "github.com/systmms/secretcron/internal/errors"
)

// TypeVault is the provider type for HashiCorp Vault KV v2.
const TypeVault = "vault"

// VaultRotationKey is the custom metadata key holding the next rotation date (RFC 3339).
const VaultRotationKey = "next_rotation_date"

// DefaultVaultMount is the KV v2 mount used when none is configured.
const DefaultVaultMount = "secret"

// VaultKVAPI is the subset of *vault.KVv2 used here.
type VaultKVAPI interface {
	Get(ctx context.Context, secretPath string) (*vault.KVSecret, error)
	GetMetadata(ctx context.Context, secretPath string) (*vault.KVMetadata, error)
}

// VaultSource reads KV v2 secrets. The secret data map is cached as a JSON object.
type VaultSource struct {
	kv VaultKVAPI
}

// VaultOption configures a VaultSource.
type VaultOption func(*VaultSource)

// WithVaultKV sets a custom KV client (for testing)
func WithVaultKV(kv VaultKVAPI) VaultOption {
	return func(s *VaultSource) {
		s.kv = kv
	}
}

// NewVaultSource creates a Vault source. Unset address and token fall back to
// the standard VAULT_* environment handling of the client library.
func NewVaultSource(cfg Config, opts ...VaultOption) (*VaultSource, error) {
	s := &VaultSource{}
	for _, opt := range opts {
		opt(s)
	}
	if s.kv != nil {
		return s, nil
	}

	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, fmt.Errorf("failed to read Vault environment: %w", vcfg.Error)
	}
	if cfg.VaultAddress != "" {
		vcfg.Address = cfg.VaultAddress
	}
	if vcfg.Address == "" {
		return nil, dserrors.ConfigError{
			Field:      "VAULT_ADDR",
			Message:    "Vault address is required for the vault provider",
			Suggestion: "Set VAULT_ADDR, e.g. https://vault.example.com:8200",
		}
	}

	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.VaultToken != "" {
		client.SetToken(cfg.VaultToken)
	}
	if client.Token() == "" {
		return nil, dserrors.ConfigError{
			Field:      "VAULT_TOKEN",
			Message:    "Vault token is required for the vault provider",
			Suggestion: "Set VAULT_TOKEN or log in with 'vault login'",
		}
	}
	if cfg.VaultNamespace != "" {
		client.SetNamespace(cfg.VaultNamespace)
	}

	mount := cfg.VaultMount
	if mount == "" {
		mount = DefaultVaultMount
	}
	s.kv = client.KVv2(mount)
	return s, nil
}

// Name returns the provider type.
func (s *VaultSource) Name() string {
	return TypeVault
}

// GetSecret reads the latest version of the secret at path id.
func (s *VaultSource) GetSecret(ctx context.Context, id string) (SecretValue, error) {
	secret, err := s.kv.Get(ctx, id)
	if err != nil {
		return SecretValue{}, dserrors.ProviderError(TypeVault, "Get", err)
	}
	if secret == nil || secret.Data == nil {
		return SecretValue{}, dserrors.ProviderError(TypeVault, "Get", vault.ErrSecretNotFound)
	}

	data, err := json.Marshal(secret.Data)
	if err != nil {
		return SecretValue{}, fmt.Errorf("failed to encode Vault secret data: %w", err)
	}

	value := SecretValue{
		Value:    string(data),
		IsString: true,
	}
	if secret.VersionMetadata != nil {
		value.Version = strconv.Itoa(secret.VersionMetadata.Version)
	}
	return value, nil
}

// NextRotationDate reads VaultRotationKey from the secret's custom metadata.
func (s *VaultSource) NextRotationDate(ctx context.Context, id string) (*time.Time, error) {
	meta, err := s.kv.GetMetadata(ctx, id)
	if err != nil {
		return nil, dserrors.ProviderError(TypeVault, "GetMetadata", err)
	}
	if meta == nil || meta.CustomMetadata == nil {
		return nil, nil
	}
	raw, ok := meta.CustomMetadata[VaultRotationKey]
	if !ok || raw == nil {
		return nil, nil
	}
	str, ok := raw.(string)
	if !ok || str == "" {
		return nil, nil
	}
	next, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q in Vault metadata for %s: %w", VaultRotationKey, str, id, err)
	}
	next = next.UTC()
	return &next, nil
}
