package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/omnichain-configurator/interfaces"
)

// VaultBackend stores plans and reports in a HashiCorp Vault KV v2 mount.
// Plans carry signer addresses and are kept out of public stores when vault
// is the only configured backend.
type VaultBackend struct {
	client      *api.Client
	kv          *api.KVv2
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault storage backend authenticated with token.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "configurator")
//   - token: Vault token, usually taken from VAULT_TOKEN
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		kv:          client.KVv2(mountPath),
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch reads the content stored under id.
func (b *VaultBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	secretPath := b.secretPath(id, contentType)

	secret, err := b.kv.Get(ctx, secretPath)
	if errors.Is(err, api.ErrSecretNotFound) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		b.log.Error("Failed to read from Vault", slog.String("path", secretPath), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	content, ok := secret.Data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data at %s", secretPath)
	}

	b.log.Debug("Fetched content from Vault",
		slog.String("path", secretPath),
		slog.Duration("duration", time.Since(start)))

	return []byte(content), nil
}

// Store writes data under its content id.
func (b *VaultBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	secretPath := b.secretPath(id, contentType)

	_, err := b.kv.Put(ctx, secretPath, map[string]any{"content": string(data)})
	if err != nil {
		b.log.Error("Failed to write to Vault", slog.String("path", secretPath), "err", err)
		return id, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Vault",
		slog.String("path", secretPath),
		slog.String("contentID", id.String()))

	return id, nil
}

// Available checks that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}
	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) secretPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	if b.dataPath == "" {
		return contentType.String() + "/" + id.String()
	}
	return b.dataPath + "/" + contentType.String() + "/" + id.String()
}
