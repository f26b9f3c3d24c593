package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ruteri/omnichain-configurator/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: logger}
}

// StorageBackendFor creates a storage backend from a location URI of the form
// [scheme]://[auth@]host[:port][/path][?params].
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - Mutable file system of an IPFS node
//   - vault:// - HashiCorp Vault KV v2 mount
func (sf *StorageBackendFactory) StorageBackendFor(locationURI string) (interfaces.StorageBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return sf.createFileBackend(u)
	case "s3":
		return sf.createS3Backend(u)
	case "ipfs":
		return sf.createIPFSBackend(u)
	case "vault":
		return sf.createVaultBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location
// URIs. Invalid URIs are logged and skipped. Returns an error if no backend
// could be created.
func (sf *StorageBackendFactory) CreateMultiBackend(locationURIs []string) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locationURIs))
	for _, uri := range locationURIs {
		backend, err := sf.StorageBackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend", "err", err, slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}
	return NewMultiStorageBackend(backends, sf.log), nil
}

// file:///absolute/path or file://./relative/path
func (sf *StorageBackendFactory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in %s", interfaces.ErrInvalidLocationURI, u.Redacted())
	}
	return NewFileBackend(path, sf.log)
}

// s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=minio:9000
// Credentials default to AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func (sf *StorageBackendFactory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in %s", interfaces.ErrInvalidLocationURI, u.Redacted())
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	accessKey, secretKey := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(u.Host, u.Path, region, query.Get("endpoint"), accessKey, secretKey, sf.log)
}

// ipfs://host:port/root?timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(u *url.URL) (interfaces.StorageBackend, error) {
	port := u.Port()
	if port == "" {
		port = "5001"
	}

	timeout := 30 * time.Second
	if t := u.Query().Get("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", interfaces.ErrInvalidLocationURI, err)
		}
		timeout = d
	}

	root := u.Path
	if root == "" || root == "/" {
		root = "/configurator"
	}
	return NewIPFSBackend(u.Hostname(), port, root, timeout, sf.log)
}

// vault://host:port/mount/path?tls=false
// The token defaults to VAULT_TOKEN.
func (sf *StorageBackendFactory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: missing mount path in %s", interfaces.ErrInvalidLocationURI, u.Redacted())
	}
	dataPath := ""
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	scheme := "https"
	if u.Query().Get("tls") == "false" {
		scheme = "http"
	}

	token := os.Getenv("VAULT_TOKEN")
	if u.User != nil {
		token = u.User.Username()
	}

	return NewVaultBackend(scheme+"://"+u.Host, parts[0], dataPath, token, sf.log)
}
