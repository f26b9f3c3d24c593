package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/omnichain-configurator/interfaces"
)

// MultiStorageBackend writes to every available backend and reads from the
// first one that has the content.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

func (m *MultiStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend", backend.Name()))
			continue
		}

		data, err := backend.Fetch(ctx, id, contentType)
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend", backend.Name()),
				slog.String("contentID", id.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend", slog.String("backend", backend.Name()), "err", err)
	}

	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", id, errors.Join(errs...))
}

// Store saves data to all available backends. It succeeds if any backend
// stored the data.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	start := time.Now()
	var (
		result  interfaces.ContentID
		success bool
		errs    []error
	)

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend", backend.Name()))
			continue
		}

		id, err := backend.Store(ctx, data, contentType)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend", slog.String("backend", backend.Name()), "err", err)
			continue
		}

		if !success {
			result, success = id, true
		} else if result != id {
			m.log.Warn("Inconsistent content ids from backends",
				slog.String("backend", backend.Name()),
				slog.String("expected", result.String()),
				slog.String("actual", id.String()))
		}
	}

	if !success {
		if len(errs) == 0 {
			return result, interfaces.ErrBackendUnavailable
		}
		return result, fmt.Errorf("all backends failed to store data: %w", errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("contentID", result.String()),
		slog.String("type", contentType.String()),
		slog.Int("failedBackends", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
