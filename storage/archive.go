package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruteri/omnichain-configurator/interfaces"
)

// ErrContentMismatch is returned when fetched content does not hash to the
// requested id.
var ErrContentMismatch = errors.New("content does not match its id")

// StoreJSON serializes v and stores it in backend.
func StoreJSON(ctx context.Context, backend interfaces.StorageBackend, contentType interfaces.ContentType, v any) (interfaces.ContentID, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to encode %s: %w", contentType, err)
	}
	return backend.Store(ctx, data, contentType)
}

// FetchJSON fetches the content stored under id, checks it against the id and
// decodes it into v.
func FetchJSON(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID, contentType interfaces.ContentType, v any) error {
	data, err := backend.Fetch(ctx, id, contentType)
	if err != nil {
		return err
	}
	if !interfaces.ComputeID(data).Equal(id) {
		return fmt.Errorf("%w: %s", ErrContentMismatch, id)
	}
	return json.Unmarshal(data, v)
}
