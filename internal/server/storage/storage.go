// Package storage abstracts the object-storage backends behind a narrow
// capability interface. Business logic never branches on the backend; it
// selects an adapter from the registry and calls the same three operations.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/avolkov/filevault/internal/common"
)

// Provider identifiers. An item records the provider it was created with
// and uses it for every subsequent operation, so reconfiguring the default
// never breaks existing items.
const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
)

// Adapter is the capability set every backend implements: issue signed
// upload/download URLs and delete objects. Calls are single-shot network
// requests; retry policy, if any, belongs to the implementation.
type Adapter interface {
	// GenerateUploadURL returns a signed URL permitting one direct PUT of
	// the object under key with the given content type.
	GenerateUploadURL(ctx context.Context, key, contentType string, ttl time.Duration, metadata map[string]string) (string, error)

	// GenerateDownloadURL returns a signed URL permitting one direct GET.
	GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// DeleteObject removes the object under key.
	DeleteObject(ctx context.Context, key string) error
}

// Registry holds the configured adapters keyed by provider id.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(provider string, a Adapter) {
	r.adapters[provider] = a
}

// Get returns the adapter for the given provider id.
func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown storage provider %q", common.ErrInternal, provider)
	}
	return a, nil
}
