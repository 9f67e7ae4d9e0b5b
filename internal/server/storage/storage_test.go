package storage

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ name string }

func (s *stubAdapter) GenerateUploadURL(ctx context.Context, key, contentType string, ttl time.Duration, metadata map[string]string) (string, error) {
	return "https://" + s.name + "/" + key, nil
}

func (s *stubAdapter) GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://" + s.name + "/" + key, nil
}

func (s *stubAdapter) DeleteObject(ctx context.Context, key string) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(ProviderS3, &stubAdapter{name: "aws"})
	r.Register(ProviderMinio, &stubAdapter{name: "minio"})

	a, err := r.Get(ProviderS3)
	require.NoError(t, err)
	url, err := a.GenerateUploadURL(context.Background(), "k", "text/plain", time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://aws/k", url)

	_, err = r.Get("gcs")
	assert.ErrorIs(t, err, common.ErrInternal)
}
