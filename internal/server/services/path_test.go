package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/items"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"  padded  ", "padded"},
		{"../etc/passwd", "etcpasswd"},
		{"a/b\\c", "abc"},
		{`we"ird:*?<>|`, "weird"},
		{"nul\x00tab\tend", "nultabend"},
		{"....", ""},
		{"   ", ""},
		{"naïve café", "naïve café"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestComputePath(t *testing.T) {
	assert.Equal(t, "/Docs", ComputePath("Docs", nil))

	parent := &models.VaultItem{Name: "Docs", Path: "/Docs"}
	assert.Equal(t, "/Docs/Taxes", ComputePath("Taxes", parent))
}

func TestParentPathOf(t *testing.T) {
	assert.Equal(t, "", parentPathOf(&models.VaultItem{Name: "Docs", Path: "/Docs"}))
	assert.Equal(t, "/Docs", parentPathOf(&models.VaultItem{Name: "Taxes", Path: "/Docs/Taxes"}))
}

func TestRebasePath(t *testing.T) {
	assert.Equal(t, "/Documents/Taxes", rebasePath("/Docs/Taxes", "/Docs", "/Documents"))
	assert.Equal(t, "/Archive/Taxes/2024.pdf", rebasePath("/Docs/Taxes/2024.pdf", "/Docs/Taxes", "/Archive/Taxes"))
}

func TestCollectDescendants(t *testing.T) {
	ctx := context.Background()

	seedChain := func(t *testing.T, repo items.Repository, depth int) string {
		t.Helper()
		var parentID *string
		var rootID string
		path := ""
		for i := 0; i < depth; i++ {
			name := fmt.Sprintf("level%d", i)
			path += "/" + name
			item := &models.VaultItem{
				ID:       name,
				UserID:   "alice",
				Type:     models.ItemTypeFolder,
				Name:     name,
				ParentID: parentID,
				Path:     path,
			}
			require.NoError(t, repo.Create(ctx, item))
			if i == 0 {
				rootID = item.ID
			}
			id := item.ID
			parentID = &id
		}
		return rootID
	}

	t.Run("walks arbitrarily deep chains", func(t *testing.T) {
		repo := items.NewMemoryRepository()
		root := seedChain(t, repo, 50)

		descendants, err := collectDescendants(ctx, repo, root, 1000)
		require.NoError(t, err)
		assert.Len(t, descendants, 49)
	})

	t.Run("fails closed over the limit", func(t *testing.T) {
		repo := items.NewMemoryRepository()
		root := seedChain(t, repo, 10)

		_, err := collectDescendants(ctx, repo, root, 5)
		assert.ErrorIs(t, err, common.ErrTreeTooLarge)
	})

	t.Run("limit equal to the subtree size passes", func(t *testing.T) {
		repo := items.NewMemoryRepository()
		root := seedChain(t, repo, 10)

		descendants, err := collectDescendants(ctx, repo, root, 9)
		require.NoError(t, err)
		assert.Len(t, descendants, 9)
	})

	t.Run("files are leaves", func(t *testing.T) {
		repo := items.NewMemoryRepository()
		root := seedChain(t, repo, 2)

		leaf := "level1"
		file := &models.VaultItem{
			ID: "f1", UserID: "alice", Type: models.ItemTypeFile,
			Name: "a.txt", ParentID: &leaf, Path: "/level0/level1/a.txt",
		}
		require.NoError(t, repo.Create(ctx, file))

		descendants, err := collectDescendants(ctx, repo, root, 100)
		require.NoError(t, err)
		assert.Len(t, descendants, 2)
	})
}
