package services

import (
	"testing"

	"github.com/avolkov/filevault/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveAccess(t *testing.T) {
	base := func() *models.VaultItem {
		return &models.VaultItem{
			ID:         "item1",
			UserID:     "alice",
			SharedWith: []string{"bob", "carol"},
			Permissions: models.Permissions{
				CanRead:  []string{"bob"},
				CanWrite: []string{"carol"},
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*models.VaultItem)
		principal string
		want      models.AccessLevel
	}{
		{name: "owner", principal: "alice", want: models.AccessOwner},
		{name: "read grant", principal: "bob", want: models.AccessRead},
		{name: "write grant", principal: "carol", want: models.AccessWrite},
		{name: "stranger", principal: "dave", want: models.AccessNone},
		{
			name:      "grant without shared-with membership is inert",
			principal: "dave",
			mutate: func(i *models.VaultItem) {
				i.Permissions.CanWrite = append(i.Permissions.CanWrite, "dave")
			},
			want: models.AccessNone,
		},
		{
			name:      "both lists resolve to write",
			principal: "bob",
			mutate: func(i *models.VaultItem) {
				i.Permissions.CanWrite = append(i.Permissions.CanWrite, "bob")
			},
			want: models.AccessWrite,
		},
		{
			name:      "shared-with entry without any grant",
			principal: "erin",
			mutate: func(i *models.VaultItem) {
				i.SharedWith = append(i.SharedWith, "erin")
			},
			want: models.AccessNone,
		},
		{
			name:      "deleted item hides grants",
			principal: "carol",
			mutate:    func(i *models.VaultItem) { i.IsDeleted = true },
			want:      models.AccessNone,
		},
		{
			name:      "deleted item still resolves for the owner",
			principal: "alice",
			mutate:    func(i *models.VaultItem) { i.IsDeleted = true },
			want:      models.AccessOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := base()
			if tt.mutate != nil {
				tt.mutate(item)
			}
			assert.Equal(t, tt.want, ResolveAccess(item, tt.principal))
		})
	}
}

func TestAccessLevelAtLeast(t *testing.T) {
	assert.True(t, models.AccessOwner.AtLeast(models.AccessWrite))
	assert.True(t, models.AccessWrite.AtLeast(models.AccessWrite))
	assert.True(t, models.AccessWrite.AtLeast(models.AccessRead))
	assert.False(t, models.AccessRead.AtLeast(models.AccessWrite))
	assert.False(t, models.AccessNone.AtLeast(models.AccessRead))
}
