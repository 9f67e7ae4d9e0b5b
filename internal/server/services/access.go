package services

import (
	"slices"

	"github.com/avolkov/filevault/internal/server/models"
)

// ResolveAccess computes the access level a principal has on an item.
// Precedence is owner > write > read > none; a principal present in both
// grant lists resolves to write. A principal absent from SharedWith has no
// access regardless of stray permission entries, and deleted items resolve
// to none for everyone but the owner.
func ResolveAccess(item *models.VaultItem, principalID string) models.AccessLevel {
	if item.UserID == principalID {
		return models.AccessOwner
	}
	if item.IsDeleted {
		return models.AccessNone
	}
	if !slices.Contains(item.SharedWith, principalID) {
		return models.AccessNone
	}
	if slices.Contains(item.Permissions.CanWrite, principalID) {
		return models.AccessWrite
	}
	if slices.Contains(item.Permissions.CanRead, principalID) {
		return models.AccessRead
	}
	return models.AccessNone
}
