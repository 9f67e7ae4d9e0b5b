// Package items defines the item-store contract for vault metadata records
// and its implementations. No other component mutates vault state except
// through this contract.
package items

import (
	"context"
	"time"

	"github.com/avolkov/filevault/internal/server/models"
)

// ParentUpdate carries a new parent assignment. A nil ID moves the item to
// the root level.
type ParentUpdate struct {
	ID *string
}

// ItemUpdate is a partial update: nil fields are left untouched.
type ItemUpdate struct {
	Name   *string
	Parent *ParentUpdate
	Path   *string

	Size     *int64
	MimeType *string
	FileType *string

	// ClearCachedUploadURL removes the pending-upload marker; it wins over
	// CachedUploadURL when both are set.
	ClearCachedUploadURL  bool
	CachedUploadURL       *string
	CachedUploadURLExpiry *time.Time

	IsEncrypted     *bool
	EncryptionKeyID *string
	EncryptedBy     *string

	// The share lists are replaced as a unit so SharedWith and the
	// permission subsets can never drift apart.
	SharedWith *[]string
	CanRead    *[]string
	CanWrite   *[]string

	// ExpectedUpdatedAt, when set, makes the update conditional on the
	// stored updated_at still matching. A miss returns common.ErrConflict.
	ExpectedUpdatedAt *time.Time
}

// Repository is the item-store contract. All filtering (owner, parent,
// deletion flag, shared-with membership) is expressed here so the backing
// store can index it. Implementations return common.ErrNotFound for missing
// records and exclude soft-deleted items from every listing and lookup
// except GetByID.
type Repository interface {
	// Create persists a new record. A non-deleted sibling with the same
	// owner, parent and name returns common.ErrAlreadyExists, so two
	// concurrent creates of the same name cannot both succeed even though
	// the service checks for collisions before inserting.
	Create(ctx context.Context, item *models.VaultItem) error

	// GetByID returns the record regardless of its deletion flag.
	GetByID(ctx context.Context, id string) (*models.VaultItem, error)

	// Update applies a partial update and refreshes updated_at.
	Update(ctx context.Context, id string, upd *ItemUpdate) error

	// ListByParent returns non-deleted items owned by userID directly under
	// parentID (nil for root level).
	ListByParent(ctx context.Context, userID string, parentID *string) ([]*models.VaultItem, error)

	// ListSharedWith returns non-deleted items shared with principalID
	// directly under parentID (nil for root level).
	ListSharedWith(ctx context.Context, principalID string, parentID *string) ([]*models.VaultItem, error)

	// ListAllSharedWith returns every non-deleted item shared with
	// principalID, regardless of parent.
	ListAllSharedWith(ctx context.Context, principalID string) ([]*models.VaultItem, error)

	// ListChildren returns the non-deleted direct children of a folder,
	// for descendant traversal.
	ListChildren(ctx context.Context, parentID string) ([]*models.VaultItem, error)

	// FindByName returns the non-deleted sibling with the given name, or
	// common.ErrNotFound.
	FindByName(ctx context.Context, userID string, parentID *string, name string) (*models.VaultItem, error)

	// SoftDelete flags the record deleted. Deleting an already-deleted
	// record is a no-op.
	SoftDelete(ctx context.Context, id string) error

	// ListPending returns non-deleted items whose upload was never
	// finalized and whose signed URL expired before olderThan. Intended
	// for an external sweep; the core never deletes them itself.
	ListPending(ctx context.Context, olderThan time.Time) ([]*models.VaultItem, error)
}
