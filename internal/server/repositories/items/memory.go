package items

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
)

// MemoryRepository is an in-memory item store used by tests and local
// development. It honors the same contract as the Postgres implementation.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.VaultItem
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*models.VaultItem)}
}

func cloneItem(item *models.VaultItem) *models.VaultItem {
	c := *item
	c.SharedWith = slices.Clone(item.SharedWith)
	c.Permissions.CanRead = slices.Clone(item.Permissions.CanRead)
	c.Permissions.CanWrite = slices.Clone(item.Permissions.CanWrite)
	if item.ParentID != nil {
		p := *item.ParentID
		c.ParentID = &p
	}
	if item.CachedUploadURL != nil {
		u := *item.CachedUploadURL
		c.CachedUploadURL = &u
	}
	if item.CachedUploadURLExpiry != nil {
		e := *item.CachedUploadURLExpiry
		c.CachedUploadURLExpiry = &e
	}
	return &c
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *MemoryRepository) Create(ctx context.Context, item *models.VaultItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if !existing.IsDeleted && existing.UserID == item.UserID &&
			sameParent(existing.ParentID, item.ParentID) && existing.Name == item.Name {
			return common.ErrAlreadyExists
		}
	}

	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.VaultItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneItem(item), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, upd *ItemUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return common.ErrNotFound
	}
	if upd.ExpectedUpdatedAt != nil && !item.UpdatedAt.Equal(*upd.ExpectedUpdatedAt) {
		return common.ErrConflict
	}

	if upd.Name != nil {
		item.Name = *upd.Name
	}
	if upd.Parent != nil {
		if upd.Parent.ID == nil {
			item.ParentID = nil
		} else {
			p := *upd.Parent.ID
			item.ParentID = &p
		}
	}
	if upd.Path != nil {
		item.Path = *upd.Path
	}
	if upd.Size != nil {
		item.Size = *upd.Size
	}
	if upd.MimeType != nil {
		item.MimeType = *upd.MimeType
	}
	if upd.FileType != nil {
		item.FileType = *upd.FileType
	}
	if upd.ClearCachedUploadURL {
		item.CachedUploadURL = nil
		item.CachedUploadURLExpiry = nil
	} else {
		if upd.CachedUploadURL != nil {
			u := *upd.CachedUploadURL
			item.CachedUploadURL = &u
		}
		if upd.CachedUploadURLExpiry != nil {
			e := *upd.CachedUploadURLExpiry
			item.CachedUploadURLExpiry = &e
		}
	}
	if upd.IsEncrypted != nil {
		item.IsEncrypted = *upd.IsEncrypted
	}
	if upd.EncryptionKeyID != nil {
		item.EncryptionKeyID = *upd.EncryptionKeyID
	}
	if upd.EncryptedBy != nil {
		item.EncryptedBy = *upd.EncryptedBy
	}
	if upd.SharedWith != nil {
		item.SharedWith = slices.Clone(*upd.SharedWith)
	}
	if upd.CanRead != nil {
		item.Permissions.CanRead = slices.Clone(*upd.CanRead)
	}
	if upd.CanWrite != nil {
		item.Permissions.CanWrite = slices.Clone(*upd.CanWrite)
	}

	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) list(match func(*models.VaultItem) bool) []*models.VaultItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.VaultItem
	for _, item := range r.items {
		if !item.IsDeleted && match(item) {
			result = append(result, cloneItem(item))
		}
	}
	return result
}

func (r *MemoryRepository) ListByParent(ctx context.Context, userID string, parentID *string) ([]*models.VaultItem, error) {
	return r.list(func(i *models.VaultItem) bool {
		return i.UserID == userID && sameParent(i.ParentID, parentID)
	}), nil
}

func (r *MemoryRepository) ListSharedWith(ctx context.Context, principalID string, parentID *string) ([]*models.VaultItem, error) {
	return r.list(func(i *models.VaultItem) bool {
		return slices.Contains(i.SharedWith, principalID) && sameParent(i.ParentID, parentID)
	}), nil
}

func (r *MemoryRepository) ListAllSharedWith(ctx context.Context, principalID string) ([]*models.VaultItem, error) {
	return r.list(func(i *models.VaultItem) bool {
		return slices.Contains(i.SharedWith, principalID)
	}), nil
}

func (r *MemoryRepository) ListChildren(ctx context.Context, parentID string) ([]*models.VaultItem, error) {
	return r.list(func(i *models.VaultItem) bool {
		return i.ParentID != nil && *i.ParentID == parentID
	}), nil
}

func (r *MemoryRepository) FindByName(ctx context.Context, userID string, parentID *string, name string) (*models.VaultItem, error) {
	found := r.list(func(i *models.VaultItem) bool {
		return i.UserID == userID && sameParent(i.ParentID, parentID) && i.Name == name
	})
	if len(found) == 0 {
		return nil, common.ErrNotFound
	}
	return found[0], nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil
	}
	if !item.IsDeleted {
		item.IsDeleted = true
		item.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) ListPending(ctx context.Context, olderThan time.Time) ([]*models.VaultItem, error) {
	return r.list(func(i *models.VaultItem) bool {
		return i.CachedUploadURL != nil && i.CachedUploadURLExpiry != nil && i.CachedUploadURLExpiry.Before(olderThan)
	}), nil
}
