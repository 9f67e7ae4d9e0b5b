// Package services implements the vault core: access resolution, path
// synchronization, the two-phase upload protocol, and the public vault
// operations composed from them.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/cache"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/events"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/items"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
	"github.com/avolkov/filevault/internal/server/storage"
	"github.com/google/uuid"
)

// VaultService exposes the public vault operations. It is stateless between
// calls; all state lives in the item store, so unrelated operations can run
// concurrently with no coordination.
type VaultService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	storage *storage.Registry
	config  *config.Config
	logger  logging.Logger
	events  *events.Producer
	cache   *cache.ItemCache
	now     func() time.Time
}

func NewVaultService(db *sql.DB, repos repomanager.RepositoryManager, reg *storage.Registry,
	cfg *config.Config, logger logging.Logger, producer *events.Producer, itemCache *cache.ItemCache) *VaultService {
	return &VaultService{
		db:      db,
		repos:   repos,
		storage: reg,
		config:  cfg,
		logger:  logger.With("module", "vault_service"),
		events:  producer,
		cache:   itemCache,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// publish sends an item event best-effort: a broker failure is logged and
// never fails the operation.
func (s *VaultService) publish(ctx context.Context, ev *events.ItemEvent) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "event publish failed", "event", ev.EventType, "item_id", ev.ItemID, "error", err.Error())
	}
}

// invalidate drops cached records best-effort.
func (s *VaultService) invalidate(ctx context.Context, ids ...string) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn(ctx, "cache invalidation failed", "error", err.Error())
	}
}

// getActive returns the non-deleted item with the given id, consulting the
// cache first. Missing and soft-deleted items are both ErrNotFound.
func (s *VaultService) getActive(ctx context.Context, id string) (*models.VaultItem, error) {
	if cached, err := s.cache.GetItem(ctx, id); err == nil && cached != nil {
		if cached.IsDeleted {
			return nil, common.ErrNotFound
		}
		return cached, nil
	}

	item, err := s.repos.Items(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsDeleted {
		return nil, common.ErrNotFound
	}

	if err := s.cache.SetItem(ctx, item); err != nil {
		s.logger.Warn(ctx, "cache store failed", "item_id", id, "error", err.Error())
	}
	return item, nil
}

// resolveParent validates a parent reference for item creation or move:
// it must be an existing, non-deleted folder owned by ownerID, and the
// acting principal must hold at least write on it.
func (s *VaultService) resolveParent(ctx context.Context, parentID, ownerID, principalID string) (*models.VaultItem, error) {
	parent, err := s.getActive(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Type != models.ItemTypeFolder {
		return nil, fmt.Errorf("%w: parent is not a folder", common.ErrNotFound)
	}
	// Cross-user nesting is disallowed: every item hangs under a folder of
	// its own owner.
	if parent.UserID != ownerID {
		return nil, common.ErrPermissionDenied
	}
	if !ResolveAccess(parent, principalID).AtLeast(models.AccessWrite) {
		return nil, common.ErrPermissionDenied
	}
	return parent, nil
}

// checkSiblingName rejects name collisions among non-deleted siblings.
func (s *VaultService) checkSiblingName(ctx context.Context, ownerID string, parentID *string, name string) error {
	_, err := s.repos.Items(s.db).FindByName(ctx, ownerID, parentID, name)
	if err == nil {
		return common.ErrAlreadyExists
	}
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

// CreateFolder creates a folder under parentID (nil for root level) and
// returns the persisted record.
func (s *VaultService) CreateFolder(ctx context.Context, principalID, name string, parentID *string) (*models.VaultItem, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty folder name", common.ErrInvalidArgument)
	}

	var parent *models.VaultItem
	if parentID != nil {
		var err error
		if parent, err = s.resolveParent(ctx, *parentID, principalID, principalID); err != nil {
			return nil, err
		}
	}

	if err := s.checkSiblingName(ctx, principalID, parentID, name); err != nil {
		return nil, err
	}

	now := s.now()
	folder := &models.VaultItem{
		ID:        uuid.NewString(),
		UserID:    principalID,
		Type:      models.ItemTypeFolder,
		Name:      name,
		ParentID:  parentID,
		Path:      ComputePath(name, parent),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repos.Items(s.db).Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "folder created", "item_id", folder.ID, "path", folder.Path)
	s.publish(ctx, events.NewItemEvent(events.ItemCreated, folder.ID, string(folder.Type), folder.UserID, principalID))
	return folder, nil
}

// GetItem returns a single item annotated with the caller's access level.
func (s *VaultService) GetItem(ctx context.Context, principalID, itemID string) (*models.AnnotatedItem, error) {
	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return nil, err
	}

	access := ResolveAccess(item, principalID)
	if !access.AtLeast(models.AccessRead) {
		return nil, common.ErrPermissionDenied
	}

	return &models.AnnotatedItem{VaultItem: *item, AccessLevel: access}, nil
}

// GetItems lists the union of items the caller owns under parentID and items
// shared with the caller under parentID, folders first, then by name.
func (s *VaultService) GetItems(ctx context.Context, principalID string, parentID *string) ([]*models.AnnotatedItem, error) {
	repo := s.repos.Items(s.db)

	owned, err := repo.ListByParent(ctx, principalID, parentID)
	if err != nil {
		return nil, err
	}
	shared, err := repo.ListSharedWith(ctx, principalID, parentID)
	if err != nil {
		return nil, err
	}

	return s.annotateAndSort(principalID, owned, shared), nil
}

// ListSharedWithMe lists every item shared with the caller, across parents.
func (s *VaultService) ListSharedWithMe(ctx context.Context, principalID string) ([]*models.AnnotatedItem, error) {
	shared, err := s.repos.Items(s.db).ListAllSharedWith(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return s.annotateAndSort(principalID, nil, shared), nil
}

func (s *VaultService) annotateAndSort(principalID string, lists ...[]*models.VaultItem) []*models.AnnotatedItem {
	seen := make(map[string]struct{})
	result := []*models.AnnotatedItem{}

	for _, list := range lists {
		for _, item := range list {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}

			access := ResolveAccess(item, principalID)
			if access == models.AccessNone {
				continue
			}
			result = append(result, &models.AnnotatedItem{VaultItem: *item, AccessLevel: access})
		}
	}

	slices.SortFunc(result, func(a, b *models.AnnotatedItem) int {
		if a.Type != b.Type {
			if a.Type == models.ItemTypeFolder {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})

	return result
}

// RenameItem renames an item and rewrites the materialized path of every
// descendant. Validation (access, collision, subtree ceiling) happens
// before any write; the rewrite itself runs in one transaction.
func (s *VaultService) RenameItem(ctx context.Context, principalID, itemID, newName string) error {
	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return err
	}
	if !ResolveAccess(item, principalID).AtLeast(models.AccessWrite) {
		return common.ErrPermissionDenied
	}

	newName = SanitizeName(newName)
	if newName == "" {
		return fmt.Errorf("%w: empty name", common.ErrInvalidArgument)
	}
	if newName == item.Name {
		return nil
	}

	if err := s.checkSiblingName(ctx, item.UserID, item.ParentID, newName); err != nil {
		return err
	}

	oldPath := item.Path
	newPath := parentPathOf(item) + "/" + newName

	descendants, err := s.descendantsOf(ctx, item)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repos.Items(tx)
		if err := txRepo.Update(ctx, item.ID, &items.ItemUpdate{
			Name:              &newName,
			Path:              &newPath,
			ExpectedUpdatedAt: &item.UpdatedAt,
		}); err != nil {
			return err
		}
		return s.rewriteDescendantPaths(ctx, txRepo, descendants, oldPath, newPath)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "item renamed", "item_id", item.ID, "old_path", oldPath, "new_path", newPath, "descendants", len(descendants))
	s.invalidate(ctx, collectIDs(item.ID, descendants)...)
	s.publish(ctx, events.NewItemEvent(events.ItemRenamed, item.ID, string(item.Type), item.UserID, principalID))
	return nil
}

// MoveItem reparents an item (nil newParentID moves it to root level) and
// rewrites descendant paths, with the same pre-validation discipline as
// RenameItem. Moving a folder into its own subtree is rejected.
func (s *VaultService) MoveItem(ctx context.Context, principalID, itemID string, newParentID *string) error {
	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return err
	}
	if !ResolveAccess(item, principalID).AtLeast(models.AccessWrite) {
		return common.ErrPermissionDenied
	}

	if sameParentID(item.ParentID, newParentID) {
		return nil
	}

	var parent *models.VaultItem
	if newParentID != nil {
		if parent, err = s.resolveParent(ctx, *newParentID, item.UserID, principalID); err != nil {
			return err
		}
		if parent.Path == item.Path || strings.HasPrefix(parent.Path, item.Path+"/") {
			return fmt.Errorf("%w: cannot move a folder into its own subtree", common.ErrInvalidArgument)
		}
	}

	if err := s.checkSiblingName(ctx, item.UserID, newParentID, item.Name); err != nil {
		return err
	}

	oldPath := item.Path
	newPath := ComputePath(item.Name, parent)

	descendants, err := s.descendantsOf(ctx, item)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repos.Items(tx)
		if err := txRepo.Update(ctx, item.ID, &items.ItemUpdate{
			Parent:            &items.ParentUpdate{ID: newParentID},
			Path:              &newPath,
			ExpectedUpdatedAt: &item.UpdatedAt,
		}); err != nil {
			return err
		}
		return s.rewriteDescendantPaths(ctx, txRepo, descendants, oldPath, newPath)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "item moved", "item_id", item.ID, "old_path", oldPath, "new_path", newPath)
	s.invalidate(ctx, collectIDs(item.ID, descendants)...)
	s.publish(ctx, events.NewItemEvent(events.ItemMoved, item.ID, string(item.Type), item.UserID, principalID))
	return nil
}

// DeleteItem soft-deletes an item and, transitively, its descendants.
// Owner-only. Deleting an already-deleted item is a no-op.
func (s *VaultService) DeleteItem(ctx context.Context, principalID, itemID string) error {
	item, err := s.repos.Items(s.db).GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.UserID != principalID {
		return common.ErrPermissionDenied
	}
	if item.IsDeleted {
		return nil
	}

	descendants, err := s.descendantsOf(ctx, item)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repos.Items(tx)
		if err := txRepo.SoftDelete(ctx, item.ID); err != nil {
			return err
		}
		for _, d := range descendants {
			if err := txRepo.SoftDelete(ctx, d.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "item deleted", "item_id", item.ID, "path", item.Path, "descendants", len(descendants))
	s.invalidate(ctx, collectIDs(item.ID, descendants)...)
	s.publish(ctx, events.NewItemEvent(events.ItemDeleted, item.ID, string(item.Type), item.UserID, principalID))
	return nil
}

// ShareItem grants a principal read or write on an item. Owner-only.
// SharedWith and the grant lists are replaced together so they can never
// drift apart.
func (s *VaultService) ShareItem(ctx context.Context, principalID, itemID, targetID string, level models.AccessLevel) error {
	if level != models.AccessRead && level != models.AccessWrite {
		return fmt.Errorf("%w: share level must be read or write", common.ErrInvalidArgument)
	}
	if targetID == "" {
		return fmt.Errorf("%w: empty target principal", common.ErrInvalidArgument)
	}

	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return err
	}
	if ResolveAccess(item, principalID) != models.AccessOwner {
		return common.ErrPermissionDenied
	}
	if targetID == item.UserID {
		return fmt.Errorf("%w: cannot share with the owner", common.ErrInvalidArgument)
	}

	sharedWith := addToSet(item.SharedWith, targetID)
	canRead := item.Permissions.CanRead
	canWrite := item.Permissions.CanWrite
	if level == models.AccessWrite {
		canWrite = addToSet(canWrite, targetID)
		canRead = removeFromSet(canRead, targetID)
	} else {
		canRead = addToSet(canRead, targetID)
		canWrite = removeFromSet(canWrite, targetID)
	}

	if err := s.repos.Items(s.db).Update(ctx, item.ID, &items.ItemUpdate{
		SharedWith: &sharedWith,
		CanRead:    &canRead,
		CanWrite:   &canWrite,
	}); err != nil {
		return err
	}

	s.invalidate(ctx, item.ID)
	ev := events.NewItemEvent(events.ItemShared, item.ID, string(item.Type), item.UserID, principalID)
	ev.TargetUserID = targetID
	ev.AccessLevel = string(level)
	s.publish(ctx, ev)
	return nil
}

// UnshareItem revokes every grant the target principal has on the item.
// Owner-only; revoking a principal that was never granted is a no-op.
func (s *VaultService) UnshareItem(ctx context.Context, principalID, itemID, targetID string) error {
	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return err
	}
	if ResolveAccess(item, principalID) != models.AccessOwner {
		return common.ErrPermissionDenied
	}

	sharedWith := removeFromSet(item.SharedWith, targetID)
	canRead := removeFromSet(item.Permissions.CanRead, targetID)
	canWrite := removeFromSet(item.Permissions.CanWrite, targetID)

	if err := s.repos.Items(s.db).Update(ctx, item.ID, &items.ItemUpdate{
		SharedWith: &sharedWith,
		CanRead:    &canRead,
		CanWrite:   &canWrite,
	}); err != nil {
		return err
	}

	s.invalidate(ctx, item.ID)
	ev := events.NewItemEvent(events.ItemUnshared, item.ID, string(item.Type), item.UserID, principalID)
	ev.TargetUserID = targetID
	s.publish(ctx, ev)
	return nil
}

// GetDownloadSignedURL issues a signed download URL for a finalized file,
// using the storage provider the item was created with.
func (s *VaultService) GetDownloadSignedURL(ctx context.Context, principalID, itemID string) (string, error) {
	item, err := s.getActive(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.Type != models.ItemTypeFile {
		return "", fmt.Errorf("%w: not a file", common.ErrInvalidArgument)
	}
	if item.IsPendingUpload() {
		return "", fmt.Errorf("%w: upload not finalized", common.ErrInvalidArgument)
	}
	if !ResolveAccess(item, principalID).AtLeast(models.AccessRead) {
		return "", common.ErrPermissionDenied
	}

	adapter, err := s.storage.Get(item.StorageProvider)
	if err != nil {
		return "", err
	}

	url, err := adapter.GenerateDownloadURL(ctx, item.StoragePath, s.config.DownloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: download url issuance failed: %v", common.ErrInternal, err)
	}
	return url, nil
}

// descendantsOf collects the subtree under a folder within the configured
// ceiling; files have no descendants.
func (s *VaultService) descendantsOf(ctx context.Context, item *models.VaultItem) ([]*models.VaultItem, error) {
	if item.Type != models.ItemTypeFolder {
		return nil, nil
	}
	return collectDescendants(ctx, s.repos.Items(s.db), item.ID, s.config.MaxUpdateDepth)
}

func (s *VaultService) rewriteDescendantPaths(ctx context.Context, repo items.Repository, descendants []*models.VaultItem, oldPath, newPath string) error {
	for _, d := range descendants {
		rebased := rebasePath(d.Path, oldPath, newPath)
		if err := repo.Update(ctx, d.ID, &items.ItemUpdate{Path: &rebased}); err != nil {
			return err
		}
	}
	return nil
}

func sameParentID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func collectIDs(rootID string, descendants []*models.VaultItem) []string {
	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, rootID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	return ids
}

func addToSet(set []string, v string) []string {
	if slices.Contains(set, v) {
		return slices.Clone(set)
	}
	return append(slices.Clone(set), v)
}

func removeFromSet(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
