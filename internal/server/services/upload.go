package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/events"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/items"
	"github.com/google/uuid"
)

// UploadRequest describes the file a client wants to upload. The declared
// size and content type are checked against policy before any signed URL
// is issued.
type UploadRequest struct {
	Name     string
	ParentID *string
	Size     int64
	MimeType string

	IsEncrypted     bool
	EncryptionKeyID string
	EncryptedBy     string
}

// FinalizeRequest confirms that an upload completed. With ItemID set it
// finalizes a pending item from the pre-create phase; without it, it
// registers a file whose object already exists in storage.
type FinalizeRequest struct {
	ItemID *string

	// The remaining fields are used only when ItemID is nil.
	Name            string
	ParentID        *string
	Size            int64
	MimeType        string
	StorageProvider string
	StoragePath     string

	IsEncrypted     bool
	EncryptionKeyID string
	EncryptedBy     string
}

// validateUploadPolicy applies the size and content-type policy and returns
// the sanitized file name.
func (s *VaultService) validateUploadPolicy(name string, size int64, mimeType string) (string, error) {
	name = SanitizeName(name)
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", common.ErrInvalidArgument)
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: size must be positive", common.ErrInvalidArgument)
	}
	if size > s.config.MaxFileSize {
		return "", fmt.Errorf("%w: size %d exceeds limit %d", common.ErrInvalidArgument, size, s.config.MaxFileSize)
	}
	if len(s.config.AllowedMimePrefixes) > 0 {
		allowed := false
		for _, prefix := range s.config.AllowedMimePrefixes {
			if strings.HasPrefix(mimeType, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("%w: content type %q is not allowed", common.ErrInvalidArgument, mimeType)
		}
	}
	return name, nil
}

// storageKeyPrefix is the namespace every object key of a user lives under.
// Keys outside a caller's prefix are never accepted from the client.
func storageKeyPrefix(userID string) string {
	return "vault/" + userID + "/"
}

// storageKey builds the object key for a new upload. Keys are date-bucketed
// under the owner so objects never collide and lifecycle rules can expire
// them by prefix.
func (s *VaultService) storageKey(userID string) string {
	now := s.now()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s", storageKeyPrefix(userID), now.Year(), now.Month(), now.Day(), uuid.NewString())
}

// fileTypeOf derives the coarse file category from a MIME type
// ("image/png" becomes "image").
func fileTypeOf(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	primary, _, _ := strings.Cut(mimeType, "/")
	return primary
}

// GetUploadSignedURL runs the pre-create phase of the upload protocol:
// validate, presign, then persist a pending item carrying the signed URL.
// Presigning happens before the insert, so a storage failure leaves no
// orphan record behind.
func (s *VaultService) GetUploadSignedURL(ctx context.Context, principalID string, req *UploadRequest) (*models.UploadTicket, error) {
	name, err := s.validateUploadPolicy(req.Name, req.Size, req.MimeType)
	if err != nil {
		return nil, err
	}

	var parent *models.VaultItem
	if req.ParentID != nil {
		if parent, err = s.resolveParent(ctx, *req.ParentID, principalID, principalID); err != nil {
			return nil, err
		}
	}

	if err := s.checkSiblingName(ctx, principalID, req.ParentID, name); err != nil {
		return nil, err
	}

	provider := s.config.StorageProvider
	adapter, err := s.storage.Get(provider)
	if err != nil {
		return nil, err
	}

	key := s.storageKey(principalID)
	signedURL, err := adapter.GenerateUploadURL(ctx, key, req.MimeType, s.config.UploadURLTTL, map[string]string{
		"owner": principalID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upload url issuance failed: %v", common.ErrInternal, err)
	}

	now := s.now()
	expiry := now.Add(s.config.UploadURLTTL)
	item := &models.VaultItem{
		ID:                    uuid.NewString(),
		UserID:                principalID,
		Type:                  models.ItemTypeFile,
		Name:                  name,
		ParentID:              req.ParentID,
		Path:                  ComputePath(name, parent),
		StorageProvider:       provider,
		StoragePath:           key,
		Size:                  req.Size,
		MimeType:              req.MimeType,
		FileType:              fileTypeOf(req.MimeType),
		CachedUploadURL:       &signedURL,
		CachedUploadURLExpiry: &expiry,
		IsEncrypted:           req.IsEncrypted,
		EncryptionKeyID:       req.EncryptionKeyID,
		EncryptedBy:           req.EncryptedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repos.Items(s.db).Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "upload pre-created", "item_id", item.ID, "path", item.Path, "size", item.Size)
	return &models.UploadTicket{
		ItemID:          item.ID,
		SignedURL:       signedURL,
		StorageProvider: provider,
		StoragePath:     key,
		ExpiresAt:       expiry,
	}, nil
}

// AddVaultFile finalizes an upload. Finalizing an already-finalized item is
// a no-op, so clients can safely retry.
func (s *VaultService) AddVaultFile(ctx context.Context, principalID string, req *FinalizeRequest) (*models.VaultItem, error) {
	if req.ItemID == nil {
		return s.registerExistingFile(ctx, principalID, req)
	}

	repo := s.repos.Items(s.db)
	item, err := repo.GetByID(ctx, *req.ItemID)
	if err != nil {
		return nil, err
	}
	if item.IsDeleted {
		return nil, common.ErrNotFound
	}
	if !ResolveAccess(item, principalID).AtLeast(models.AccessWrite) {
		return nil, common.ErrPermissionDenied
	}
	if !item.IsPendingUpload() {
		return item, nil
	}

	upd := &items.ItemUpdate{ClearCachedUploadURL: true}
	if req.Size > 0 && req.Size != item.Size {
		upd.Size = &req.Size
	}
	if req.MimeType != "" && req.MimeType != item.MimeType {
		ft := fileTypeOf(req.MimeType)
		upd.MimeType = &req.MimeType
		upd.FileType = &ft
	}
	if req.IsEncrypted {
		t := true
		upd.IsEncrypted = &t
		upd.EncryptionKeyID = &req.EncryptionKeyID
		upd.EncryptedBy = &req.EncryptedBy
	}

	if err := repo.Update(ctx, item.ID, upd); err != nil {
		return nil, err
	}

	item, err = repo.GetByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "upload finalized", "item_id", item.ID, "path", item.Path, "size", item.Size)
	s.invalidate(ctx, item.ID)
	s.publish(ctx, events.NewItemEvent(events.UploadFinalized, item.ID, string(item.Type), item.UserID, principalID))
	return item, nil
}

// registerExistingFile creates a finalized file record for an object that
// was written to storage out of band.
func (s *VaultService) registerExistingFile(ctx context.Context, principalID string, req *FinalizeRequest) (*models.VaultItem, error) {
	name, err := s.validateUploadPolicy(req.Name, req.Size, req.MimeType)
	if err != nil {
		return nil, err
	}

	var parent *models.VaultItem
	if req.ParentID != nil {
		if parent, err = s.resolveParent(ctx, *req.ParentID, principalID, principalID); err != nil {
			return nil, err
		}
	}

	if err := s.checkSiblingName(ctx, principalID, req.ParentID, name); err != nil {
		return nil, err
	}

	provider := req.StorageProvider
	if provider == "" {
		provider = s.config.StorageProvider
	}
	if _, err := s.storage.Get(provider); err != nil {
		return nil, fmt.Errorf("%w: unknown storage provider %q", common.ErrInvalidArgument, provider)
	}
	// A client-supplied key is accepted only inside the caller's own prefix;
	// anything else could alias another user's object and turn the download
	// URL issuance into a cross-tenant read.
	key := req.StoragePath
	if key == "" {
		key = s.storageKey(principalID)
	} else if !strings.HasPrefix(key, storageKeyPrefix(principalID)) {
		return nil, fmt.Errorf("%w: storage path outside the caller's namespace", common.ErrInvalidArgument)
	}

	now := s.now()
	item := &models.VaultItem{
		ID:              uuid.NewString(),
		UserID:          principalID,
		Type:            models.ItemTypeFile,
		Name:            name,
		ParentID:        req.ParentID,
		Path:            ComputePath(name, parent),
		StorageProvider: provider,
		StoragePath:     key,
		Size:            req.Size,
		MimeType:        req.MimeType,
		FileType:        fileTypeOf(req.MimeType),
		IsEncrypted:     req.IsEncrypted,
		EncryptionKeyID: req.EncryptionKeyID,
		EncryptedBy:     req.EncryptedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repos.Items(s.db).Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file registered", "item_id", item.ID, "path", item.Path)
	s.publish(ctx, events.NewItemEvent(events.UploadFinalized, item.ID, string(item.Type), item.UserID, principalID))
	return item, nil
}

// PendingUploadsBefore lists pending items whose signed URL expired before
// the cutoff, for an external cleanup sweep.
func (s *VaultService) PendingUploadsBefore(ctx context.Context, cutoff time.Time) ([]*models.VaultItem, error) {
	return s.repos.Items(s.db).ListPending(ctx, cutoff)
}
