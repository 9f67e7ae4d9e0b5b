// Package models defines the server-side data model persisted by the vault.
package models

import "time"

// ItemType distinguishes folder nodes from file nodes in the vault tree.
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// AccessLevel is the capability a principal resolves to on an item.
// Precedence: owner > write > read > none.
type AccessLevel string

const (
	AccessOwner AccessLevel = "owner"
	AccessWrite AccessLevel = "write"
	AccessRead  AccessLevel = "read"
	AccessNone  AccessLevel = "none"
)

// AtLeast reports whether a is greater than or equal to min in the
// owner > write > read > none ordering.
func (a AccessLevel) AtLeast(min AccessLevel) bool {
	rank := map[AccessLevel]int{AccessNone: 0, AccessRead: 1, AccessWrite: 2, AccessOwner: 3}
	return rank[a] >= rank[min]
}

// Permissions holds the per-capability grant lists. Both are subsets of the
// item's SharedWith set; a principal missing from SharedWith has no access
// regardless of stray entries here.
type Permissions struct {
	CanRead  []string `json:"canRead"`
	CanWrite []string `json:"canWrite"`
}

// VaultItem is the sole entity of the vault metadata tree: one record per
// file or folder node.
type VaultItem struct {
	ID     string   `json:"id"`
	UserID string   `json:"userId"`
	Type   ItemType `json:"type"`
	Name   string   `json:"name"`

	// ParentID is the containing folder, nil for root-level items.
	ParentID *string `json:"parentId,omitempty"`
	// Path is the materialized absolute path: "/" + name for roots,
	// parent.Path + "/" + name for children. Recomputed on rename/move.
	Path string `json:"path"`

	// IsDeleted marks a soft-deleted item. Deleted items are excluded from
	// listings, traversal and sibling-collision checks but kept for audit.
	IsDeleted bool `json:"isDeleted"`

	// StorageProvider and StoragePath identify the object-storage backend
	// and key for file items. Fixed at creation.
	StorageProvider string `json:"storageProvider,omitempty"`
	StoragePath     string `json:"storagePath,omitempty"`

	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	FileType string `json:"fileType,omitempty"`

	// CachedUploadURL and CachedUploadURLExpiry are present only while an
	// upload is pending; finalize clears them.
	CachedUploadURL       *string    `json:"cachedUploadUrl,omitempty"`
	CachedUploadURLExpiry *time.Time `json:"cachedUploadUrlExpiry,omitempty"`

	// Encryption metadata supplied by the caller. The vault never inspects
	// plaintext; these fields are recorded opaquely.
	IsEncrypted     bool   `json:"isEncrypted"`
	EncryptionKeyID string `json:"encryptionKeyId,omitempty"`
	EncryptedBy     string `json:"encryptedBy,omitempty"`

	// SharedWith is the set of principals granted any access beyond owner.
	SharedWith  []string    `json:"sharedWith"`
	Permissions Permissions `json:"permissions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsPendingUpload reports whether the item's storage object has not yet been
// confirmed as written.
func (i *VaultItem) IsPendingUpload() bool {
	return i.CachedUploadURL != nil
}

// AnnotatedItem is a VaultItem together with the access level resolved for
// the requesting principal. Listing operations return these.
type AnnotatedItem struct {
	VaultItem
	AccessLevel AccessLevel `json:"accessLevel"`
}

// UploadTicket is returned by the pre-create phase of the upload protocol:
// the signed URL the client PUTs the object to, plus the metadata it needs
// to finalize afterwards.
type UploadTicket struct {
	ItemID          string    `json:"itemId"`
	SignedURL       string    `json:"signedUrl"`
	StorageProvider string    `json:"storageProvider"`
	StoragePath     string    `json:"storagePath"`
	ExpiresAt       time.Time `json:"expiresAt"`
}
