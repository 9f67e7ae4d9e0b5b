package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// VaultAPI is the service surface the HTTP handlers call. The concrete
// implementation is services.VaultService; tests substitute a fake.
type VaultAPI interface {
	CreateFolder(ctx context.Context, principalID, name string, parentID *string) (*models.VaultItem, error)
	GetItem(ctx context.Context, principalID, itemID string) (*models.AnnotatedItem, error)
	GetItems(ctx context.Context, principalID string, parentID *string) ([]*models.AnnotatedItem, error)
	ListSharedWithMe(ctx context.Context, principalID string) ([]*models.AnnotatedItem, error)
	RenameItem(ctx context.Context, principalID, itemID, newName string) error
	MoveItem(ctx context.Context, principalID, itemID string, newParentID *string) error
	DeleteItem(ctx context.Context, principalID, itemID string) error
	ShareItem(ctx context.Context, principalID, itemID, targetID string, level models.AccessLevel) error
	UnshareItem(ctx context.Context, principalID, itemID, targetID string) error
	GetUploadSignedURL(ctx context.Context, principalID string, req *services.UploadRequest) (*models.UploadTicket, error)
	AddVaultFile(ctx context.Context, principalID string, req *services.FinalizeRequest) (*models.VaultItem, error)
	GetDownloadSignedURL(ctx context.Context, principalID, itemID string) (string, error)
}

var _ VaultAPI = (*services.VaultService)(nil)

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyExists), errors.Is(err, common.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, common.ErrTreeTooLarge):
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

type createFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parentId"`
}

func (s *Server) createFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	folder, err := s.vault.CreateFolder(c.Request.Context(), principal(c), req.Name, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": folder})
}

func (s *Server) getItems(c *gin.Context) {
	var parentID *string
	if v, ok := c.GetQuery("parentId"); ok && v != "" {
		parentID = &v
	}

	listed, err := s.vault.GetItems(c.Request.Context(), principal(c), parentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listed})
}

func (s *Server) getItem(c *gin.Context) {
	item, err := s.vault.GetItem(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) listSharedWithMe(c *gin.Context) {
	listed, err := s.vault.ListSharedWithMe(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listed})
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) renameItem(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.vault.RenameItem(c.Request.Context(), principal(c), c.Param("id"), req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	ParentID *string `json:"parentId"`
}

func (s *Server) moveItem(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.vault.MoveItem(c.Request.Context(), principal(c), c.Param("id"), req.ParentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.vault.DeleteItem(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type shareRequest struct {
	UserID      string `json:"userId" binding:"required"`
	AccessLevel string `json:"accessLevel" binding:"required,oneof=read write"`
}

func (s *Server) shareItem(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.vault.ShareItem(c.Request.Context(), principal(c), c.Param("id"), req.UserID, models.AccessLevel(req.AccessLevel)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type unshareRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) unshareItem(c *gin.Context) {
	var req unshareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := s.vault.UnshareItem(c.Request.Context(), principal(c), c.Param("id"), req.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type uploadRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parentId"`
	Size     int64   `json:"size" binding:"required,gt=0"`
	MimeType string  `json:"mimeType" binding:"required"`

	IsEncrypted     bool   `json:"isEncrypted"`
	EncryptionKeyID string `json:"encryptionKeyId"`
	EncryptedBy     string `json:"encryptedBy"`
}

func (s *Server) getUploadSignedURL(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ticket, err := s.vault.GetUploadSignedURL(c.Request.Context(), principal(c), &services.UploadRequest{
		Name:            req.Name,
		ParentID:        req.ParentID,
		Size:            req.Size,
		MimeType:        req.MimeType,
		IsEncrypted:     req.IsEncrypted,
		EncryptionKeyID: req.EncryptionKeyID,
		EncryptedBy:     req.EncryptedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": ticket})
}

type finalizeRequest struct {
	ItemID *string `json:"itemId"`

	Name            string  `json:"name"`
	ParentID        *string `json:"parentId"`
	Size            int64   `json:"size"`
	MimeType        string  `json:"mimeType"`
	StorageProvider string  `json:"storageProvider"`
	StoragePath     string  `json:"storagePath"`

	IsEncrypted     bool   `json:"isEncrypted"`
	EncryptionKeyID string `json:"encryptionKeyId"`
	EncryptedBy     string `json:"encryptedBy"`
}

func (s *Server) addVaultFile(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := s.vault.AddVaultFile(c.Request.Context(), principal(c), &services.FinalizeRequest{
		ItemID:          req.ItemID,
		Name:            req.Name,
		ParentID:        req.ParentID,
		Size:            req.Size,
		MimeType:        req.MimeType,
		StorageProvider: req.StorageProvider,
		StoragePath:     req.StoragePath,
		IsEncrypted:     req.IsEncrypted,
		EncryptionKeyID: req.EncryptionKeyID,
		EncryptedBy:     req.EncryptedBy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) getDownloadSignedURL(c *gin.Context) {
	url, err := s.vault.GetDownloadSignedURL(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}

func (s *Server) healthz(c *gin.Context) {
	if s.db != nil {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
