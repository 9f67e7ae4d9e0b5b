package items

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PostgresRepository implements the item store over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, user_id, item_type, name, parent_id, path, is_deleted,
	storage_provider, storage_path, size, mime_type, file_type,
	cached_upload_url, cached_upload_url_expiry,
	is_encrypted, encryption_key_id, encrypted_by,
	shared_with, can_read, can_write, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func marshalList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

func scanItem(row rowScanner) (*models.VaultItem, error) {
	var (
		item                          models.VaultItem
		sharedWith, canRead, canWrite []byte
	)

	err := row.Scan(
		&item.ID, &item.UserID, &item.Type, &item.Name, &item.ParentID, &item.Path, &item.IsDeleted,
		&item.StorageProvider, &item.StoragePath, &item.Size, &item.MimeType, &item.FileType,
		&item.CachedUploadURL, &item.CachedUploadURLExpiry,
		&item.IsEncrypted, &item.EncryptionKeyID, &item.EncryptedBy,
		&sharedWith, &canRead, &canWrite, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sharedWith, &item.SharedWith); err != nil {
		return nil, fmt.Errorf("shared_with decode error: %w", err)
	}
	if err := json.Unmarshal(canRead, &item.Permissions.CanRead); err != nil {
		return nil, fmt.Errorf("can_read decode error: %w", err)
	}
	if err := json.Unmarshal(canWrite, &item.Permissions.CanWrite); err != nil {
		return nil, fmt.Errorf("can_write decode error: %w", err)
	}

	return &item, nil
}

func (r *PostgresRepository) queryItems(ctx context.Context, query string, args ...any) ([]*models.VaultItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create persists a new vault item record. A non-deleted sibling with the
// same owner, parent and name violates the partial unique index and yields
// common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, item *models.VaultItem) error {
	sharedWith, err := marshalList(item.SharedWith)
	if err != nil {
		return err
	}
	canRead, err := marshalList(item.Permissions.CanRead)
	if err != nil {
		return err
	}
	canWrite, err := marshalList(item.Permissions.CanWrite)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vault_items (id, user_id, item_type, name, parent_id, path, is_deleted,
			storage_provider, storage_path, size, mime_type, file_type,
			cached_upload_url, cached_upload_url_expiry,
			is_encrypted, encryption_key_id, encrypted_by,
			shared_with, can_read, can_write, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.Type, item.Name, item.ParentID, item.Path, item.IsDeleted,
		item.StorageProvider, item.StoragePath, item.Size, item.MimeType, item.FileType,
		item.CachedUploadURL, item.CachedUploadURLExpiry,
		item.IsEncrypted, item.EncryptionKeyID, item.EncryptedBy,
		sharedWith, canRead, canWrite, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the record with the given id, deleted or not.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items WHERE id=$1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	return item, nil
}

// Update applies a partial update. With ExpectedUpdatedAt set, a stale guard
// yields common.ErrConflict; otherwise zero affected rows is ErrNotFound.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd *ItemUpdate) error {
	set := []string{}
	args := []any{}

	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Parent != nil {
		add("parent_id", upd.Parent.ID)
	}
	if upd.Path != nil {
		add("path", *upd.Path)
	}
	if upd.Size != nil {
		add("size", *upd.Size)
	}
	if upd.MimeType != nil {
		add("mime_type", *upd.MimeType)
	}
	if upd.FileType != nil {
		add("file_type", *upd.FileType)
	}
	if upd.ClearCachedUploadURL {
		set = append(set, "cached_upload_url = NULL", "cached_upload_url_expiry = NULL")
	} else {
		if upd.CachedUploadURL != nil {
			add("cached_upload_url", *upd.CachedUploadURL)
		}
		if upd.CachedUploadURLExpiry != nil {
			add("cached_upload_url_expiry", *upd.CachedUploadURLExpiry)
		}
	}
	if upd.IsEncrypted != nil {
		add("is_encrypted", *upd.IsEncrypted)
	}
	if upd.EncryptionKeyID != nil {
		add("encryption_key_id", *upd.EncryptionKeyID)
	}
	if upd.EncryptedBy != nil {
		add("encrypted_by", *upd.EncryptedBy)
	}
	if upd.SharedWith != nil {
		b, err := marshalList(*upd.SharedWith)
		if err != nil {
			return err
		}
		add("shared_with", b)
	}
	if upd.CanRead != nil {
		b, err := marshalList(*upd.CanRead)
		if err != nil {
			return err
		}
		add("can_read", b)
	}
	if upd.CanWrite != nil {
		b, err := marshalList(*upd.CanWrite)
		if err != nil {
			return err
		}
		add("can_write", b)
	}

	set = append(set, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE vault_items SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))

	if upd.ExpectedUpdatedAt != nil {
		args = append(args, *upd.ExpectedUpdatedAt)
		query += fmt.Sprintf(" AND updated_at = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		if upd.ExpectedUpdatedAt != nil {
			return common.ErrConflict
		}
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func parentCond(parentID *string, args *[]any) string {
	if parentID == nil {
		return "parent_id IS NULL"
	}
	*args = append(*args, *parentID)
	return fmt.Sprintf("parent_id = $%d", len(*args))
}

// ListByParent returns non-deleted items owned by userID under parentID.
func (r *PostgresRepository) ListByParent(ctx context.Context, userID string, parentID *string) ([]*models.VaultItem, error) {
	args := []any{userID}
	query := `SELECT ` + itemColumns + ` FROM vault_items
		WHERE user_id = $1 AND NOT is_deleted AND ` + parentCond(parentID, &args)
	return r.queryItems(ctx, query, args...)
}

// ListSharedWith returns non-deleted items shared with principalID under parentID.
func (r *PostgresRepository) ListSharedWith(ctx context.Context, principalID string, parentID *string) ([]*models.VaultItem, error) {
	args := []any{principalID}
	query := `SELECT ` + itemColumns + ` FROM vault_items
		WHERE shared_with @> to_jsonb($1::text) AND NOT is_deleted AND ` + parentCond(parentID, &args)
	return r.queryItems(ctx, query, args...)
}

// ListAllSharedWith returns every non-deleted item shared with principalID.
func (r *PostgresRepository) ListAllSharedWith(ctx context.Context, principalID string) ([]*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items
		WHERE shared_with @> to_jsonb($1::text) AND NOT is_deleted`
	return r.queryItems(ctx, query, principalID)
}

// ListChildren returns the non-deleted direct children of a folder.
func (r *PostgresRepository) ListChildren(ctx context.Context, parentID string) ([]*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items
		WHERE parent_id = $1 AND NOT is_deleted`
	return r.queryItems(ctx, query, parentID)
}

// FindByName returns the non-deleted sibling with the given name.
func (r *PostgresRepository) FindByName(ctx context.Context, userID string, parentID *string, name string) (*models.VaultItem, error) {
	args := []any{userID}
	cond := parentCond(parentID, &args)
	args = append(args, name)
	query := fmt.Sprintf(`SELECT `+itemColumns+` FROM vault_items
		WHERE user_id = $1 AND NOT is_deleted AND %s AND name = $%d`, cond, len(args))

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select item: %w", err)
	}
	return item, nil
}

// SoftDelete flags the record deleted; repeating it is a no-op.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE vault_items SET is_deleted = true, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to soft-delete item: %w", err)
	}
	return nil
}

// ListPending returns non-finalized uploads whose signed URL expired before
// olderThan, for the external sweep.
func (r *PostgresRepository) ListPending(ctx context.Context, olderThan time.Time) ([]*models.VaultItem, error) {
	query := `SELECT ` + itemColumns + ` FROM vault_items
		WHERE cached_upload_url IS NOT NULL AND cached_upload_url_expiry < $1 AND NOT is_deleted`
	return r.queryItems(ctx, query, olderThan)
}
