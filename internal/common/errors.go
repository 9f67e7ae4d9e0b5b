// Package common defines the sentinel errors shared across the vault
// service layers. Callers should use errors.Is to match these values;
// lower layers wrap them with context via fmt.Errorf and %w.
package common

import "errors"

var (
	// ErrInvalidArgument signals malformed input: an empty or unsafe name,
	// an oversized file, a disallowed mime type.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound signals that a referenced item or parent folder does not
	// exist or has been soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied signals that the caller's resolved access level is
	// insufficient for the requested operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyExists signals a name collision among non-deleted siblings.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInternal signals a storage-adapter failure or an unexpected
	// store error.
	ErrInternal = errors.New("internal error")

	// ErrConflict signals that a concurrent mutation invalidated the
	// optimistic guard on the item being updated; the caller may retry.
	ErrConflict = errors.New("conflict")

	// ErrTreeTooLarge signals that a rename/move/delete would touch more
	// descendants than the configured ceiling allows. The operation is
	// aborted before any write.
	ErrTreeTooLarge = errors.New("subtree exceeds update ceiling")

	// ErrInvalidToken signals a malformed or unverifiable access token.
	ErrInvalidToken = errors.New("invalid token")
)
