package services

import (
	"context"
	"strings"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/models"
	"github.com/avolkov/filevault/internal/server/repositories/items"
)

// SanitizeName strips path-traversal sequences and unsafe characters from a
// display name. Request validation upstream rejects most of these already;
// the vault re-sanitizes anyway and never trusts a client-supplied path.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
		case strings.ContainsRune(`/\:*?"<>|`, r):
		default:
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

// ComputePath derives an item's materialized path from its sanitized name
// and its parent. Root items get "/" + name.
func ComputePath(name string, parent *models.VaultItem) string {
	if parent == nil {
		return "/" + name
	}
	return parent.Path + "/" + name
}

// parentPathOf recovers the containing folder's path from an item's own
// path, "" for root-level items.
func parentPathOf(item *models.VaultItem) string {
	return strings.TrimSuffix(item.Path, "/"+item.Name)
}

// rebasePath rewrites one descendant path from the old subtree prefix to
// the new one.
func rebasePath(path, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

// collectDescendants walks the subtree under rootID breadth-first with an
// explicit queue. Nesting depth is caller-controlled and unbounded, so the
// walk never recurses, and it fails closed with ErrTreeTooLarge once more
// than limit nodes are seen, before anything is written.
func collectDescendants(ctx context.Context, repo items.Repository, rootID string, limit int) ([]*models.VaultItem, error) {
	var result []*models.VaultItem

	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := repo.ListChildren(ctx, id)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			result = append(result, child)
			if len(result) > limit {
				return nil, common.ErrTreeTooLarge
			}
			if child.Type == models.ItemTypeFolder {
				queue = append(queue, child.ID)
			}
		}
	}

	return result, nil
}
