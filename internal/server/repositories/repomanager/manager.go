// Package repomanager wires repositories to database handles so services can
// run repository calls either directly or inside a dbx.WithTx transaction.
package repomanager

import (
	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/repositories/items"
)

// RepositoryManager hands out repositories bound to the given handle, which
// may be a *sql.DB or an open *sql.Tx.
type RepositoryManager interface {
	Items(db dbx.DBTX) items.Repository
}
