package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/containeer/internal/dbx"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/files"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so callers can run
// them either directly on the pool or inside a dbx.WithTx callback.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
