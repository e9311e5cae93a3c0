package repomanager

import (
	"context"
	"database/sql"

	"github.com/profolio/profolio/internal/dbx"
	"github.com/profolio/profolio/internal/server/repositories/credentials"
	"github.com/profolio/profolio/internal/server/repositories/twofactor"
	"github.com/profolio/profolio/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	TwoFactor(db dbx.DBTX) twofactor.Repository
}
