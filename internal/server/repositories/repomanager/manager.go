// Package repomanager vends repository implementations bound to a database
// handle, so services can run the same repository inside or outside a
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/sealbox/sealbox/internal/dbx"
	"github.com/sealbox/sealbox/internal/server/repositories/refreshtokens"
	"github.com/sealbox/sealbox/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
