package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/audit"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/files"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Audit(db dbx.DBTX) audit.Repository
	Revocations(db dbx.DBTX) revocations.Repository
}
