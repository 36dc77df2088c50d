package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/registryauth/internal/dbx"
	"github.com/dmitrijs2005/registryauth/internal/server/repositories/logs"
	"github.com/dmitrijs2005/registryauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Logs(db dbx.DBTX) logs.Repository
}
