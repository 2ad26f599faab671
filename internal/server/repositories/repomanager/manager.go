package repomanager

import (
	"context"
	"database/sql"

	"github.com/skorolev/duetchat/internal/dbx"
	"github.com/skorolev/duetchat/internal/server/repositories/messages"
	"github.com/skorolev/duetchat/internal/server/repositories/refreshtokens"
	"github.com/skorolev/duetchat/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Messages(db dbx.DBTX) messages.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
