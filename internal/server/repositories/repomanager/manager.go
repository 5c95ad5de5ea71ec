package repomanager

import (
	"context"
	"database/sql"

	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/repositories/accounts"
	"github.com/gin-org/sitebackend/internal/server/repositories/administrators"
	"github.com/gin-org/sitebackend/internal/server/repositories/applications"
	"github.com/gin-org/sitebackend/internal/server/repositories/contacts"
	"github.com/gin-org/sitebackend/internal/server/repositories/notifications"
	"github.com/gin-org/sitebackend/internal/server/repositories/offers"
	"github.com/gin-org/sitebackend/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Administrators(db dbx.DBTX) administrators.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Offers(db dbx.DBTX) offers.Repository
	Applications(db dbx.DBTX) applications.Repository
	Contacts(db dbx.DBTX) contacts.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
