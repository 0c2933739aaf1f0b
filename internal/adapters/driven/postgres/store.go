package postgres

import (
	"context"
	"database/sql"

	"github.com/nexkb/nexkb-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Store = (*Store)(nil)

// Store implements driven.Store using PostgreSQL. Every WithTenant call
// runs in one transaction; the stores handed to fn share it and scope
// all rows to the organization.
type Store struct {
	db *DB
}

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// WithTenant runs fn inside a transaction scoped to the organization
func (s *Store) WithTenant(ctx context.Context, organizationID string, fn func(driven.UnitOfWork) error) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return fn(&unitOfWork{tx: tx, orgID: organizationID})
	})
}

// Ping checks if the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// unitOfWork exposes the tenant stores over one transaction
type unitOfWork struct {
	tx    *sql.Tx
	orgID string
}

var _ driven.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Folders() driven.FolderStore {
	return &FolderStore{q: u.tx, orgID: u.orgID}
}

func (u *unitOfWork) Files() driven.FileStore {
	return &FileStore{q: u.tx, orgID: u.orgID}
}

func (u *unitOfWork) Jobs() driven.JobStore {
	return &JobStore{q: u.tx, orgID: u.orgID}
}

func (u *unitOfWork) APIKeys() driven.APIKeyStore {
	return &APIKeyStore{q: u.tx, orgID: u.orgID}
}

func (u *unitOfWork) Queries() driven.QueryLogStore {
	return &QueryLogStore{q: u.tx, orgID: u.orgID}
}
