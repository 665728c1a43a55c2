// Package storage selects and opens the record store backend named by a DSN.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/afrisam/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Handle is an open record store and the scheduler store sharing its database.
type Handle struct {
	Records   driven.RecordStore
	Scheduler driven.SchedulerStore
	Backend   domain.StoreBackend

	// Location is the database path, or the DSN with any password removed.
	Location string
}

// Close closes the underlying database.
func (h *Handle) Close() error {
	return h.Records.Close()
}

// Open opens the store named by dsn. An empty DSN selects the SQLite file
// in dataDir. Accepted forms are postgres:// and postgresql:// URLs,
// sqlite:// URLs and bare file paths.
func Open(dsn, dataDir string) (*Handle, error) {
	switch domain.BackendFromDSN(dsn) {
	case domain.StoreBackendPostgres:
		store, err := postgres.NewStore(dsn)
		if err != nil {
			return nil, err
		}
		return &Handle{
			Records:   store,
			Scheduler: store.SchedulerStore(),
			Backend:   domain.StoreBackendPostgres,
			Location:  redact(dsn),
		}, nil
	default:
		store, err := sqlite.Open(SQLitePath(dsn, dataDir))
		if err != nil {
			return nil, err
		}
		return &Handle{
			Records:   store,
			Scheduler: store.SchedulerStore(),
			Backend:   domain.StoreBackendSQLite,
			Location:  store.Path(),
		}, nil
	}
}

// SQLitePath resolves the database file for a SQLite DSN.
func SQLitePath(dsn, dataDir string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return filepath.Join(dataDir, sqlite.DefaultFileName)
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		dsn = rest
	}
	if !filepath.IsAbs(dsn) && dataDir != "" {
		return filepath.Join(dataDir, dsn)
	}
	return dsn
}

// redact removes the password from a connection URL.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return scheme + "://" + user + ":***@" + host
	}
	return dsn
}
