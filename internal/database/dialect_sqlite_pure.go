package database

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// PureSQLiteDialect implements Dialect for SQLite without cgo
type PureSQLiteDialect struct{}

// NewPureSQLiteDialect creates a new pure-Go SQLite dialect
func NewPureSQLiteDialect() *PureSQLiteDialect {
	return &PureSQLiteDialect{}
}

func (d *PureSQLiteDialect) DriverName() string {
	return "sqlite"
}

func (d *PureSQLiteDialect) DSN(config DialectConfig) string {
	return config.Path + "?_pragma=busy_timeout(5000)"
}

func (d *PureSQLiteDialect) RewriteQuery(query string) string {
	return query
}

func (d *PureSQLiteDialect) SupportsLastInsertId() bool {
	return true
}

func (d *PureSQLiteDialect) ConfigureConnection(db *sql.DB) error {
	return configureSQLite(db)
}

// Same schema as the cgo driver.
func (d *PureSQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *PureSQLiteDialect) CreateMigrationsTableQuery() string {
	return sqliteMigrationsTable
}

func (d *PureSQLiteDialect) UpsertDocumentQuery() string {
	return upsertDocumentOnConflict
}
