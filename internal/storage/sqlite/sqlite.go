package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver

	"github.com/fragpit/envoy-auth/internal/storage/sqlstore"
)

const databaseFile = "envoy-auth.db"

const schema = `
CREATE TABLE IF NOT EXISTS envoy_tokens (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_timestamp DATETIME NOT NULL,
		updated_timestamp DATETIME NOT NULL,
		last_used DATETIME
);

CREATE INDEX IF NOT EXISTS envoy_tokens_tenant_id_idx ON envoy_tokens (tenant_id);
`

func New(folder string) (_ *sqlstore.Storage, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("storage init error: %w", err)
		}
	}()

	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on",
		filepath.Join(folder, databaseFile),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// between concurrent transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return sqlstore.New(db, sqlstore.Question), nil
}
