package postgresql

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Import pq library

	"github.com/fragpit/envoy-auth/internal/storage/sqlstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS envoy_tokens (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_timestamp TIMESTAMPTZ NOT NULL,
		updated_timestamp TIMESTAMPTZ NOT NULL,
		last_used TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS envoy_tokens_tenant_id_idx ON envoy_tokens (tenant_id);
`

func New(
	host string,
	port int,
	username string,
	password string,
	database string,
	sslMode string,
) (_ *sqlstore.Storage, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("storage init error: %w", err)
		}
	}()

	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, username, password, database, sslMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w, tx rollback error: %w", err, rbErr)
			}
		}
	}()

	if _, err = tx.Exec(schema); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return sqlstore.New(db, sqlstore.Dollar), nil
}
