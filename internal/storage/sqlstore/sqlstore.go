// Package sqlstore implements model.TokenRepository on database/sql. The
// postgresql and sqlite packages open the database, create the schema and
// hand the connection to New.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fragpit/envoy-auth/internal/model"
)

// Placeholder selects how positional query arguments are written.
type Placeholder int

const (
	Question Placeholder = iota // ?
	Dollar                      // $1, $2, ...
)

const columns = `id, tenant_id, token, description,
	created_timestamp, updated_timestamp, last_used`

type Storage struct {
	DB          *sql.DB
	placeholder Placeholder
}

var _ model.TokenRepository = (*Storage)(nil)

func New(db *sql.DB, p Placeholder) *Storage {
	return &Storage{
		DB:          db,
		placeholder: p,
	}
}

func (s *Storage) Save(
	ctx context.Context,
	tk *model.EnvoyToken,
) (_ *model.EnvoyToken, err error) {
	saved := *tk
	now := time.Now().UTC().Truncate(time.Microsecond)
	saved.UpdatedTimestamp = now

	err = s.executeTransaction(ctx, func(tx *sql.Tx) error {
		if saved.ID != "" {
			q := s.bind(`UPDATE envoy_tokens
				SET description = ?, last_used = ?, updated_timestamp = ?
				WHERE id = ?;`)

			res, err := tx.ExecContext(ctx, q,
				saved.Description, nullTime(saved.LastUsed), now, saved.ID)
			if err != nil {
				return err
			}

			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return model.ErrNotFound
			}
			return nil
		}

		saved.ID = uuid.NewString()
		saved.CreatedTimestamp = now

		q := s.bind(`INSERT INTO envoy_tokens (` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?);`)

		_, err := tx.ExecContext(ctx, q,
			saved.ID,
			saved.TenantID,
			saved.Token,
			saved.Description,
			saved.CreatedTimestamp,
			saved.UpdatedTimestamp,
			nullTime(saved.LastUsed),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save token error: %w", err)
	}

	return &saved, nil
}

func (s *Storage) FindByToken(
	ctx context.Context,
	value string,
) (*model.EnvoyToken, error) {
	q := s.bind(`SELECT ` + columns + ` FROM envoy_tokens WHERE token = ?;`)
	return s.getToken(ctx, q, value)
}

func (s *Storage) FindByIDAndTenantID(
	ctx context.Context,
	id, tenantID string,
) (*model.EnvoyToken, error) {
	q := s.bind(`SELECT ` + columns + ` FROM envoy_tokens
		WHERE id = ? AND tenant_id = ?;`)
	return s.getToken(ctx, q, id, tenantID)
}

func (s *Storage) FindByTenantID(
	ctx context.Context,
	tenantID string,
	page model.PageRequest,
) (*model.Page, error) {
	page = page.Normalize()

	var total int64
	q := s.bind(`SELECT COUNT(*) FROM envoy_tokens WHERE tenant_id = ?;`)
	if err := s.DB.QueryRowContext(ctx, q, tenantID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count tokens error: %w", err)
	}

	q = s.bind(`SELECT ` + columns + ` FROM envoy_tokens
		WHERE tenant_id = ?
		ORDER BY created_timestamp, id
		LIMIT ? OFFSET ?;`)
	tks, err := s.getTokens(ctx, q, tenantID, page.Size, page.Offset())
	if err != nil {
		return nil, err
	}

	return model.NewPage(tks, page, total), nil
}

func (s *Storage) FindAllByTenantID(
	ctx context.Context,
	tenantID string,
) ([]*model.EnvoyToken, error) {
	q := s.bind(`SELECT ` + columns + ` FROM envoy_tokens
		WHERE tenant_id = ?
		ORDER BY created_timestamp, id;`)
	return s.getTokens(ctx, q, tenantID)
}

func (s *Storage) Delete(ctx context.Context, tk *model.EnvoyToken) error {
	return s.executeTransaction(ctx, func(tx *sql.Tx) error {
		q := s.bind(`DELETE FROM envoy_tokens WHERE id = ?;`)
		_, err := tx.ExecContext(ctx, q, tk.ID)
		return err
	})
}

func (s *Storage) DeleteAllByTenantID(ctx context.Context, tenantID string) error {
	return s.executeTransaction(ctx, func(tx *sql.Tx) error {
		q := s.bind(`DELETE FROM envoy_tokens WHERE tenant_id = ?;`)
		_, err := tx.ExecContext(ctx, q, tenantID)
		return err
	})
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

func (s *Storage) executeTransaction(
	ctx context.Context,
	txFunc func(*sql.Tx) error,
) (err error) {
	opts := sql.TxOptions{}
	tx, err := s.DB.BeginTx(ctx, &opts)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w, tx rollback error: %w", err, rbErr)
			}
		}
	}()

	if err := txFunc(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Storage) getToken(
	ctx context.Context,
	query string,
	args ...any,
) (*model.EnvoyToken, error) {
	row := s.DB.QueryRowContext(ctx, query, args...)

	tk, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token error: %w", err)
	}

	return tk, nil
}

func (s *Storage) getTokens(
	ctx context.Context,
	query string,
	args ...any,
) ([]*model.EnvoyToken, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get tokens error: %w", err)
	}
	defer rows.Close()

	var tks []*model.EnvoyToken
	for rows.Next() {
		tk, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("get tokens error: %w", err)
		}
		tks = append(tks, tk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get tokens error: %w", err)
	}

	return tks, nil
}

// bind rewrites ? placeholders for drivers that expect $n.
func (s *Storage) bind(query string) string {
	if s.placeholder != Dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*model.EnvoyToken, error) {
	var (
		tk       model.EnvoyToken
		lastUsed sql.NullTime
	)

	if err := row.Scan(
		&tk.ID,
		&tk.TenantID,
		&tk.Token,
		&tk.Description,
		&tk.CreatedTimestamp,
		&tk.UpdatedTimestamp,
		&lastUsed,
	); err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		lu := lastUsed.Time.UTC()
		tk.LastUsed = &lu
	}
	tk.CreatedTimestamp = tk.CreatedTimestamp.UTC()
	tk.UpdatedTimestamp = tk.UpdatedTimestamp.UTC()

	return &tk, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
