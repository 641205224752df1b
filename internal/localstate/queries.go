package localstate

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getValue = `-- name: GetValue :one
SELECT value FROM kv WHERE key = ?
`

func (q *Queries) GetValue(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getValue, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const putValue = `-- name: PutValue :exec
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

func (q *Queries) PutValue(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, putValue, key, value)
	return err
}

const deleteValue = `-- name: DeleteValue :exec
DELETE FROM kv WHERE key = ?
`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}

const listCategories = `-- name: ListCategories :many
SELECT name FROM categories ORDER BY id
`

func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertCategory = `-- name: InsertCategory :execrows
INSERT OR IGNORE INTO categories (name) VALUES (?)
`

func (q *Queries) InsertCategory(ctx context.Context, name string) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertCategory, name)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertCheckin = `-- name: InsertCheckin :execrows
INSERT OR IGNORE INTO checkins (day) VALUES (?)
`

func (q *Queries) InsertCheckin(ctx context.Context, day string) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertCheckin, day)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCheckinDays = `-- name: ListCheckinDays :many
SELECT day FROM checkins ORDER BY day
`

func (q *Queries) ListCheckinDays(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCheckinDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		items = append(items, day)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
