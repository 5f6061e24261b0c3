package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SessionRow struct {
	ID         string
	TokenJSON  string
	ActiveView string
	CreatedAt  int64
	UpdatedAt  int64
}

const getSession = `-- name: GetSession :one
SELECT id, token_json, active_view, created_at, updated_at
FROM sessions
WHERE id = ?
`

func (q *Queries) GetSession(ctx context.Context, id string) (SessionRow, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i SessionRow
	err := row.Scan(&i.ID, &i.TokenJSON, &i.ActiveView, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const upsertSession = `-- name: UpsertSession :exec
INSERT INTO sessions (id, token_json, active_view, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    token_json  = excluded.token_json,
    active_view = excluded.active_view,
    updated_at  = excluded.updated_at
`

type UpsertSessionParams struct {
	ID         string
	TokenJSON  string
	ActiveView string
	CreatedAt  int64
	UpdatedAt  int64
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.ID,
		arg.TokenJSON,
		arg.ActiveView,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteSession = `-- name: DeleteSession :exec
DELETE FROM sessions WHERE id = ?
`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteSessionsBefore = `-- name: DeleteSessionsBefore :execrows
DELETE FROM sessions WHERE updated_at < ?
`

func (q *Queries) DeleteSessionsBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSessionsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
