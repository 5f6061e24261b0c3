// Package storage persists dashboard sessions in SQLite so sign-in survives
// restarts.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finview/internal/core"
	"finview/internal/session"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ session.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get implements session.Store
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	row, err := r.queries.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s := &session.Session{
		ID:         row.ID,
		ActiveView: core.Category(row.ActiveView),
		CreatedAt:  time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:  time.UnixMilli(row.UpdatedAt).UTC(),
	}
	if row.TokenJSON != "" {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(row.TokenJSON), &tok); err != nil {
			return nil, fmt.Errorf("decode session token: %w", err)
		}
		s.Token = &tok
	}
	return s, nil
}

// Save implements session.Store
func (r *SQLiteRepository) Save(ctx context.Context, s *session.Session) error {
	var tokenJSON string
	if s.Token != nil {
		b, err := json.Marshal(s.Token)
		if err != nil {
			return fmt.Errorf("encode session token: %w", err)
		}
		tokenJSON = string(b)
	}

	view := s.ActiveView
	if !view.Valid() {
		view = core.Spending
	}

	err := r.queries.UpsertSession(ctx, UpsertSessionParams{
		ID:         s.ID,
		TokenJSON:  tokenJSON,
		ActiveView: string(view),
		CreatedAt:  s.CreatedAt.UnixMilli(),
		UpdatedAt:  s.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete implements session.Store
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if err := r.queries.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired implements session.Store
func (r *SQLiteRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := r.queries.DeleteSessionsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expired sessions removed", "component", "storage", "count", n)
	}
	return int(n), nil
}
