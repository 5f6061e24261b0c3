package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"finview/internal/core"
	"finview/internal/session"

	"golang.org/x/oauth2"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)
	s := session.New(&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, now)

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.AccessToken() != "access" || got.Token.RefreshToken != "refresh" {
		t.Errorf("token not preserved: %+v", got.Token)
	}
	if !got.Token.Expiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", got.Token.Expiry, expiry)
	}
	if got.ActiveView != core.Spending {
		t.Errorf("active view = %q", got.ActiveView)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, now)
	}
}

func TestSQLiteRepository_UpdateView(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	s := session.New(&oauth2.Token{AccessToken: "a"}, now)
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.SetView(core.Savings, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetView() error: %v", err)
	}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() update error: %v", err)
	}

	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ActiveView != core.Savings {
		t.Errorf("active view = %q, want savings", got.ActiveView)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("updated at = %v", got.UpdatedAt)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created at must not change on update, got %v", got.CreatedAt)
	}
}

func TestSQLiteRepository_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Get(ctx, "missing"); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s := session.New(nil, time.Now())
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Token != nil {
		t.Errorf("expected no token, got %+v", got.Token)
	}

	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.Get(ctx, s.ID); err != session.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now()

	fresh := session.New(nil, now)
	stale := session.New(nil, now.Add(-48*time.Hour))
	for _, s := range []*session.Session{fresh, stale} {
		if err := repo.Save(ctx, s); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	n, err := repo.DeleteExpired(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if _, err := repo.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
}

func TestSQLiteRepository_ReopenKeepsSessions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := session.New(&oauth2.Token{AccessToken: "persist"}, time.Now())
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	_ = repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() after reopen: %v", err)
	}
	if got.AccessToken() != "persist" {
		t.Errorf("token = %q", got.AccessToken())
	}
}
