// Package session models the explicit per-user state of the dashboard: the
// OAuth token and the active category view.
package session

import (
	"context"
	"errors"
	"time"

	"finview/internal/core"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is created at sign-in and destroyed at sign-out.
type Session struct {
	ID         string
	Token      *oauth2.Token
	ActiveView core.Category
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New starts a session for token with the default spending view.
func New(token *oauth2.Token, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Token:      token,
		ActiveView: core.Spending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AccessToken returns the bearer token, or "" when the session holds none.
func (s *Session) AccessToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

// SetView switches the active view. Invalid categories are rejected.
func (s *Session) SetView(c core.Category, now time.Time) error {
	if !c.Valid() {
		return core.ErrUnknownCategory
	}
	s.ActiveView = c
	s.UpdatedAt = now
	return nil
}

// Touch records activity at now when the last recorded activity is at least
// every old. It reports whether the session changed and needs saving.
func (s *Session) Touch(now time.Time, every time.Duration) bool {
	if now.Sub(s.UpdatedAt) < every {
		return false
	}
	s.UpdatedAt = now
	return true
}

// Expired reports whether the session has been idle for longer than ttl.
// A non-positive ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return !now.Before(s.UpdatedAt.Add(ttl))
}

// ValidID reports whether id looks like a session id issued by New.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Store persists sessions. Implementations return copies so callers may
// mutate a session and Save it back.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions idle since before cutoff and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Token != nil {
		tok := *s.Token
		out.Token = &tok
	}
	return &out
}
