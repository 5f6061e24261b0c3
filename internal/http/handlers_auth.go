package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"finview/internal/auth"
	"finview/internal/log"
	"finview/internal/session"
)

type signInPage struct {
	Error string
}

// handleLogin starts the authorization-code flow. The state value is kept in
// a short-lived cookie and checked on the callback.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()
	s.setCookie(w, stateCookie, state, stateMaxAge)
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	q := r.URL.Query()
	c, err := r.Cookie(stateCookie)
	s.clearCookie(w, stateCookie)
	if err != nil || c.Value == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		logger.WarnContext(ctx, "OAuth state mismatch", log.FieldOperation, log.OpCallback)
		s.render(w, r, http.StatusBadRequest, "signin.html", signInPage{Error: "Authentication failed."})
		return
	}
	if e := q.Get("error"); e != "" {
		logger.InfoContext(ctx, "Authorization declined", log.FieldOperation, log.OpCallback, "reason", sanitizeInput(e))
		s.render(w, r, http.StatusOK, "signin.html", signInPage{Error: "Authentication failed."})
		return
	}

	tok, err := s.auth.Exchange(ctx, q.Get("code"))
	if err != nil {
		logger.WarnContext(ctx, "Token exchange failed", log.FieldOperation, log.OpCallback, log.FieldError, err)
		if !errors.Is(err, auth.ErrNoToken) {
			s.reportError(ctx, err)
		}
		s.render(w, r, http.StatusBadGateway, "signin.html", signInPage{Error: "Authentication failed."})
		return
	}

	sess := session.New(tok, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		logger.ErrorContext(ctx, "Failed to save session", log.FieldError, err)
		s.reportError(ctx, fmt.Errorf("save session: %w", err))
		s.render(w, r, http.StatusInternalServerError, "signin.html", signInPage{Error: "Authentication failed."})
		return
	}

	s.setCookie(w, sessionCookie, sess.ID, s.sessionTTL)
	logger.InfoContext(ctx, "Signed in", log.NewFields().
		WithOperation(log.OpLogin).
		WithSession(sess.ID).ToSlice()...)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignOut destroys the session and its cached ledger snapshot.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		ErrorResponse(http.StatusForbidden, "Cross-origin request rejected").Write(w)
		return
	}
	ctx := r.Context()
	if sess := s.currentSession(w, r); sess != nil {
		s.ledger.Invalidate(sess.AccessToken())
		s.dropSession(ctx, w, sess)
		log.FromContext(ctx).InfoContext(ctx, "Signed out", log.NewFields().
			WithComponent(log.ComponentAuth).
			WithOperation(log.OpSignOut).
			WithSession(sess.ID).ToSlice()...)
	}
	s.clearCookie(w, sessionCookie)
	redirectOrRefresh(w, r, "/", NewHTMXResponse().Redirect("/"))
}

// currentSession resolves the session cookie. Unknown, malformed and expired
// sessions yield nil and the stale cookie is cleared. Live sessions have
// their idle clock reset at most once per sessionTouchInterval.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	if !session.ValidID(c.Value) {
		s.clearCookie(w, sessionCookie)
		return nil
	}

	ctx := r.Context()
	sess, err := s.sessions.Get(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.FromContext(ctx).WarnContext(ctx, "Session lookup failed",
				log.FieldComponent, log.ComponentSession, log.FieldError, err)
		}
		s.clearCookie(w, sessionCookie)
		return nil
	}
	if sess.Expired(s.now(), s.sessionTTL) {
		s.dropSession(ctx, w, sess)
		return nil
	}
	if sess.Touch(s.now(), sessionTouchInterval) {
		if err := s.sessions.Save(ctx, sess); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Failed to record session activity",
				log.FieldComponent, log.ComponentSession, log.FieldError, err)
		} else {
			s.setCookie(w, sessionCookie, sess.ID, s.sessionTTL)
		}
	}
	return sess
}

func (s *Server) dropSession(ctx context.Context, w http.ResponseWriter, sess *session.Session) {
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to delete session",
			log.FieldComponent, log.ComponentSession, log.FieldError, err)
	}
	s.clearCookie(w, sessionCookie)
}

// ensureToken returns a usable access token for sess, refreshing and
// persisting it when the provider issues a new one.
func (s *Server) ensureToken(ctx context.Context, sess *session.Session) (string, error) {
	tok, err := s.auth.Refresh(ctx, sess.Token)
	if err != nil {
		return "", err
	}
	if tok.AccessToken != sess.AccessToken() {
		s.ledger.Invalidate(sess.AccessToken())
		sess.Token = tok
		sess.UpdatedAt = s.now()
		if err := s.sessions.Save(ctx, sess); err != nil {
			return "", fmt.Errorf("save refreshed token: %w", err)
		}
		log.FromContext(ctx).DebugContext(ctx, "Access token refreshed", log.NewFields().
			WithComponent(log.ComponentAuth).
			WithOperation(log.OpRefresh).
			WithSession(sess.ID).ToSlice()...)
	}
	return tok.AccessToken, nil
}
