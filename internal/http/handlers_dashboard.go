package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/services"
	"finview/internal/session"
	ports "finview/internal/sheets"
	"finview/internal/view"
)

type errorPage struct {
	Message string
	Retry   bool
}

// errSessionGone marks requests whose session can no longer read the ledger.
var errSessionGone = errors.New("session no longer authorized")

// snapshot loads the ledger for sess. Rejected or unrefreshable tokens end
// the session and return errSessionGone.
func (s *Server) snapshot(ctx context.Context, w http.ResponseWriter, sess *session.Session) (services.Snapshot, error) {
	logger := log.FromContext(ctx)

	token, err := s.ensureToken(ctx, sess)
	if err != nil {
		logger.InfoContext(ctx, "Token refresh failed, signing out", log.NewFields().
			WithComponent(log.ComponentAuth).
			WithOperation(log.OpRefresh).
			WithSession(sess.ID).
			WithError(err).ToSlice()...)
		s.dropSession(ctx, w, sess)
		return services.Snapshot{}, errSessionGone
	}

	snap, err := s.ledger.Snapshot(ctx, token)
	if errors.Is(err, ports.ErrUnauthorized) {
		s.ledger.Invalidate(token)
		s.dropSession(ctx, w, sess)
		return services.Snapshot{}, errSessionGone
	}
	if err != nil {
		return services.Snapshot{}, err
	}

	logger.DebugContext(ctx, "Ledger snapshot ready", log.NewFields().
		WithComponent(log.ComponentLedger).
		WithOperation(log.OpRead).
		WithLedger(snap.Ledger.Len(), snap.Cached).ToSlice()...)
	return snap, nil
}

// handleIndex renders the sign-in page or the dashboard for the active view.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	if sess == nil {
		s.render(w, r, http.StatusOK, "signin.html", signInPage{})
		return
	}

	ctx := r.Context()
	snap, err := s.snapshot(ctx, w, sess)
	if errors.Is(err, errSessionGone) {
		s.render(w, r, http.StatusOK, "signin.html", signInPage{Error: "Your session has expired. Please sign in again."})
		return
	}
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Ledger unavailable", err, log.OpFetch,
			log.NewFields().WithComponent(log.ComponentLedger).WithErrorType(log.ErrorTypeNetwork))
		s.render(w, r, http.StatusBadGateway, "error.html", errorPage{Message: "the ledger could not be loaded.", Retry: true})
		return
	}

	q := r.URL.Query()
	d := s.views.Dashboard(view.Context{
		ActiveView:     sess.ActiveView,
		Ledger:         snap.Ledger,
		CacheTimestamp: snap.FetchedAt,
		Cached:         snap.Cached,
	}, ParsePrice(q.Get("price")), ParseQuery(q))
	s.render(w, r, http.StatusOK, "dashboard.html", d)
}

// handleSwitchView changes the active category of the session.
func (s *Server) handleSwitchView(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		ErrorResponse(http.StatusForbidden, "Cross-origin request rejected").Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	sess := s.currentSession(w, r)
	if sess == nil {
		s.unauthorized(w, r)
		return
	}

	ctx := r.Context()
	c, err := core.ParseCategory(r.PostFormValue("category"))
	if err != nil {
		BadRequestError("Unknown category").Write(w)
		return
	}
	if err := sess.SetView(c, s.now()); err != nil {
		BadRequestError("Unknown category").Write(w)
		return
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to save session",
			log.FieldComponent, log.ComponentSession, log.FieldError, err)
		InternalServerError("Unable to switch view").Write(w)
		return
	}

	log.FromContext(ctx).DebugContext(ctx, "View switched", log.NewFields().
		WithOperation(log.OpSwitch).
		WithCategory(c.String()).
		WithSession(sess.ID).ToSlice()...)
	redirectOrRefresh(w, r, "/", NewHTMXResponse().TriggerViewChanged(c))
}

// handleSync drops the cached snapshot so the next render fetches the ledger.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		ErrorResponse(http.StatusForbidden, "Cross-origin request rejected").Write(w)
		return
	}
	sess := s.currentSession(w, r)
	if sess == nil {
		s.unauthorized(w, r)
		return
	}

	ctx := r.Context()
	s.ledger.Invalidate(sess.AccessToken())
	log.FromContext(ctx).InfoContext(ctx, "Ledger sync requested", log.NewFields().
		WithComponent(log.ComponentLedger).
		WithOperation(log.OpSync).
		WithSession(sess.ID).ToSlice()...)
	redirectOrRefresh(w, r, "/", NewHTMXResponse().
		TriggerLedgerSynced(s.now()).
		TriggerSuccessNotification("Ledger synced."))
}

// handleLedgerPartial re-renders the ledger list for a search term.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	sess, snap, ok := s.partialSnapshot(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	c, err := ParseCategoryParam(q.Get("category"), sess.ActiveView)
	if err != nil {
		BadRequestError("Unknown category").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "ledger", s.views.Ledger(snap.Ledger, c, ParseQuery(q)))
}

// handleEstimatePartial re-renders the estimator against the spending balance.
func (s *Server) handleEstimatePartial(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := s.partialSnapshot(w, r)
	if !ok {
		return
	}
	price := ParsePrice(r.URL.Query().Get("price"))
	est := s.views.Estimate(price, snap.Ledger.Totals().Spending)

	ctx := r.Context()
	log.FromContext(ctx).DebugContext(ctx, "Estimate computed",
		log.FieldOperation, log.OpEstimate, "active", est.Active, "affordable", est.Affordable)
	s.render(w, r, http.StatusOK, "estimate", est)
}

// handleTrend returns the cumulative series of a category as JSON.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	sess, snap, ok := s.partialSnapshot(w, r)
	if !ok {
		return
	}
	c, err := ParseCategoryParam(r.URL.Query().Get("category"), sess.ActiveView)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown category"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(view.BuildTrend(snap.Ledger, c))
}

// partialSnapshot resolves the session and ledger for fragment endpoints.
// On failure it has already written the response.
func (s *Server) partialSnapshot(w http.ResponseWriter, r *http.Request) (*session.Session, services.Snapshot, bool) {
	sess := s.currentSession(w, r)
	if sess == nil {
		s.unauthorized(w, r)
		return nil, services.Snapshot{}, false
	}
	ctx := r.Context()
	snap, err := s.snapshot(ctx, w, sess)
	if errors.Is(err, errSessionGone) {
		s.unauthorized(w, r)
		return nil, services.Snapshot{}, false
	}
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Ledger unavailable",
			log.FieldComponent, log.ComponentLedger, log.FieldError, err)
		BadGatewayError("Unable to retrieve account data.").
			TriggerErrorNotification("The ledger could not be loaded.").
			Write(w)
		return nil, services.Snapshot{}, false
	}
	return sess, snap, true
}

// handleUnknownFragment answers fragment and API paths that have no handler.
func (s *Server) handleUnknownFragment(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Unknown resource").Write(w)
}

// unauthorized answers htmx requests with an HX-Redirect and plain requests
// with a redirect to the sign-in page.
func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) || r.Method != http.MethodPost {
		UnauthorizedError().Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
