package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	sessionCookie = "finview_session"
	stateCookie   = "finview_oauth_state"
	stateMaxAge   = 10 * time.Minute

	sessionTouchInterval = 5 * time.Minute
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sameOrigin rejects cross-site form posts. Requests without an Origin
// header are accepted; SameSite=Lax cookies cover older browsers.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectOrRefresh sends htmx clients a full-page refresh and plain form
// posts a 303 to target.
func redirectOrRefresh(w http.ResponseWriter, r *http.Request, target string, b *HTMXResponseBuilder) {
	if isHTMX(r) {
		b.Refresh().Status(http.StatusNoContent).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
