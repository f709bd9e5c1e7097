// ABOUTME: CSRF protection for form submissions
// ABOUTME: Compares the submitted token against the one stored in the session

package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/2389/folio/internal/session"
)

const (
	csrfField  = "csrf_token"
	csrfHeader = "X-CSRF-Token"
)

// csrf rejects POSTs whose token does not match the session's.
func (s *Server) csrf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		parseForm(w, r)

		token := r.PostFormValue(csrfField)
		if token == "" {
			token = r.Header.Get(csrfHeader)
		}

		if !validToken(token, sess.CSRFToken()) {
			s.logger.Warn("csrf token mismatch", "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func validToken(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
