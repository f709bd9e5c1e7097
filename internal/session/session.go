// ABOUTME: Per-client session state with identity and one-shot flash messages
// ABOUTME: Sessions are explicit values carried through context, never process-wide globals

package session

import (
	"context"
	"sync"
	"time"
)

// Session holds one client's identity and pending messages.
// Pending messages are consumed by Take* and are returned at most once.
type Session struct {
	mu sync.Mutex

	id        string
	user      string
	errMsg    string
	okMsg     string
	csrfToken string
	createdAt time.Time
	expiresAt time.Time

	dirty bool
	renew bool
}

// Data is the persisted form of a Session.
type Data struct {
	ID             string
	Username       string
	PendingError   string
	PendingSuccess string
	CSRFToken      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// New creates an anonymous session.
func New(id, csrfToken string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		id:        id,
		csrfToken: csrfToken,
		createdAt: now,
		expiresAt: now.Add(ttl),
		dirty:     true,
	}
}

// Restore rebuilds a session from its persisted form.
func Restore(d Data) *Session {
	return &Session{
		id:        d.ID,
		user:      d.Username,
		errMsg:    d.PendingError,
		okMsg:     d.PendingSuccess,
		csrfToken: d.CSRFToken,
		createdAt: d.CreatedAt,
		expiresAt: d.ExpiresAt,
	}
}

// Snapshot returns the persisted form of the session.
func (s *Session) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Data{
		ID:             s.id,
		Username:       s.user,
		PendingError:   s.errMsg,
		PendingSuccess: s.okMsg,
		CSRFToken:      s.csrfToken,
		CreatedAt:      s.createdAt,
		ExpiresAt:      s.expiresAt,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// CSRFToken returns the token POST forms must echo back.
func (s *Session) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfToken
}

// Renew asks for a new ID and CSRF token before the session is next
// persisted. Call it whenever the signed-in identity changes.
func (s *Session) Renew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renew = true
	s.dirty = true
}

// takeRenew reports and clears a pending Renew.
func (s *Session) takeRenew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	renew := s.renew
	s.renew = false
	return renew
}

// reissue swaps the session's ID and CSRF token.
func (s *Session) reissue(id, csrfToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.csrfToken = csrfToken
	s.dirty = true
}

// ExpiresAt returns when the session stops being valid.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// CurrentUser returns the signed-in username, if any.
func (s *Session) CurrentUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.user != ""
}

// SetCurrentUser marks the session as signed in.
func (s *Session) SetCurrentUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = username
	s.dirty = true
}

// ClearCurrentUser makes the session anonymous.
func (s *Session) ClearCurrentUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = ""
	s.dirty = true
}

// SetError replaces any pending error message.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
	s.dirty = true
}

// SetSuccess replaces any pending success message.
func (s *Session) SetSuccess(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.okMsg = msg
	s.dirty = true
}

// TakeError returns the pending error message and clears it.
func (s *Session) TakeError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.errMsg
	if msg == "" {
		return "", false
	}
	s.errMsg = ""
	s.dirty = true
	return msg, true
}

// TakeSuccess returns the pending success message and clears it.
func (s *Session) TakeSuccess() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.okMsg
	if msg == "" {
		return "", false
	}
	s.okMsg = ""
	s.dirty = true
	return msg, true
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// Dirty reports whether the session changed since it was last persisted.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) markClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// sessionContextKey is the key type for storing a Session in context.Context.
type sessionContextKey struct{}

// WithSession returns a new context with the session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext retrieves the session from the context, returning nil if not present.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey{}).(*Session)
	return s
}
