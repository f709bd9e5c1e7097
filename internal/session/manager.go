// ABOUTME: Loads sessions from signed cookies and persists them after each request
// ABOUTME: Defines the Store and TokenCodec contracts implemented by store and auth

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "folio_session"

// ErrNotFound is returned by a Store when no live session has the given ID.
var ErrNotFound = errors.New("session not found")

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenCodec signs session IDs into cookie values and verifies them.
type TokenCodec interface {
	Generate(sessionID string, expiresIn time.Duration) (string, error)
	Verify(token string) (sessionID string, err error)
}

// Manager ties cookies, tokens and the session store together.
type Manager struct {
	store  Store
	codec  TokenCodec
	ttl    time.Duration
	secure bool
	now    func() time.Time
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) ManagerOption {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager.
func NewManager(store Store, codec TokenCodec, ttl time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		codec:  codec,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the session named by the request's cookie. A missing,
// tampered or expired cookie yields a fresh anonymous session; fresh is true
// when the caller must send a new cookie.
func (m *Manager) Load(ctx context.Context, r *http.Request) (s *Session, fresh bool, err error) {
	if cookie, cerr := r.Cookie(CookieName); cerr == nil && cookie.Value != "" {
		id, verr := m.codec.Verify(cookie.Value)
		if verr == nil {
			s, gerr := m.store.Get(ctx, id)
			if gerr == nil && !s.Expired(m.now()) {
				return s, false, nil
			}
			if gerr != nil && !errors.Is(gerr, ErrNotFound) {
				return nil, false, fmt.Errorf("loading session: %w", gerr)
			}
		} else {
			m.logger.Debug("rejected session cookie", "error", verr)
		}
	}

	s, err = m.newSession()
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (m *Manager) newSession() (*Session, error) {
	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating csrf token: %w", err)
	}
	return New(uuid.New().String(), token, m.now(), m.ttl), nil
}

// Rotate gives s a new ID and CSRF token and drops the record stored under
// the old ID. The caller must send a new cookie.
func (m *Manager) Rotate(ctx context.Context, s *Session) error {
	token, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generating csrf token: %w", err)
	}

	oldID := s.ID()
	s.reissue(uuid.New().String(), token)

	if err := m.store.Delete(ctx, oldID); err != nil {
		// The old record still expires on its own
		m.logger.Warn("failed to delete rotated session", "error", err)
	}
	return nil
}

// Save persists the session if it changed.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.markClean()
	return nil
}

// SetCookie writes the signed session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) error {
	token, err := m.codec.Generate(s.ID(), s.ExpiresAt().Sub(m.now()))
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt(),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware attaches the request's session to its context and persists it.
// The session is saved before the response header is written so that a
// redirected client always finds its flash message on the next request.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s, fresh, err := m.Load(ctx, r)
		if err != nil {
			m.logger.Error("failed to load session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if fresh {
			if err := m.SetCookie(w, s); err != nil {
				m.logger.Error("failed to set session cookie", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		sw := &savingWriter{ResponseWriter: w, save: func() {
			saveCtx := context.WithoutCancel(ctx)
			// A session minted on this request already has an unguessable ID
			if s.takeRenew() && !fresh {
				if err := m.Rotate(saveCtx, s); err != nil {
					m.logger.Error("failed to rotate session", "error", err)
				} else if err := m.SetCookie(w, s); err != nil {
					m.logger.Error("failed to set session cookie", "error", err)
				}
			}
			if err := m.Save(saveCtx, s); err != nil {
				m.logger.Error("failed to save session", "error", err)
			}
		}}

		next.ServeHTTP(sw, r.WithContext(WithSession(ctx, s)))

		// Changes made after the header was written still need persisting
		sw.save()
	})
}

// savingWriter persists the session just before the response header goes out.
type savingWriter struct {
	http.ResponseWriter
	save func()
	once sync.Once
}

func (w *savingWriter) WriteHeader(code int) {
	w.once.Do(w.save)
	w.ResponseWriter.WriteHeader(code)
}

func (w *savingWriter) Write(b []byte) (int, error) {
	w.once.Do(w.save)
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *savingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// generateSecureToken creates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
