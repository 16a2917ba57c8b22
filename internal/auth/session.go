package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

const (
	// SessionCookieName is the cookie that carries the session id.
	SessionCookieName = "session_id"

	// DefaultSessionTTL is used when no lifetime is configured.
	DefaultSessionTTL = 24 * time.Hour
)

// SessionManager creates, resolves and destroys server-side browser sessions.
//
// SESSION VS. TOKEN:
// A JWT carries its own proof and cannot be revoked before it expires. A
// session is just a random id; the record lives in the store, so logout
// deletes it and the cookie becomes worthless immediately.
//
// The store is either the sqlite sessions table or Redis. SessionManager
// only sees repository.SessionRepository and does not care which.
type SessionManager struct {
	store  repository.SessionRepository
	ttl    time.Duration
	secure bool
}

// NewSessionManager creates a SessionManager. secure controls the Secure
// attribute on the cookie; leave it off for plain-HTTP local development.
func NewSessionManager(store repository.SessionRepository, ttl time.Duration, secure bool) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, ttl: ttl, secure: secure}
}

// TTL returns the lifetime of new sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Establish creates a session bound to userID.
func (m *SessionManager) Establish(ctx context.Context, userID int64) (*model.Session, error) {
	now := time.Now().UTC()

	// UUIDv4: 122 random bits from crypto/rand. Unguessable is the only
	// property that matters for a bearer id.
	s := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("auth: establishing session for user %d: %w", userID, err)
	}

	return s, nil
}

// Lookup resolves a session id. Unknown, expired and malformed ids all
// return apperror.ErrNotFound.
func (m *SessionManager) Lookup(ctx context.Context, id string) (*model.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "session not found"}
	}

	s, err := m.store.FindSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Expired(time.Now()) {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "session not found"}
	}

	return s, nil
}

// Destroy deletes the session. Destroying an unknown id is not an error.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("auth: destroying session: %w", err)
	}
	return nil
}

// SetCookie writes the session cookie.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly: JavaScript cannot read it (XSS can't steal the session)
//   - SameSite=Lax: not sent on cross-site POSTs, which blunts CSRF
//   - Expires matches the server-side record
func (m *SessionManager) SetCookie(w http.ResponseWriter, s *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to drop the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionIDFromRequest returns the session cookie value, or "" if absent.
func SessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
