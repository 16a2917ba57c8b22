package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/tasklist/internal/apperror"
)

// Source records which credential authenticated a request.
type Source int

const (
	SourceToken Source = iota + 1
	SourceSession
)

func (s Source) String() string {
	switch s {
	case SourceToken:
		return "token"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID int64
	Source Source
}

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// only this package can create the key, so nothing else can read or shadow
// the identity stored in the context.
type contextKey struct{}

var identityKey contextKey

// Gate resolves every request to exactly one user, from either a bearer
// token or a session cookie.
//
// RESOLUTION ORDER:
//  1. "Authorization: Bearer <jwt>" that verifies → SourceToken
//  2. session cookie bound to a live session    → SourceSession
//  3. otherwise reject
//
// The first credential that verifies wins; the two are never merged. A bad
// bearer token does not end the attempt: a browser that also holds a valid
// session is still let through. If nothing verifies, the rejection is
// ErrInvalidToken when a token was presented and ErrUnauthenticated when
// nothing usable was sent at all.
type Gate struct {
	tokens   *TokenService
	sessions *SessionManager
	logger   *slog.Logger
}

// NewGate creates a Gate over the two credential verifiers.
func NewGate(tokens *TokenService, sessions *SessionManager, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, sessions: sessions, logger: logger}
}

// Resolve maps the request to an Identity.
func (g *Gate) Resolve(r *http.Request) (Identity, error) {
	var tokenErr error

	if raw, ok := bearerToken(r); ok {
		userID, err := g.tokens.Validate(raw)
		if err == nil {
			return Identity{UserID: userID, Source: SourceToken}, nil
		}
		tokenErr = err
	}

	if id := SessionIDFromRequest(r); id != "" {
		s, err := g.sessions.Lookup(r.Context(), id)
		if err == nil {
			return Identity{UserID: s.UserID, Source: SourceSession}, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			// Store failure, not a bad credential.
			return Identity{}, err
		}
	}

	if tokenErr != nil {
		return Identity{}, tokenErr
	}
	return Identity{}, apperror.Unauthenticated()
}

// Require returns middleware that lets a request through only when Resolve
// succeeds. The identity is stored in the request context for handlers.
//
// onReject decides what a rejection looks like: the API answers 401 JSON,
// the browser pages redirect to the login form.
func (g *Gate) Require(onReject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Resolve(r)
			if err != nil {
				g.logger.Debug("request rejected by auth gate",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				onReject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by Require.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID > 0
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns (0, false) outside a Require-protected route.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // route is missing the gate
//	}
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
// The scheme is case-insensitive (RFC 7235). ok is false when no bearer
// credential was sent at all.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}
