// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives and return domain errors from apperror. They
// never see an *http.Request and never choose a status code.
//
// DEPENDENCY INJECTION:
// Services take repository interfaces, not *sqlite.DB. Tests pass in-memory
// fakes (see *_test.go); production passes the sqlite store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

// Validation limits for user fields.
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 120
)

// AuthRecorder receives auth outcomes for metrics. metrics.Collector
// satisfies it.
type AuthRecorder interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)        {}
func (nopRecorder) RecordRegistration(string) {}

// Outcome labels reported to AuthRecorder.
const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

// Token is an issued API access token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
}

// IdentityService registers users, checks credentials and mints the two
// kinds of credential: bearer tokens for API clients and sessions for
// browsers.
//
// DEPENDENCIES (injected via NewIdentityService):
//   - users      repository.UserRepository → credential store
//   - passwords  *auth.PasswordService     → bcrypt hash/verify
//   - tokens     *auth.TokenService        → JWT issue
//   - sessions   *auth.SessionManager      → server-side sessions
//   - recorder   AuthRecorder              → login/registration metrics
//   - logger     *slog.Logger              → structured logging
//
// Passwords never reach the logger, not even on failure paths.
type IdentityService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	sessions  *auth.SessionManager
	recorder  AuthRecorder
	logger    *slog.Logger
}

// NewIdentityService creates an IdentityService. recorder may be nil.
func NewIdentityService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	sessions *auth.SessionManager,
	recorder AuthRecorder,
	logger *slog.Logger,
) *IdentityService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &IdentityService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		sessions:  sessions,
		recorder:  recorder,
		logger:    logger,
	}
}

// Register creates a user and returns its ID.
//
// UNIQUENESS IS CHECKED TWICE:
//  1. A lookup on username OR email gives the common case a clean Conflict.
//  2. The UNIQUE constraints in the schema catch the race where two
//     registrations pass step 1 at the same time; the repository maps the
//     violation to the same Conflict.
func (s *IdentityService) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		s.recorder.RecordRegistration(outcomeInvalid)
		return 0, err
	}

	_, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		s.recorder.RecordRegistration(outcomeConflict)
		return 0, apperror.Conflict("user")
	case !errors.Is(err, apperror.ErrNotFound):
		s.recorder.RecordRegistration(outcomeError)
		return 0, fmt.Errorf("service/identity: checking existing user: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			s.recorder.RecordRegistration(outcomeInvalid)
			return 0, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		s.recorder.RecordRegistration(outcomeError)
		return 0, fmt.Errorf("service/identity: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.recorder.RecordRegistration(outcomeConflict)
			return 0, err
		}
		s.recorder.RecordRegistration(outcomeError)
		return 0, fmt.Errorf("service/identity: creating user: %w", err)
	}

	s.recorder.RecordRegistration(outcomeSuccess)
	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user.ID, nil
}

// Authenticate checks identifier (a username or an email) and password and
// returns the user's ID.
//
// An unknown identifier and a wrong password produce the identical error.
// The unknown-identifier path still pays for a bcrypt comparison so the two
// cannot be told apart by response time either.
func (s *IdentityService) Authenticate(ctx context.Context, identifier, password string) (int64, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.recorder.RecordLogin(outcomeInvalid)
		return 0, apperror.ValidationFailed("credentials", "missing credentials")
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identifier, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			s.recorder.RecordLogin(outcomeInvalid)
			return 0, apperror.InvalidCredentials()
		}
		s.recorder.RecordLogin(outcomeError)
		return 0, fmt.Errorf("service/identity: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.recorder.RecordLogin(outcomeInvalid)
			return 0, apperror.InvalidCredentials()
		}
		s.recorder.RecordLogin(outcomeError)
		return 0, fmt.Errorf("service/identity: verifying password: %w", err)
	}

	s.recorder.RecordLogin(outcomeSuccess)
	s.logger.Info("user authenticated", slog.Int64("userID", user.ID))

	return user.ID, nil
}

// IssueToken mints a bearer token for userID.
func (s *IdentityService) IssueToken(userID int64) (Token, error) {
	signed, err := s.tokens.Generate(userID)
	if err != nil {
		return Token{}, fmt.Errorf("service/identity: issuing token for user %d: %w", userID, err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

// EstablishSession creates a browser session for userID.
func (s *IdentityService) EstablishSession(ctx context.Context, userID int64) (*model.Session, error) {
	session, err := s.sessions.Establish(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/identity: %w", err)
	}
	s.logger.Debug("session established", slog.Int64("userID", userID))
	return session, nil
}

// EndSession logs a browser out. Ending an unknown session is not an error.
func (s *IdentityService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("service/identity: %w", err)
	}
	return nil
}

// Username returns the display name for userID. Used by the todo page.
func (s *IdentityService) Username(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/identity: %w", err)
	}
	return user.Username, nil
}

func validateRegistration(username, email, password string) error {
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "username is required")
	case email == "":
		return apperror.ValidationFailed("email", "email is required")
	case password == "":
		return apperror.ValidationFailed("password", "password is required")
	case len(username) > MaxUsernameLength:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	case len(email) > MaxEmailLength:
		return apperror.ValidationFailed("email",
			fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	}
	return nil
}
