package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/service"
)

// AuthHandler serves registration, login and logout for both surfaces.
//
// ONE ROUTE, TWO CLIENTS:
// POST /auth/register and POST /auth/login accept either a JSON body (API
// clients) or an HTML form (browsers). JSON callers get JSON back; browsers
// get redirects with a short message for the next page.
//
// DEPENDENCY CHAIN:
//   - identity *service.IdentityService → registration, credential checks, token and session issue
//   - sessions *auth.SessionManager     → cookie writing
//   - pages    *Pages                   → HTML forms
type AuthHandler struct {
	identity *service.IdentityService
	sessions *auth.SessionManager
	pages    *Pages
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	identity *service.IdentityService,
	sessions *auth.SessionManager,
	pages *Pages,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		sessions: sessions,
		pages:    pages,
		logger:   logger,
	}
}

// credentials is the body of a register or login request.
//
// Login accepts the identifier under any of "identifier", "username" or
// "email"; the first non-empty one wins.
type credentials struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (c credentials) loginIdentifier() string {
	for _, v := range []string{c.Identifier, c.Username, c.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

// TokenResponse is the body of a successful API login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// readCredentials reads credentials from a JSON body or a form.
func readCredentials(w http.ResponseWriter, r *http.Request, isJSON bool) (credentials, error) {
	var c credentials
	if isJSON {
		if err := decodeJSON(w, r, &c); err != nil {
			return credentials{}, err
		}
		return c, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return credentials{}, apperror.ValidationFailed("body", "invalid form body")
	}
	c.Identifier = r.PostFormValue("identifier")
	c.Username = r.PostFormValue("username")
	c.Email = r.PostFormValue("email")
	c.Password = r.PostFormValue("password")
	return c, nil
}

// HandleRegisterPage renders the registration form.
//
// HTTP: GET /auth/register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, "register", pageData{
		Title:   "Register",
		Message: r.URL.Query().Get("msg"),
	})
}

// HandleRegister creates an account. It does not log the user in.
//
// HTTP: POST /auth/register
// JSON:  201 {"message":"user created","id":1} | 400 | 409
// Form:  303 → /auth/login?msg=... on success, /auth/register?msg=... on failure
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	isJSON := wantsJSON(r)

	c, err := readCredentials(w, r, isJSON)
	if err == nil {
		var id int64
		id, err = h.identity.Register(r.Context(), c.Username, c.Email, c.Password)
		if err == nil {
			if isJSON {
				writeJSON(w, http.StatusCreated, MessageResponse{Message: "user created", ID: id})
				return
			}
			redirectWithMessage(w, r, "/auth/login", "Registered successfully. Please log in.")
			return
		}
	}

	if isJSON {
		writeError(w, err)
		return
	}

	msg := "Registration failed. Please try again."
	switch {
	case errors.Is(err, apperror.ErrConflict):
		msg = "Username or email already exists"
	case errors.Is(err, apperror.ErrValidation):
		msg = "Please fill all fields"
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			msg = appErr.Message
		}
	default:
		h.logger.Error("registration failed", slog.String("error", err.Error()))
	}
	redirectWithMessage(w, r, "/auth/register", msg)
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /auth/login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, "login", pageData{
		Title:   "Log in",
		Message: r.URL.Query().Get("msg"),
	})
}

// HandleLogin checks credentials and hands out the credential that fits the
// client: a bearer token for JSON callers, a session cookie for browsers.
//
// HTTP: POST /auth/login
// JSON:  200 {"access_token":"...","token_type":"Bearer","expires_in":900} | 400 | 401
// Form:  303 → /todos with Set-Cookie, or → /auth/login?msg=... on failure
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	isJSON := wantsJSON(r)

	c, err := readCredentials(w, r, isJSON)
	if err != nil {
		h.loginFailed(w, r, isJSON, err)
		return
	}

	userID, err := h.identity.Authenticate(r.Context(), c.loginIdentifier(), c.Password)
	if err != nil {
		h.loginFailed(w, r, isJSON, err)
		return
	}

	if isJSON {
		tok, err := h.identity.IssueToken(userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TokenResponse{
			AccessToken: tok.AccessToken,
			TokenType:   tok.TokenType,
			ExpiresIn:   tok.ExpiresIn,
		})
		return
	}

	// Replace any session the browser already had.
	if old := auth.SessionIDFromRequest(r); old != "" {
		if err := h.identity.EndSession(r.Context(), old); err != nil {
			h.logger.Warn("failed to end previous session", slog.String("error", err.Error()))
		}
	}

	session, err := h.identity.EstablishSession(r.Context(), userID)
	if err != nil {
		h.loginFailed(w, r, false, err)
		return
	}
	h.sessions.SetCookie(w, session)
	http.Redirect(w, r, "/todos", http.StatusSeeOther)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, isJSON bool, err error) {
	if isJSON {
		writeError(w, err)
		return
	}

	msg := "Login failed. Please try again."
	switch {
	case errors.Is(err, apperror.ErrValidation):
		msg = "Missing credentials"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		msg = "Invalid credentials"
	default:
		h.logger.Error("login failed", slog.String("error", err.Error()))
	}
	redirectWithMessage(w, r, "/auth/login", msg)
}

// HandleLogout ends the browser session and clears the cookie.
//
// HTTP: GET|POST /auth/logout (behind the auth gate)
//
// A bearer-token caller has no session to end; tokens simply expire. It
// still gets a 200 so scripted clients can call logout unconditionally.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok && id.Source == auth.SourceSession {
		if err := h.identity.EndSession(r.Context(), auth.SessionIDFromRequest(r)); err != nil {
			h.logger.Error("failed to end session", slog.String("error", err.Error()))
		}
	}
	h.sessions.ClearCookie(w)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
		return
	}
	redirectWithMessage(w, r, "/auth/login", "You have been logged out")
}
