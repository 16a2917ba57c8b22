package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "not_found", "message": "todo not found with id 7"}
//
// "error" is a stable machine-readable kind; "message" is for humans.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/munnerz/goautoneg"

	"github.com/sakif/tasklist/internal/apperror"
)

// maxBodyBytes caps JSON and form request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error kind (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse acknowledges a write. ID is set for creations.
type MessageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once Encode
// writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// classify maps an error to its HTTP status and error kind.
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("...: %w") still maps by its sentinel.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Unknown errors become a generic 500. The raw message might contain SQL
// or file paths, so it goes to the log and never to the client.
func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeErrorStatus(w, status, kind, err)
}

// writeErrorStatus is writeError with the status chosen by the caller.
// Used where an endpoint answers a domain error with a non-default status.
func writeErrorStatus(w http.ResponseWriter, status int, kind string, err error) {
	var appErr *apperror.AppError
	if kind == "internal_error" || !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	switch kind {
	case "invalid_token":
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case "unauthenticated":
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
	})
}

// RejectAPI answers a request the auth gate turned away with a JSON error.
func RejectAPI(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, err)
}

// RejectBrowser sends a browser that failed the auth gate to the login page.
// Store failures are not the user's fault and get a plain 500 instead.
func RejectBrowser(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status != http.StatusUnauthorized {
		slog.Error("auth gate failed", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	redirectWithMessage(w, r, "/auth/login", "Please log in")
}

// wantsJSON reports whether the caller is an API client rather than a
// browser form: either the body is JSON, or the Accept header prefers
// JSON over HTML.
func wantsJSON(r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
			return true
		}
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}
	return goautoneg.Negotiate(accept, []string{"text/html", "application/json"}) == "application/json"
}

const emptyBodyMessage = "request body is empty"

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", emptyBodyMessage)
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for requests where an empty body is a
// valid request. dst is left untouched when nothing was sent.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeJSON(w, r, dst)
	if err != nil && isEmptyBody(err) {
		return nil
	}
	return err
}

func isEmptyBody(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Message == emptyBodyMessage
}

// redirectWithMessage redirects to path with a one-line status message in
// the query string. The page renders it through html/template, which escapes it.
//
// 303 See Other makes the browser follow with GET after a form POST.
func redirectWithMessage(w http.ResponseWriter, r *http.Request, path, msg string) {
	target := path
	if msg != "" {
		target += "?" + url.Values{"msg": {msg}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
