package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasklist/internal/apperror"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", apperror.ValidationFailed("title", "title is required"), http.StatusBadRequest, "validation_error"},
		{"wrapped not found", fmt.Errorf("getting: %w", apperror.NotFound("todo", 1)), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("user"), http.StatusConflict, "conflict"},
		{"invalid credentials", apperror.InvalidCredentials(), http.StatusUnauthorized, "invalid_credentials"},
		{"unauthenticated", apperror.Unauthenticated(), http.StatusUnauthorized, "unauthenticated"},
		{"invalid token", apperror.InvalidToken(errors.New("expired")), http.StatusUnauthorized, "invalid_token"},
		{"unknown", errors.New("near \"SELEC\": syntax error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.NotContains(t, body.Message, "SELEC", "internal details must not leak")
		})
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
		want        bool
	}{
		{"json body", "application/json", "", true},
		{"json body with charset", "application/json; charset=utf-8", "", true},
		{"form body", "application/x-www-form-urlencoded", "", false},
		{"browser accept", "", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", false},
		{"api accept", "", "application/json", true},
		{"json preferred", "", "application/json, text/html;q=0.5", true},
		{"nothing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, wantsJSON(r))
		})
	}
}

func TestRejectBrowser(t *testing.T) {
	rr := httptest.NewRecorder()
	RejectBrowser(rr, httptest.NewRequest(http.MethodGet, "/todos", nil), apperror.Unauthenticated())
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/auth/login")

	rr = httptest.NewRecorder()
	RejectBrowser(rr, httptest.NewRequest(http.MethodGet, "/todos", nil), errors.New("redis down"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
