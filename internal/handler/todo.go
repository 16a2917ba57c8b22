package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/service"
)

// TodoHandler serves the todo page and the /api/todos endpoints.
//
// Every route here sits behind the auth gate, so the caller's user ID is
// always in the request context. Handlers never read a user ID from the
// request body or URL.
type TodoHandler struct {
	todos    *service.TodoService
	identity *service.IdentityService
	pages    *Pages
	logger   *slog.Logger
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(
	todos *service.TodoService,
	identity *service.IdentityService,
	pages *Pages,
	logger *slog.Logger,
) *TodoHandler {
	return &TodoHandler{
		todos:    todos,
		identity: identity,
		pages:    pages,
		logger:   logger,
	}
}

// createTodoRequest is the body of POST /api/todos.
type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// callerID returns the gate-resolved user ID. A route mounted without the
// gate is a wiring bug, reported as 401 rather than served unscoped.
func callerID(r *http.Request) (int64, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return 0, apperror.Unauthenticated()
	}
	return userID, nil
}

// todoIDParam parses the {id} path segment. A non-numeric id can't name
// a todo, so it is reported as not found.
func todoIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperror.AppError{Err: apperror.ErrNotFound, Message: "todo not found"}
	}
	return id, nil
}

// =========================================================================
// BROWSER ROUTES
// =========================================================================

// HandleTodosPage renders the caller's todo list.
//
// HTTP: GET /todos
func (h *TodoHandler) HandleTodosPage(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		RejectBrowser(w, r, err)
		return
	}

	todos, err := h.todos.ListForRender(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load todos page", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	username, err := h.identity.Username(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load username", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.pages.render(w, "todos", pageData{
		Title:    "Todos",
		Message:  r.URL.Query().Get("msg"),
		Username: username,
		Todos:    todos,
	})
}

// HandleCreateForm adds a todo from the page's form and goes back to the list.
//
// HTTP: POST /todos → always 303 /todos
func (h *TodoHandler) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		RejectBrowser(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		redirectWithMessage(w, r, "/todos", "Could not read the form")
		return
	}

	_, err = h.todos.Create(r.Context(), userID, r.PostFormValue("title"), r.PostFormValue("description"))
	if err != nil {
		msg := "Could not add the todo"
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
			msg = appErr.Message
		} else {
			h.logger.Error("failed to create todo from form", slog.String("error", err.Error()))
		}
		redirectWithMessage(w, r, "/todos", msg)
		return
	}

	http.Redirect(w, r, "/todos", http.StatusSeeOther)
}

// =========================================================================
// API ROUTES
// =========================================================================

// HandleList returns the caller's todos.
//
// HTTP: GET /api/todos → 200 [{"id":1,"title":"...","description":"","done":false}]
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	todos, err := h.todos.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, todos)
}

// HandleCreate adds a todo.
//
// HTTP: POST /api/todos {"title":"...","description":"..."}
// 201 {"message":"todo created","id":1}; a missing title is 422.
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.todos.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			writeErrorStatus(w, http.StatusUnprocessableEntity, "validation_error", err)
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "todo created", ID: id})
}

// HandleGet returns one of the caller's todos.
//
// HTTP: GET /api/todos/{id} → 200 todo | 404
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := todoIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	todo, err := h.todos.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, todo)
}

// HandleUpdate applies a partial update.
//
// HTTP: PATCH /api/todos/{id} {"done":true} → 200 {"message":"todo updated"} | 400 | 404
//
// JSON null and an absent key both decode to a nil pointer, so both mean
// "leave unchanged". An empty body changes nothing and answers 200 for an
// owned todo, 404 otherwise.
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := todoIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// No body at all is an empty patch: Update still checks the todo is
	// the caller's.
	var patch model.TodoPatch
	if err := decodeOptionalJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	if err := h.todos.Update(r.Context(), userID, id, patch); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "todo updated"})
}

// HandleDelete removes one of the caller's todos.
//
// HTTP: DELETE /api/todos/{id} → 200 {"message":"todo deleted"} | 404
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := todoIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.todos.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "todo deleted"})
}
