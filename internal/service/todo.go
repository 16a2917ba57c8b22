package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

// Validation limits for todo fields.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 255
)

// TodoService handles business logic for todos.
//
// OWNER SCOPING:
// Every method takes the caller's userID as resolved by the auth gate and
// passes it down to the repository. There is no method that touches a todo
// without an owner, so a handler cannot forget the check.
type TodoService struct {
	repo   repository.TodoRepository
	logger *slog.Logger
}

// NewTodoService creates a new TodoService.
func NewTodoService(repo repository.TodoRepository, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		logger: logger,
	}
}

// List returns the caller's todos in insertion order.
func (s *TodoService) List(ctx context.Context, userID int64) ([]model.Todo, error) {
	todos, err := s.repo.ListTodos(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list todos",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

// ListForRender returns the same set as List; it is the entry point the
// HTML page uses.
func (s *TodoService) ListForRender(ctx context.Context, userID int64) ([]model.Todo, error) {
	return s.List(ctx, userID)
}

// Create validates and saves a new todo owned by userID. New todos are
// never done.
func (s *TodoService) Create(ctx context.Context, userID int64, title, description string) (int64, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if err := validateTitle(title); err != nil {
		return 0, err
	}
	if err := validateDescription(description); err != nil {
		return 0, err
	}

	todo := &model.Todo{
		Title:       title,
		Description: description,
		Done:        false,
		UserID:      userID,
	}

	if err := s.repo.CreateTodo(ctx, todo); err != nil {
		s.logger.Error("failed to create todo",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.Int64("id", todo.ID),
		slog.Int64("userID", userID),
	)

	return todo.ID, nil
}

// Get returns one of the caller's todos. A todo owned by someone else is
// reported exactly like one that does not exist.
func (s *TodoService) Get(ctx context.Context, userID, todoID int64) (*model.Todo, error) {
	todo, err := s.repo.GetTodo(ctx, userID, todoID)
	if err != nil {
		// Let the error propagate (it's already a proper apperror)
		return nil, err
	}
	return todo, nil
}

// Update applies the supplied fields of patch. Fields left nil keep their
// stored value. A supplied empty title is rejected rather than ignored.
func (s *TodoService) Update(ctx context.Context, userID, todoID int64, patch model.TodoPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if err := validateDescription(description); err != nil {
			return err
		}
		patch.Description = &description
	}

	// An empty patch still has to prove the todo exists and is the
	// caller's, so it goes through a scoped read instead of a no-op.
	if patch.Empty() {
		_, err := s.repo.GetTodo(ctx, userID, todoID)
		return err
	}

	if err := s.repo.UpdateTodo(ctx, userID, todoID, patch); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to update todo",
			slog.Int64("id", todoID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating todo: %w", err)
	}

	s.logger.Info("todo updated", slog.Int64("id", todoID), slog.Int64("userID", userID))
	return nil
}

// Delete removes one of the caller's todos.
func (s *TodoService) Delete(ctx context.Context, userID, todoID int64) error {
	if err := s.repo.DeleteTodo(ctx, userID, todoID); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.Int64("id", todoID), slog.Int64("userID", userID))
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	return nil
}
