// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, redisstore). Every method on
// TodoRepository takes the owner's user ID; there is deliberately no way to
// read or mutate a todo without it.
package repository

import (
	"context"

	"github.com/sakif/tasklist/internal/model"
)

// UserRepository is the credential store.
type UserRepository interface {
	// CreateUser inserts the user and sets user.ID and user.CreatedAt.
	// A unique-constraint violation is reported as apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	// FindByUsernameOrEmail returns the first user whose username equals
	// username or whose email equals email, or apperror.ErrNotFound.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
}

// TodoRepository is the todo store. userID is part of every predicate.
type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *model.Todo) error
	// ListTodos returns the owner's todos in insertion order.
	ListTodos(ctx context.Context, userID int64) ([]model.Todo, error)
	GetTodo(ctx context.Context, userID, id int64) (*model.Todo, error)
	UpdateTodo(ctx context.Context, userID, id int64, patch model.TodoPatch) error
	DeleteTodo(ctx context.Context, userID, id int64) error
}

// SessionRepository stores server-side browser sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	// FindSession returns apperror.ErrNotFound for unknown or expired ids.
	FindSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}
