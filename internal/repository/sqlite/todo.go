package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

var _ repository.TodoRepository = (*DB)(nil)

// OWNER SCOPING:
// Every statement below carries "user_id = ?" in its WHERE clause. A todo
// that exists but belongs to another user simply does not match, so "not
// found" and "not yours" are the same code path and the same error.

// CreateTodo inserts a todo for todo.UserID and fills in ID and timestamps.
func (db *DB) CreateTodo(ctx context.Context, todo *model.Todo) error {
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO todos (title, description, done, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		todo.Title,
		todo.Description,
		todo.Done,
		todo.UserID,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating todo for user %d: %w", todo.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading todo id: %w", err)
	}
	todo.ID = id

	return nil
}

// ListTodos returns all todos owned by userID, oldest first.
func (db *DB) ListTodos(ctx context.Context, userID int64) ([]model.Todo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, description, done, user_id, created_at, updated_at
		 FROM todos
		 WHERE user_id = ?
		 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos for user %d: %w", userID, err)
	}
	defer rows.Close()

	// Non-nil so an empty list encodes as [] rather than null.
	todos := make([]model.Todo, 0)

	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Done,
			&t.UserID, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		todos = append(todos, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}

	return todos, nil
}

// GetTodo returns the todo with id if, and only if, userID owns it.
func (db *DB) GetTodo(ctx context.Context, userID, id int64) (*model.Todo, error) {
	var t model.Todo

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, description, done, user_id, created_at, updated_at
		 FROM todos
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(
		&t.ID, &t.Title, &t.Description, &t.Done,
		&t.UserID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %d: %w", id, err)
	}

	return &t, nil
}

// UpdateTodo applies the supplied fields of patch in a single statement.
//
// COALESCE(?, column) keeps the stored value when the parameter is NULL,
// so an unsupplied field is bound as NULL. That gives partial-update
// semantics without building SQL strings by hand.
func (db *DB) UpdateTodo(ctx context.Context, userID, id int64, patch model.TodoPatch) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE todos
		 SET title       = COALESCE(?, title),
		     description = COALESCE(?, description),
		     done        = COALESCE(?, done),
		     updated_at  = ?
		 WHERE id = ? AND user_id = ?`,
		nullable(patch.Title),
		nullable(patch.Description),
		nullable(patch.Done),
		time.Now().UTC(),
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("todo", id)
	}

	return nil
}

// DeleteTodo removes the todo with id if userID owns it.
func (db *DB) DeleteTodo(ctx context.Context, userID, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("todo", id)
	}

	return nil
}

// nullable turns an optional field into a bind argument: nil for "not
// supplied", otherwise the dereferenced value.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
