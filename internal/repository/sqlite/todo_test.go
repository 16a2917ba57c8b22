package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
)

func createTestTodo(t *testing.T, db *DB, userID int64, title string) *model.Todo {
	t.Helper()
	todo := &model.Todo{Title: title, UserID: userID}
	if err := db.CreateTodo(context.Background(), todo); err != nil {
		t.Fatalf("failed to create test todo: %v", err)
	}
	return todo
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// =========================================================================
// CREATE / LIST TESTS
// =========================================================================

func TestCreateTodo(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner")

	todo := &model.Todo{Title: "Buy milk", Description: "2 litres", UserID: owner.ID}
	if err := db.CreateTodo(context.Background(), todo); err != nil {
		t.Fatalf("CreateTodo() error = %v", err)
	}

	if todo.ID == 0 {
		t.Error("CreateTodo() did not set todo.ID")
	}

	found, err := db.GetTodo(context.Background(), owner.ID, todo.ID)
	if err != nil {
		t.Fatalf("GetTodo() error = %v", err)
	}
	if found.Title != "Buy milk" || found.Description != "2 litres" || found.Done {
		t.Errorf("GetTodo() = %+v, want title/description persisted and done=false", found)
	}
}

func TestCreateTodo_UnknownOwnerRejected(t *testing.T) {
	db := newTestDB(t)

	// Foreign keys are on: a todo cannot exist without a valid owner.
	err := db.CreateTodo(context.Background(), &model.Todo{Title: "orphan", UserID: 4242})
	if err == nil {
		t.Fatal("CreateTodo() should fail for a user that does not exist")
	}
}

func TestListTodos_Empty(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner")

	todos, err := db.ListTodos(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}
	if todos == nil {
		t.Error("ListTodos() returned nil, want empty slice")
	}
	if len(todos) != 0 {
		t.Errorf("ListTodos() returned %d todos, want 0", len(todos))
	}
}

func TestListTodos_InsertionOrder(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner")

	createTestTodo(t, db, owner.ID, "first")
	createTestTodo(t, db, owner.ID, "second")
	createTestTodo(t, db, owner.ID, "third")

	todos, err := db.ListTodos(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("ListTodos() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(todos) != len(want) {
		t.Fatalf("ListTodos() returned %d todos, want %d", len(todos), len(want))
	}
	for i, title := range want {
		if todos[i].Title != title {
			t.Errorf("todos[%d].Title = %q, want %q", i, todos[i].Title, title)
		}
	}
}

// =========================================================================
// OWNER SCOPING TESTS
// =========================================================================

func TestOwnerScoping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	aliceTodo := createTestTodo(t, db, alice.ID, "alice's secret")

	t.Run("list does not leak", func(t *testing.T) {
		todos, err := db.ListTodos(ctx, bob.ID)
		if err != nil {
			t.Fatalf("ListTodos() error = %v", err)
		}
		if len(todos) != 0 {
			t.Errorf("bob sees %d todos, want 0", len(todos))
		}
	})

	t.Run("get is not found", func(t *testing.T) {
		_, err := db.GetTodo(ctx, bob.ID, aliceTodo.ID)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("GetTodo() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("update is not found and changes nothing", func(t *testing.T) {
		err := db.UpdateTodo(ctx, bob.ID, aliceTodo.ID, model.TodoPatch{Title: strPtr("pwned")})
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("UpdateTodo() error = %v, want ErrNotFound", err)
		}

		found, err := db.GetTodo(ctx, alice.ID, aliceTodo.ID)
		if err != nil {
			t.Fatalf("GetTodo() error = %v", err)
		}
		if found.Title != "alice's secret" {
			t.Errorf("Title = %q, want unchanged", found.Title)
		}
	})

	t.Run("delete is not found and keeps the row", func(t *testing.T) {
		err := db.DeleteTodo(ctx, bob.ID, aliceTodo.ID)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("DeleteTodo() error = %v, want ErrNotFound", err)
		}

		if _, err := db.GetTodo(ctx, alice.ID, aliceTodo.ID); err != nil {
			t.Errorf("alice's todo disappeared: %v", err)
		}
	})

	t.Run("foreign and missing ids give the same error", func(t *testing.T) {
		foreign := db.DeleteTodo(ctx, bob.ID, aliceTodo.ID)
		missing := db.DeleteTodo(ctx, bob.ID, 987654)

		var foreignErr, missingErr *apperror.AppError
		if !errors.As(foreign, &foreignErr) || !errors.As(missing, &missingErr) {
			t.Fatalf("expected AppErrors, got %v and %v", foreign, missing)
		}
		if foreignErr.Err != missingErr.Err {
			t.Errorf("sentinels differ: %v vs %v", foreignErr.Err, missingErr.Err)
		}
	})
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestUpdateTodo_PartialFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")

	todo := &model.Todo{Title: "original", Description: "keep me", UserID: owner.ID}
	if err := db.CreateTodo(ctx, todo); err != nil {
		t.Fatalf("CreateTodo() error = %v", err)
	}

	if err := db.UpdateTodo(ctx, owner.ID, todo.ID, model.TodoPatch{Done: boolPtr(true)}); err != nil {
		t.Fatalf("UpdateTodo() error = %v", err)
	}

	found, err := db.GetTodo(ctx, owner.ID, todo.ID)
	if err != nil {
		t.Fatalf("GetTodo() error = %v", err)
	}
	if !found.Done {
		t.Error("Done = false, want true")
	}
	if found.Title != "original" {
		t.Errorf("Title = %q, want %q", found.Title, "original")
	}
	if found.Description != "keep me" {
		t.Errorf("Description = %q, want %q", found.Description, "keep me")
	}
}

func TestUpdateTodo_AllFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	todo := createTestTodo(t, db, owner.ID, "old")

	patch := model.TodoPatch{
		Title:       strPtr("new"),
		Description: strPtr(""),
		Done:        boolPtr(true),
	}
	if err := db.UpdateTodo(ctx, owner.ID, todo.ID, patch); err != nil {
		t.Fatalf("UpdateTodo() error = %v", err)
	}

	found, _ := db.GetTodo(ctx, owner.ID, todo.ID)
	if found.Title != "new" || found.Description != "" || !found.Done {
		t.Errorf("GetTodo() = %+v, want all fields updated", found)
	}

	// Flip done back to false: false must be applied, not treated as "unset".
	if err := db.UpdateTodo(ctx, owner.ID, todo.ID, model.TodoPatch{Done: boolPtr(false)}); err != nil {
		t.Fatalf("UpdateTodo() error = %v", err)
	}
	found, _ = db.GetTodo(ctx, owner.ID, todo.ID)
	if found.Done {
		t.Error("Done = true after setting false")
	}
}

func TestDeleteTodo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")
	todo := createTestTodo(t, db, owner.ID, "delete me")

	if err := db.DeleteTodo(ctx, owner.ID, todo.ID); err != nil {
		t.Fatalf("DeleteTodo() error = %v", err)
	}

	_, err := db.GetTodo(ctx, owner.ID, todo.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetTodo() after delete error = %v, want ErrNotFound", err)
	}

	// Deleting twice is NotFound, not success.
	if err := db.DeleteTodo(ctx, owner.ID, todo.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteTodo() error = %v, want ErrNotFound", err)
	}
}
