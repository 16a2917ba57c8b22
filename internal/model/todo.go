package model

import "time"

// Todo is a single task owned by exactly one user.
//
// UserID is set once at creation and never changes. It is not part of the
// JSON shape: API clients only ever see their own todos.
type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Done        bool      `json:"done"`
	UserID      int64     `json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TodoPatch carries a partial update. A nil field means "not supplied" and
// leaves the stored value untouched.
type TodoPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Done        *bool   `json:"done"`
}

// Empty reports whether no field was supplied.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Done == nil
}
