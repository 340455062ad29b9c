package domain

import "time"

// Todo is the canonical record of a tracked task.
// It does not depend on Gin, Postgres, SQLite or Redis.
type Todo struct {
	TodoID        string    `json:"todoId"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	DueDate       string    `json:"dueDate"`
	Done          bool      `json:"done"`
	CreatedAt     time.Time `json:"createdAt"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	Version       int64     `json:"version"`
}

// TodoPatch is a partial update. Nil fields are left untouched.
// ExpectedVersion, when set, turns the update into a conditional write.
type TodoPatch struct {
	Name            *string
	DueDate         *string
	Done            *bool
	ExpectedVersion *int64
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Name == nil && p.DueDate == nil && p.Done == nil
}

// Apply returns t with the patched fields replaced.
func (p TodoPatch) Apply(t Todo) Todo {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
	return t
}
