package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dom "todoapi/internal/domain"
)

// dueDateLayouts are the accepted shapes of dueDate.
var dueDateLayouts = []string{
	"2006-01-02",     // date only
	time.RFC3339,     // 2006-01-02T15:04:05Z07:00
	time.RFC3339Nano, // with nanoseconds
	"2006-01-02T15:04:05",
}

// DueDate parses dueDate from JSON as either date-only ("2006-01-02") or
// RFC3339. The string is kept as sent once it is known to be a date.
type DueDate struct{ s string }

func (d *DueDate) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.s = ""
		return nil
	}
	s := strings.TrimSpace(*raw)
	for _, layout := range dueDateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			d.s = s
			return nil
		}
	}
	return fmt.Errorf("dueDate: use date (YYYY-MM-DD) or RFC3339 datetime")
}

func (d DueDate) String() string { return d.s }

type CreateTodoRequest struct {
	Name    string  `json:"name" binding:"required,min=1,max=120"`
	DueDate DueDate `json:"dueDate"` // optional: "2026-02-19" or RFC3339
}

type UpdateTodoRequest struct {
	Name    *string  `json:"name" binding:"omitempty,min=1,max=120"`
	DueDate *DueDate `json:"dueDate"` // nil = leave unchanged
	Done    *bool    `json:"done"`
	// Version, when sent, must match the stored version or the update is rejected.
	Version *int64 `json:"version" binding:"omitempty,min=1"`
}

// Patch converts the request into a domain patch.
func (r UpdateTodoRequest) Patch() dom.TodoPatch {
	p := dom.TodoPatch{Name: r.Name, Done: r.Done, ExpectedVersion: r.Version}
	if r.DueDate != nil {
		s := r.DueDate.String()
		p.DueDate = &s
	}
	return p
}

type TodoResponse struct {
	TodoID        string    `json:"todoId"`
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	DueDate       string    `json:"dueDate"`
	Done          bool      `json:"done"`
	CreatedAt     time.Time `json:"createdAt"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	Version       int64     `json:"version"`
}

type TodoItemResponse struct {
	Item TodoResponse `json:"item"`
}

type ListTodosResponse struct {
	Items []TodoResponse `json:"items"`
}

type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

func NewTodoResponse(t dom.Todo) TodoResponse {
	return TodoResponse{
		TodoID:        t.TodoID,
		UserID:        t.UserID,
		Name:          t.Name,
		DueDate:       t.DueDate,
		Done:          t.Done,
		CreatedAt:     t.CreatedAt,
		AttachmentURL: t.AttachmentURL,
		Version:       t.Version,
	}
}

func NewTodoResponses(list []dom.Todo) []TodoResponse {
	out := make([]TodoResponse, len(list))
	for i := range list {
		out[i] = NewTodoResponse(list[i])
	}
	return out
}
