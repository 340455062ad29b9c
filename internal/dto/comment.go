package dto

import (
	"fmt"
	"strings"
	"time"

	dom "todoapi/internal/domain"
)

type AddCommentRequest struct {
	Comment string `json:"comment" binding:"required,min=1,max=1000"`
}

// ListCommentsQuery is bound from the query string. Before is the cursor,
// either "<createdAt>,<commentId>" as returned in nextCursor or a bare
// RFC3339 createdAt.
type ListCommentsQuery struct {
	Before string `form:"before"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Cursor parses Before. An empty value is the zero time (start from now).
func (q ListCommentsQuery) Cursor() (time.Time, string, error) {
	if q.Before == "" {
		return time.Time{}, "", nil
	}
	at, id, _ := strings.Cut(q.Before, ",")
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("before: %w", err)
	}
	return t, id, nil
}

// commentCursor is the position right after c in newest-first order.
func commentCursor(c dom.Comment) string {
	return c.CreatedAt.UTC().Format(time.RFC3339Nano) + "," + c.CommentID
}

type CommentResponse struct {
	TodoID    string    `json:"todoId"`
	CommentID string    `json:"commentId"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewCommentResponse struct {
	NewComment CommentResponse `json:"newComment"`
}

type ListCommentsResponse struct {
	Comments []CommentResponse `json:"comments"`
	// NextCursor is set when the page was full; pass it back as ?before=.
	NextCursor string `json:"nextCursor,omitempty"`
}

func CommentToResponse(c dom.Comment) CommentResponse {
	return CommentResponse{
		TodoID:    c.TodoID,
		CommentID: c.CommentID,
		Comment:   c.Comment,
		CreatedAt: c.CreatedAt,
	}
}

// NewListCommentsResponse builds a page; limit is the page size that was asked for.
func NewListCommentsResponse(list []dom.Comment, limit int) ListCommentsResponse {
	out := ListCommentsResponse{Comments: make([]CommentResponse, len(list))}
	for i := range list {
		out.Comments[i] = CommentToResponse(list[i])
	}
	if limit > 0 && len(list) == limit {
		out.NextCursor = commentCursor(list[len(list)-1])
	}
	return out
}
