package domain

import "time"

// Comment is an append-only annotation on exactly one todo.
type Comment struct {
	TodoID    string    `json:"todoId"`
	CommentID string    `json:"commentId"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentQuery bounds a page of comments. Rows are ordered by
// (CreatedAt, CommentID) descending and only rows strictly below the
// (Before, BeforeID) position are returned. An empty BeforeID excludes every
// row at Before; a zero Before means "now".
type CommentQuery struct {
	Before   time.Time
	BeforeID string
	Limit    int
}
