package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	dom "todoapi/internal/domain"

	"github.com/juju/errors"
)

// maxCommentPage caps a single comment page regardless of what the caller asks for.
const maxCommentPage = 100

// CommentReadPolicy decides who may list a todo's comments.
type CommentReadPolicy string

const (
	// CommentsOwnerOnly requires the reader to own the todo, as add does.
	CommentsOwnerOnly CommentReadPolicy = "owner"
	// CommentsPublic lets any authenticated caller read by todo id.
	CommentsPublic CommentReadPolicy = "public"
)

// ParseCommentReadPolicy validates a configured policy name.
func ParseCommentReadPolicy(s string) (CommentReadPolicy, error) {
	switch p := CommentReadPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CommentsOwnerOnly, CommentsPublic:
		return p, nil
	case "":
		return CommentsOwnerOnly, nil
	default:
		return "", fmt.Errorf("unknown comment read policy %q", s)
	}
}

// AddCommentInput is the caller-supplied part of a new comment.
type AddCommentInput struct {
	Comment string
}

// CommentPage selects a page of comments. A zero Before starts from now.
// Passing the CreatedAt and CommentID of the last comment of a page yields
// the next one; comments sharing a timestamp are split by CommentID, so a
// page boundary never skips one. With an empty BeforeID every comment at
// Before is left out.
type CommentPage struct {
	Before   time.Time
	BeforeID string
	Limit    int
}

// errTodoNotOwned is the validation failure for comment operations on a
// todo that does not exist or belongs to someone else.
func errTodoNotOwned() error {
	return errors.NewNotValid(nil, "todo not found or not owned by caller")
}

// checkOwner maps a missing todo to a validation failure.
func (s *TodoService) checkOwner(ctx context.Context, userID, todoID string) error {
	if _, err := s.todos.GetByID(ctx, userID, todoID); err != nil {
		if errors.Is(err, errors.NotFound) {
			return errTodoNotOwned()
		}
		return err
	}
	return nil
}

// AddComment appends a comment to a todo the caller owns. Nothing is
// written when the check fails.
func (s *TodoService) AddComment(ctx context.Context, userID, todoID string, in AddCommentInput) (dom.Comment, error) {
	text := strings.TrimSpace(in.Comment)
	if text == "" {
		return dom.Comment{}, errors.NotValidf("empty comment")
	}
	if err := s.checkOwner(ctx, userID, todoID); err != nil {
		return dom.Comment{}, err
	}
	c, err := s.comments.Add(ctx, dom.Comment{
		TodoID:    todoID,
		CommentID: s.newID(),
		Comment:   text,
		CreatedAt: s.now(),
	})
	if err != nil {
		return dom.Comment{}, err
	}
	s.log.InfoContext(ctx, "comment added", "user_id", userID, "todo_id", todoID, "comment_id", c.CommentID)
	s.metrics.CommentAdded()
	return c, nil
}

// ListComments returns a todo's comments newest first. Under
// CommentsOwnerOnly the caller must own the todo.
func (s *TodoService) ListComments(ctx context.Context, userID, todoID string, page CommentPage) ([]dom.Comment, error) {
	if s.readPolicy == CommentsOwnerOnly {
		if err := s.checkOwner(ctx, userID, todoID); err != nil {
			return nil, err
		}
	}
	limit := page.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > maxCommentPage {
		limit = maxCommentPage
	}
	list, err := s.comments.ListByTodo(ctx, todoID, dom.CommentQuery{
		Before:   page.Before,
		BeforeID: page.BeforeID,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "comments listed", "todo_id", todoID, "count", len(list))
	return list, nil
}

// ReadPolicy reports the comment read policy in force.
func (s *TodoService) ReadPolicy() CommentReadPolicy {
	return s.readPolicy
}
