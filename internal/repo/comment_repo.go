package repo

import (
	"context"
	"time"

	dom "todoapi/internal/domain"
	"todoapi/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// CommentRepo owns append-only comment records. Rows are indexed by
// (todoID, createdAt) with commentID as the tiebreaker.
type CommentRepo interface {
	Add(ctx context.Context, c dom.Comment) (dom.Comment, error)
	// ListByTodo returns comments positioned strictly below the query cursor, newest first.
	ListByTodo(ctx context.Context, todoID string, q dom.CommentQuery) ([]dom.Comment, error)
	// DeleteByTodo purges every comment of a deleted todo.
	DeleteByTodo(ctx context.Context, todoID string) (int64, error)
}

const commentColumns = `todo_id, comment_id, comment, created_at`

type PGCommentRepo struct {
	db    *pgxpool.Pool
	clock clock.Clock
}

func NewPGCommentRepo(db *pgxpool.Pool, clk clock.Clock) *PGCommentRepo {
	return &PGCommentRepo{db: db, clock: clk}
}

func (r *PGCommentRepo) Add(ctx context.Context, c dom.Comment) (dom.Comment, error) {
	query := `
		INSERT INTO todo_comments (` + commentColumns + `)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + commentColumns
	out, err := scanComment(r.db.QueryRow(ctx, query, c.TodoID, c.CommentID, c.Comment, c.CreatedAt))
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.Comment{}, errors.AlreadyExistsf("comment %q", c.CommentID)
		}
		return dom.Comment{}, errors.Annotatef(err, "insert comment on todo %q", c.TodoID)
	}
	return out, nil
}

func (r *PGCommentRepo) ListByTodo(ctx context.Context, todoID string, q dom.CommentQuery) ([]dom.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM todo_comments
		WHERE todo_id = $1
			AND (created_at < $2 OR (created_at = $2 AND comment_id < $3))
		ORDER BY created_at DESC, comment_id DESC
		LIMIT $4`
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	bound, boundID := before(q, r.clock)
	rows, err := r.db.Query(ctx, query, todoID, bound, boundID, limit)
	if err != nil {
		return nil, errors.Annotatef(err, "list comments of todo %q", todoID)
	}
	defer rows.Close()
	list := []dom.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, errors.Annotatef(err, "scan comment")
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *PGCommentRepo) DeleteByTodo(ctx context.Context, todoID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM todo_comments WHERE todo_id = $1`, todoID)
	if err != nil {
		return 0, errors.Annotatef(err, "purge comments of todo %q", todoID)
	}
	return tag.RowsAffected(), nil
}

func scanComment(row scanner) (dom.Comment, error) {
	var c dom.Comment
	err := row.Scan(&c.TodoID, &c.CommentID, &c.Comment, &c.CreatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, err
}

// before resolves the exclusive upper bound of a comment page. Both stores
// keep microseconds, so a finer bound is rounded up; no stored row can sit
// at the original instant, which makes the id tiebreaker moot.
func before(q dom.CommentQuery, clk clock.Clock) (time.Time, string) {
	t, id := q.Before.UTC(), q.BeforeID
	if q.Before.IsZero() {
		t, id = clk.Now().UTC(), ""
	}
	if trunc := t.Truncate(time.Microsecond); !trunc.Equal(t) {
		return trunc.Add(time.Microsecond), ""
	}
	return t, id
}
