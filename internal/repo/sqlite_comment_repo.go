package repo

import (
	"context"
	"database/sql"

	dom "todoapi/internal/domain"
	"todoapi/internal/utils"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// SQLiteCommentRepo implements CommentRepo on a single SQLite file.
type SQLiteCommentRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteCommentRepo returns a new SQLiteCommentRepo.
func NewSQLiteCommentRepo(db *sql.DB, clk clock.Clock) *SQLiteCommentRepo {
	return &SQLiteCommentRepo{db: db, clock: clk}
}

func (r *SQLiteCommentRepo) Add(ctx context.Context, c dom.Comment) (dom.Comment, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todo_comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?)`,
		c.TodoID, c.CommentID, c.Comment, formatSQLiteTime(c.CreatedAt),
	)
	if err != nil {
		if utils.IsSQLiteUniqueViolation(err) {
			return dom.Comment{}, errors.AlreadyExistsf("comment %q", c.CommentID)
		}
		return dom.Comment{}, errors.Annotatef(err, "insert comment on todo %q", c.TodoID)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (r *SQLiteCommentRepo) ListByTodo(ctx context.Context, todoID string, q dom.CommentQuery) ([]dom.Comment, error) {
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	bound, boundID := before(q, r.clock)
	at := formatSQLiteTime(bound)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM todo_comments
		WHERE todo_id = ?
			AND (created_at < ? OR (created_at = ? AND comment_id < ?))
		ORDER BY created_at DESC, comment_id DESC
		LIMIT ?`,
		todoID, at, at, boundID, limit,
	)
	if err != nil {
		return nil, errors.Annotatef(err, "list comments of todo %q", todoID)
	}
	defer rows.Close()
	list := []dom.Comment{}
	for rows.Next() {
		var (
			c         dom.Comment
			createdAt string
		)
		if err := rows.Scan(&c.TodoID, &c.CommentID, &c.Comment, &createdAt); err != nil {
			return nil, errors.Annotatef(err, "scan comment")
		}
		if c.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *SQLiteCommentRepo) DeleteByTodo(ctx context.Context, todoID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todo_comments WHERE todo_id = ?`, todoID)
	if err != nil {
		return 0, errors.Annotatef(err, "purge comments of todo %q", todoID)
	}
	return res.RowsAffected()
}
