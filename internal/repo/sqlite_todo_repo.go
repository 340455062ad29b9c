package repo

import (
	"context"
	"database/sql"

	dom "todoapi/internal/domain"
	"todoapi/internal/utils"

	"github.com/juju/errors"
)

// SQLiteTodoRepo implements TodoRepo on a single SQLite file.
type SQLiteTodoRepo struct {
	db *sql.DB
}

// NewSQLiteTodoRepo returns a new SQLiteTodoRepo.
func NewSQLiteTodoRepo(db *sql.DB) *SQLiteTodoRepo {
	return &SQLiteTodoRepo{db: db}
}

func (r *SQLiteTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	if t.Version == 0 {
		t.Version = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todos (`+todoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.TodoID, t.Name, t.DueDate, t.Done, formatSQLiteTime(t.CreatedAt), t.AttachmentURL, t.Version,
	)
	if err != nil {
		if utils.IsSQLiteUniqueViolation(err) {
			return dom.Todo{}, errors.AlreadyExistsf("todo %q", t.TodoID)
		}
		return dom.Todo{}, errors.Annotatef(err, "insert todo %q", t.TodoID)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (r *SQLiteTodoRepo) GetByID(ctx context.Context, userID, todoID string) (dom.Todo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = ? AND todo_id = ?`, userID, todoID)
	t, err := scanSQLiteTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return dom.Todo{}, todoNotFound(todoID)
	}
	if err != nil {
		return dom.Todo{}, errors.Annotatef(err, "get todo %q", todoID)
	}
	return t, nil
}

func (r *SQLiteTodoRepo) ListByUser(ctx context.Context, userID string) ([]dom.Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos WHERE user_id = ? ORDER BY created_at DESC, todo_id`, userID)
	if err != nil {
		return nil, errors.Annotatef(err, "list todos")
	}
	defer rows.Close()
	list := []dom.Todo{}
	for rows.Next() {
		t, err := scanSQLiteTodo(rows)
		if err != nil {
			return nil, errors.Annotatef(err, "scan todo")
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *SQLiteTodoRepo) Update(ctx context.Context, userID, todoID string, patch dom.TodoPatch) (dom.Todo, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE todos SET
			name = COALESCE(?, name),
			due_date = COALESCE(?, due_date),
			done = COALESCE(?, done),
			version = version + 1
		WHERE user_id = ? AND todo_id = ? AND (? IS NULL OR version = ?)
		RETURNING `+todoColumns,
		patch.Name, patch.DueDate, patch.Done,
		userID, todoID, patch.ExpectedVersion, patch.ExpectedVersion,
	)
	t, err := scanSQLiteTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		if patch.ExpectedVersion == nil {
			return dom.Todo{}, todoNotFound(todoID)
		}
		if _, err := r.GetByID(ctx, userID, todoID); err != nil {
			return dom.Todo{}, err
		}
		return dom.Todo{}, versionConflict(todoID, *patch.ExpectedVersion)
	}
	if err != nil {
		return dom.Todo{}, errors.Annotatef(err, "update todo %q", todoID)
	}
	return t, nil
}

func (r *SQLiteTodoRepo) Delete(ctx context.Context, userID, todoID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE user_id = ? AND todo_id = ?`, userID, todoID)
	if err != nil {
		return errors.Annotatef(err, "delete todo %q", todoID)
	}
	return nil
}

func (r *SQLiteTodoRepo) SetAttachmentURL(ctx context.Context, userID, todoID, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE todos SET attachment_url = ?, version = version + 1
		WHERE user_id = ? AND todo_id = ?`, ref, userID, todoID)
	if err != nil {
		return errors.Annotatef(err, "set attachment for todo %q", todoID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Annotatef(err, "set attachment for todo %q", todoID)
	}
	if n == 0 {
		return todoNotFound(todoID)
	}
	return nil
}

func scanSQLiteTodo(row scanner) (dom.Todo, error) {
	var (
		t         dom.Todo
		createdAt string
	)
	if err := row.Scan(&t.UserID, &t.TodoID, &t.Name, &t.DueDate, &t.Done,
		&createdAt, &t.AttachmentURL, &t.Version); err != nil {
		return dom.Todo{}, err
	}
	var err error
	t.CreatedAt, err = parseSQLiteTime(createdAt)
	return t, err
}
