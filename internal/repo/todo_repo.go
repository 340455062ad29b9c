package repo

import (
	"context"

	dom "todoapi/internal/domain"
	"todoapi/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/errors"
)

// TodoRepo owns todo records keyed by (userID, todoID). Every mutation is
// scoped by both keys so one owner cannot touch another owner's items.
type TodoRepo interface {
	Create(ctx context.Context, t dom.Todo) (dom.Todo, error)
	GetByID(ctx context.Context, userID, todoID string) (dom.Todo, error)
	ListByUser(ctx context.Context, userID string) ([]dom.Todo, error)
	Update(ctx context.Context, userID, todoID string, patch dom.TodoPatch) (dom.Todo, error)
	Delete(ctx context.Context, userID, todoID string) error
	SetAttachmentURL(ctx context.Context, userID, todoID, ref string) error
}

const todoColumns = `user_id, todo_id, name, due_date, done, created_at, attachment_url, version`

type PGTodoRepo struct {
	db *pgxpool.Pool
}

func NewPGTodoRepo(db *pgxpool.Pool) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

func (r *PGTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	query := `
		INSERT INTO todos (` + todoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + todoColumns
	if t.Version == 0 {
		t.Version = 1
	}
	out, err := scanTodo(r.db.QueryRow(ctx, query,
		t.UserID, t.TodoID, t.Name, t.DueDate, t.Done, t.CreatedAt, t.AttachmentURL, t.Version,
	))
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.Todo{}, errors.AlreadyExistsf("todo %q", t.TodoID)
		}
		return dom.Todo{}, errors.Annotatef(err, "insert todo %q", t.TodoID)
	}
	return out, nil
}

func (r *PGTodoRepo) GetByID(ctx context.Context, userID, todoID string) (dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1 AND todo_id = $2`
	t, err := scanTodo(r.db.QueryRow(ctx, query, userID, todoID))
	if errors.Is(err, pgx.ErrNoRows) {
		return dom.Todo{}, todoNotFound(todoID)
	}
	if err != nil {
		return dom.Todo{}, errors.Annotatef(err, "get todo %q", todoID)
	}
	return t, nil
}

func (r *PGTodoRepo) ListByUser(ctx context.Context, userID string) ([]dom.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos WHERE user_id = $1 ORDER BY created_at DESC, todo_id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.Annotatef(err, "list todos")
	}
	defer rows.Close()
	list := []dom.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, errors.Annotatef(err, "scan todo")
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTodoRepo) Update(ctx context.Context, userID, todoID string, patch dom.TodoPatch) (dom.Todo, error) {
	query := `
		UPDATE todos SET
			name = COALESCE($3::text, name),
			due_date = COALESCE($4::text, due_date),
			done = COALESCE($5::boolean, done),
			version = version + 1
		WHERE user_id = $1 AND todo_id = $2 AND ($6::bigint IS NULL OR version = $6::bigint)
		RETURNING ` + todoColumns
	t, err := scanTodo(r.db.QueryRow(ctx, query,
		userID, todoID, patch.Name, patch.DueDate, patch.Done, patch.ExpectedVersion,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return dom.Todo{}, r.missedUpdate(ctx, userID, todoID, patch)
	}
	if err != nil {
		return dom.Todo{}, errors.Annotatef(err, "update todo %q", todoID)
	}
	return t, nil
}

// missedUpdate tells a missing row apart from a failed version check.
func (r *PGTodoRepo) missedUpdate(ctx context.Context, userID, todoID string, patch dom.TodoPatch) error {
	if patch.ExpectedVersion == nil {
		return todoNotFound(todoID)
	}
	if _, err := r.GetByID(ctx, userID, todoID); err != nil {
		return err
	}
	return versionConflict(todoID, *patch.ExpectedVersion)
}

func (r *PGTodoRepo) Delete(ctx context.Context, userID, todoID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM todos WHERE user_id = $1 AND todo_id = $2`, userID, todoID)
	if err != nil {
		return errors.Annotatef(err, "delete todo %q", todoID)
	}
	return nil
}

func (r *PGTodoRepo) SetAttachmentURL(ctx context.Context, userID, todoID, ref string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE todos SET attachment_url = $3, version = version + 1
		WHERE user_id = $1 AND todo_id = $2`, userID, todoID, ref)
	if err != nil {
		return errors.Annotatef(err, "set attachment for todo %q", todoID)
	}
	if tag.RowsAffected() == 0 {
		return todoNotFound(todoID)
	}
	return nil
}

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (dom.Todo, error) {
	var t dom.Todo
	err := row.Scan(&t.UserID, &t.TodoID, &t.Name, &t.DueDate, &t.Done,
		&t.CreatedAt, &t.AttachmentURL, &t.Version)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func todoNotFound(todoID string) error {
	return errors.NotFoundf("todo %q", todoID)
}

func versionConflict(todoID string, expected int64) error {
	return errors.Annotatef(dom.ErrVersionConflict, "todo %q expected version %d", todoID, expected)
}
