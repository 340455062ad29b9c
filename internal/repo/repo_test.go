package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	dom "todoapi/internal/domain"
	"todoapi/internal/migrations"

	qt "github.com/frankban/quicktest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type backend struct {
	todos    TodoRepo
	comments CommentRepo
	clock    *testclock.Clock
}

type backendFactory func(t *testing.T) backend

func newSQLiteBackend(t *testing.T) backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "todos.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Up(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clk := testclock.NewClock(t0.Add(time.Hour))
	return backend{todos: NewSQLiteTodoRepo(db), comments: NewSQLiteCommentRepo(db, clk), clock: clk}
}

func newPGBackend(t *testing.T) backend {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pg connect: %v", err)
	}
	t.Cleanup(pool.Close)
	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Up(ctx, db, migrations.Postgres); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE todos, todo_comments`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	clk := testclock.NewClock(t0.Add(time.Hour))
	return backend{todos: NewPGTodoRepo(pool), comments: NewPGCommentRepo(pool, clk), clock: clk}
}

var backends = map[string]backendFactory{
	"sqlite":   newSQLiteBackend,
	"postgres": newPGBackend,
}

func forEachBackend(t *testing.T, fn func(c *qt.C, b backend)) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			fn(qt.New(t), factory(t))
		})
	}
}

func newTodo(userID, todoID string, createdAt time.Time) dom.Todo {
	return dom.Todo{
		UserID:    userID,
		TodoID:    todoID,
		Name:      "buy milk",
		DueDate:   "2024-01-01",
		CreatedAt: createdAt,
	}
}

func ptr[T any](v T) *T { return &v }

func TestTodoCreateAndGet(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		created, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)
		c.Assert(created.Version, qt.Equals, int64(1))
		c.Assert(created.Done, qt.IsFalse)

		got, err := b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, created)
		c.Assert(got.CreatedAt.Equal(t0), qt.IsTrue)

		_, err = b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(errors.Is(err, errors.AlreadyExists), qt.IsTrue, qt.Commentf("got %v", err))

		// The id is globally unique, not only per owner.
		_, err = b.todos.Create(ctx, newTodo("u2", "t1", t0))
		c.Assert(errors.Is(err, errors.AlreadyExists), qt.IsTrue, qt.Commentf("got %v", err))
	})
}

func TestTodoGetScopedByOwner(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)

		_, err = b.todos.GetByID(ctx, "u2", "t1")
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
		_, err = b.todos.GetByID(ctx, "u1", "missing")
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
	})
}

func TestTodoListByUser(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c"} {
			_, err := b.todos.Create(ctx, newTodo("u1", id, t0.Add(time.Duration(i)*time.Minute)))
			c.Assert(err, qt.IsNil)
		}
		_, err := b.todos.Create(ctx, newTodo("u2", "d", t0))
		c.Assert(err, qt.IsNil)

		list, err := b.todos.ListByUser(ctx, "u1")
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 3)
		for _, item := range list {
			c.Assert(item.UserID, qt.Equals, "u1")
		}
		c.Assert(list[0].TodoID, qt.Equals, "c")

		empty, err := b.todos.ListByUser(ctx, "nobody")
		c.Assert(err, qt.IsNil)
		c.Assert(empty, qt.HasLen, 0)
	})
}

func TestTodoUpdatePartial(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)
		c.Assert(b.todos.SetAttachmentURL(ctx, "u1", "t1", "https://bucket/t1"), qt.IsNil)

		updated, err := b.todos.Update(ctx, "u1", "t1", dom.TodoPatch{Done: ptr(true)})
		c.Assert(err, qt.IsNil)
		c.Assert(updated.Done, qt.IsTrue)
		c.Assert(updated.Name, qt.Equals, "buy milk")
		c.Assert(updated.DueDate, qt.Equals, "2024-01-01")
		c.Assert(updated.TodoID, qt.Equals, "t1")
		c.Assert(updated.UserID, qt.Equals, "u1")
		c.Assert(updated.AttachmentURL, qt.Equals, "https://bucket/t1")
		c.Assert(updated.CreatedAt.Equal(t0), qt.IsTrue)
		c.Assert(updated.Version, qt.Equals, int64(3))

		updated, err = b.todos.Update(ctx, "u1", "t1", dom.TodoPatch{Name: ptr("buy oat milk"), DueDate: ptr("2024-02-01")})
		c.Assert(err, qt.IsNil)
		c.Assert(updated.Name, qt.Equals, "buy oat milk")
		c.Assert(updated.DueDate, qt.Equals, "2024-02-01")
		c.Assert(updated.Done, qt.IsTrue)
	})
}

func TestTodoUpdateNotFound(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)

		_, err = b.todos.Update(ctx, "u2", "t1", dom.TodoPatch{Done: ptr(true)})
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
		_, err = b.todos.Update(ctx, "u1", "missing", dom.TodoPatch{Done: ptr(true), ExpectedVersion: ptr(int64(1))})
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

		got, err := b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(err, qt.IsNil)
		c.Assert(got.Done, qt.IsFalse)
	})
}

func TestTodoUpdateVersionCheck(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)

		updated, err := b.todos.Update(ctx, "u1", "t1", dom.TodoPatch{Name: ptr("first"), ExpectedVersion: ptr(int64(1))})
		c.Assert(err, qt.IsNil)
		c.Assert(updated.Version, qt.Equals, int64(2))

		_, err = b.todos.Update(ctx, "u1", "t1", dom.TodoPatch{Name: ptr("stale"), ExpectedVersion: ptr(int64(1))})
		c.Assert(errors.Is(err, dom.ErrVersionConflict), qt.IsTrue, qt.Commentf("got %v", err))

		got, err := b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(err, qt.IsNil)
		c.Assert(got.Name, qt.Equals, "first")
	})
}

func TestTodoDeleteIdempotent(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)

		c.Assert(b.todos.Delete(ctx, "u2", "t1"), qt.IsNil)
		_, err = b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(err, qt.IsNil)

		c.Assert(b.todos.Delete(ctx, "u1", "t1"), qt.IsNil)
		_, err = b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
		c.Assert(b.todos.Delete(ctx, "u1", "t1"), qt.IsNil)
	})
}

func TestTodoSetAttachmentURL(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		_, err := b.todos.Create(ctx, newTodo("u1", "t1", t0))
		c.Assert(err, qt.IsNil)

		c.Assert(b.todos.SetAttachmentURL(ctx, "u1", "t1", "https://bucket/first"), qt.IsNil)
		c.Assert(b.todos.SetAttachmentURL(ctx, "u1", "t1", "https://bucket/second"), qt.IsNil)
		got, err := b.todos.GetByID(ctx, "u1", "t1")
		c.Assert(err, qt.IsNil)
		c.Assert(got.AttachmentURL, qt.Equals, "https://bucket/second")

		err = b.todos.SetAttachmentURL(ctx, "u2", "t1", "https://bucket/foreign")
		c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
	})
}

func addComments(c *qt.C, b backend, todoID string, n int) []dom.Comment {
	out := make([]dom.Comment, 0, n)
	for i := 0; i < n; i++ {
		cm, err := b.comments.Add(context.Background(), dom.Comment{
			TodoID:    todoID,
			CommentID: todoID + "-c" + string(rune('a'+i)),
			Comment:   "note",
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		})
		c.Assert(err, qt.IsNil)
		out = append(out, cm)
	}
	return out
}

func TestCommentListNewestFirst(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		added := addComments(c, b, "t1", 3)
		addComments(c, b, "t2", 1)

		list, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{})
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 3)
		c.Assert(list[0].CommentID, qt.Equals, added[2].CommentID)
		c.Assert(list[2].CommentID, qt.Equals, added[0].CommentID)
		for i := 1; i < len(list); i++ {
			c.Assert(list[i].CreatedAt.Before(list[i-1].CreatedAt), qt.IsTrue)
		}
		for _, cm := range list {
			c.Assert(cm.TodoID, qt.Equals, "t1")
		}
	})
}

func TestCommentListDefaultsToNow(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		addComments(c, b, "t1", 2)
		_, err := b.comments.Add(ctx, dom.Comment{
			TodoID: "t1", CommentID: "future", Comment: "later", CreatedAt: b.clock.Now().Add(time.Minute),
		})
		c.Assert(err, qt.IsNil)

		list, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{})
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 2)

		b.clock.Advance(2 * time.Minute)
		list, err = b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{})
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 3)
		c.Assert(list[0].CommentID, qt.Equals, "future")
	})
}

func TestCommentCursorPagination(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		addComments(c, b, "t1", 5)

		seen := map[string]bool{}
		var cursor time.Time
		pages := 0
		for {
			page, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{Before: cursor, Limit: 2})
			c.Assert(err, qt.IsNil)
			if len(page) == 0 {
				break
			}
			pages++
			for _, cm := range page {
				c.Assert(seen[cm.CommentID], qt.IsFalse, qt.Commentf("duplicate %s", cm.CommentID))
				seen[cm.CommentID] = true
				if !cursor.IsZero() {
					c.Assert(cm.CreatedAt.Before(cursor), qt.IsTrue)
				}
			}
			cursor = page[len(page)-1].CreatedAt
		}
		c.Assert(pages, qt.Equals, 3)
		c.Assert(seen, qt.HasLen, 5)
	})
}

func TestCommentAddDuplicateAndPurge(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		added := addComments(c, b, "t1", 2)
		addComments(c, b, "t2", 1)

		_, err := b.comments.Add(ctx, added[0])
		c.Assert(errors.Is(err, errors.AlreadyExists), qt.IsTrue)

		n, err := b.comments.DeleteByTodo(ctx, "t1")
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, int64(2))

		list, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{})
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 0)
		list, err = b.comments.ListByTodo(ctx, "t2", dom.CommentQuery{})
		c.Assert(err, qt.IsNil)
		c.Assert(list, qt.HasLen, 1)
	})
}

func TestCommentCursorSplitsSameInstant(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		for _, id := range []string{"c-a", "c-b", "c-c"} {
			_, err := b.comments.Add(ctx, dom.Comment{TodoID: "t1", CommentID: id, Comment: "same", CreatedAt: t0})
			c.Assert(err, qt.IsNil)
		}

		var got []string
		q := dom.CommentQuery{Limit: 1}
		for {
			page, err := b.comments.ListByTodo(ctx, "t1", q)
			c.Assert(err, qt.IsNil)
			if len(page) == 0 {
				break
			}
			got = append(got, page[0].CommentID)
			q.Before, q.BeforeID = page[0].CreatedAt, page[0].CommentID
		}
		c.Assert(got, qt.DeepEquals, []string{"c-c", "c-b", "c-a"})

		// Without an id the whole instant is excluded.
		page, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{Before: t0})
		c.Assert(err, qt.IsNil)
		c.Assert(page, qt.HasLen, 0)
	})
}

func TestCommentCursorFinerThanStorage(t *testing.T) {
	forEachBackend(t, func(c *qt.C, b backend) {
		ctx := context.Background()
		at := t0.Add(time.Second)
		_, err := b.comments.Add(ctx, dom.Comment{TodoID: "t1", CommentID: "c1", Comment: "older", CreatedAt: at})
		c.Assert(err, qt.IsNil)
		_, err = b.comments.Add(ctx, dom.Comment{TodoID: "t1", CommentID: "c2", Comment: "newer", CreatedAt: at.Add(time.Microsecond)})
		c.Assert(err, qt.IsNil)

		page, err := b.comments.ListByTodo(ctx, "t1", dom.CommentQuery{Before: at.Add(500 * time.Nanosecond), BeforeID: "zzz"})
		c.Assert(err, qt.IsNil)
		c.Assert(page, qt.HasLen, 1)
		c.Assert(page[0].CommentID, qt.Equals, "c1")
	})
}
