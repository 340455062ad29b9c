package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"todoapi/internal/attachment"
	"todoapi/internal/auth"
	"todoapi/internal/dto"
	"todoapi/internal/migrations"
	"todoapi/internal/repo"
	"todoapi/internal/service"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock/testclock"
)

var signingKey = []byte("handlers-test")

type server struct {
	router *gin.Engine
	clock  *testclock.Clock
}

func newServer(t *testing.T, pageSize int) server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "todos.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Up(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clk := testclock.NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	presigner := s3.NewPresignClient(s3.New(s3.Options{
		Region:      "eu-west-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}))
	iss, err := attachment.NewIssuer(presigner, "todo-attachments", "", 0, clk)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	svc, err := service.NewTodoService(service.Config{
		Todos:           repo.NewSQLiteTodoRepo(db),
		Comments:        repo.NewSQLiteCommentRepo(db, clk),
		Issuer:          iss,
		Clock:           clk,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		CommentPageSize: pageSize,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	r := gin.New()
	api := r.Group("/api/v1", auth.RequireCaller())
	todos := NewTodoHandler(svc)
	comments := NewCommentHandler(svc, pageSize)
	api.POST("/todos", todos.Create)
	api.GET("/todos", todos.List)
	api.GET("/todos/:todoId", todos.GetByID)
	api.PATCH("/todos/:todoId", todos.Update)
	api.DELETE("/todos/:todoId", todos.Delete)
	api.POST("/todos/:todoId/attachment", todos.RequestUpload)
	api.POST("/todos/:todoId/comments", comments.Add)
	api.GET("/todos/:todoId/comments", comments.List)
	return server{router: r, clock: clk}
}

func (s server) do(c *qt.C, userID, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		tok, err := auth.DevToken(userID, signingKey, time.Hour, time.Now())
		c.Assert(err, qt.IsNil)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](c *qt.C, w *httptest.ResponseRecorder) T {
	var v T
	c.Assert(json.Unmarshal(w.Body.Bytes(), &v), qt.IsNil, qt.Commentf("body %s", w.Body.String()))
	return v
}

func TestUnauthenticated(t *testing.T) {
	c := qt.New(t)
	s := newServer(t, 20)
	w := s.do(c, "", http.MethodGet, "/api/v1/todos", nil)
	c.Assert(w.Code, qt.Equals, http.StatusUnauthorized)
}

func TestTodoLifecycle(t *testing.T) {
	c := qt.New(t)
	s := newServer(t, 20)

	w := s.do(c, "alice", http.MethodPost, "/api/v1/todos", map[string]any{"name": "Buy milk", "dueDate": "2024-03-10"})
	c.Assert(w.Code, qt.Equals, http.StatusCreated)
	created := decode[dto.TodoItemResponse](c, w).Item
	c.Assert(created.UserID, qt.Equals, "alice")
	c.Assert(created.Name, qt.Equals, "Buy milk")
	c.Assert(created.DueDate, qt.Equals, "2024-03-10")
	c.Assert(created.Done, qt.IsFalse)
	c.Assert(created.Version, qt.Equals, int64(1))
	path := "/api/v1/todos/" + created.TodoID

	w = s.do(c, "alice", http.MethodGet, "/api/v1/todos", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(decode[dto.ListTodosResponse](c, w).Items, qt.HasLen, 1)

	w = s.do(c, "bob", http.MethodGet, "/api/v1/todos", nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(decode[dto.ListTodosResponse](c, w).Items, qt.HasLen, 0)

	w = s.do(c, "bob", http.MethodGet, path, nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)

	w = s.do(c, "alice", http.MethodPatch, path, map[string]any{"done": true, "version": 1})
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	updated := decode[dto.TodoItemResponse](c, w).Item
	c.Assert(updated.Done, qt.IsTrue)
	c.Assert(updated.Name, qt.Equals, "Buy milk")
	c.Assert(updated.Version, qt.Equals, int64(2))

	w = s.do(c, "alice", http.MethodPatch, path, map[string]any{"name": "Buy oat milk", "version": 1})
	c.Assert(w.Code, qt.Equals, http.StatusConflict)

	w = s.do(c, "bob", http.MethodPatch, path, map[string]any{"done": false})
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)

	w = s.do(c, "alice", http.MethodDelete, path, nil)
	c.Assert(w.Code, qt.Equals, http.StatusNoContent)
	w = s.do(c, "alice", http.MethodDelete, path, nil)
	c.Assert(w.Code, qt.Equals, http.StatusNoContent)
	w = s.do(c, "alice", http.MethodGet, path, nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)
}

func TestCreateValidation(t *testing.T) {
	c := qt.New(t)
	s := newServer(t, 20)
	for _, body := range []map[string]any{
		{},
		{"name": ""},
		{"name": "x", "dueDate": "next tuesday"},
	} {
		w := s.do(c, "alice", http.MethodPost, "/api/v1/todos", body)
		c.Assert(w.Code, qt.Equals, http.StatusBadRequest, qt.Commentf("body %v", body))
	}
	w := s.do(c, "alice", http.MethodPost, "/api/v1/todos", map[string]any{"name": "   "})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
}

func TestRequestUpload(t *testing.T) {
	c := qt.New(t)
	s := newServer(t, 20)

	w := s.do(c, "alice", http.MethodPost, "/api/v1/todos/missing/attachment", nil)
	c.Assert(w.Code, qt.Equals, http.StatusNotFound)

	w = s.do(c, "alice", http.MethodPost, "/api/v1/todos", map[string]any{"name": "Scan receipt"})
	created := decode[dto.TodoItemResponse](c, w).Item

	w = s.do(c, "alice", http.MethodPost, "/api/v1/todos/"+created.TodoID+"/attachment", nil)
	c.Assert(w.Code, qt.Equals, http.StatusCreated)
	up := decode[dto.UploadURLResponse](c, w)
	u, err := url.Parse(up.UploadURL)
	c.Assert(err, qt.IsNil)
	c.Assert(u.Path, qt.Equals, "/"+created.TodoID)
	c.Assert(u.Query().Get("X-Amz-Expires"), qt.Equals, "300")

	w = s.do(c, "alice", http.MethodGet, "/api/v1/todos/"+created.TodoID, nil)
	item := decode[dto.TodoItemResponse](c, w).Item
	c.Assert(item.AttachmentURL, qt.Equals, "https://todo-attachments.s3.eu-west-1.amazonaws.com/"+created.TodoID)
}

func TestComments(t *testing.T) {
	c := qt.New(t)
	s := newServer(t, 2)

	w := s.do(c, "alice", http.MethodPost, "/api/v1/todos/missing/comments", map[string]any{"comment": "hi"})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	w = s.do(c, "alice", http.MethodPost, "/api/v1/todos", map[string]any{"name": "Plan trip"})
	todoID := decode[dto.TodoItemResponse](c, w).Item.TodoID
	base := "/api/v1/todos/" + todoID + "/comments"

	for _, text := range []string{"one", "two", "three"} {
		s.clock.Advance(time.Second)
		w = s.do(c, "alice", http.MethodPost, base, map[string]any{"comment": text})
		c.Assert(w.Code, qt.Equals, http.StatusCreated)
		c.Assert(decode[dto.NewCommentResponse](c, w).NewComment.Comment, qt.Equals, text)
	}
	s.clock.Advance(time.Second)

	w = s.do(c, "bob", http.MethodPost, base, map[string]any{"comment": "intruder"})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)
	w = s.do(c, "bob", http.MethodGet, base, nil)
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest)

	w = s.do(c, "alice", http.MethodGet, base, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	first := decode[dto.ListCommentsResponse](c, w)
	c.Assert(first.Comments, qt.HasLen, 2)
	c.Assert(first.Comments[0].Comment, qt.Equals, "three")
	c.Assert(first.Comments[1].Comment, qt.Equals, "two")
	c.Assert(first.NextCursor, qt.Not(qt.Equals), "")

	w = s.do(c, "alice", http.MethodGet, base+"?before="+url.QueryEscape(first.NextCursor), nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	second := decode[dto.ListCommentsResponse](c, w)
	c.Assert(second.Comments, qt.HasLen, 1)
	c.Assert(second.Comments[0].Comment, qt.Equals, "one")
	c.Assert(second.NextCursor, qt.Equals, "")

	w = s.do(c, "alice", http.MethodGet, base+"?limit=5", nil)
	c.Assert(decode[dto.ListCommentsResponse](c, w).Comments, qt.HasLen, 3)

	for _, q := range []string{"?before=yesterday", "?limit=0x", "?limit=500"} {
		w = s.do(c, "alice", http.MethodGet, base+q, nil)
		c.Assert(w.Code, qt.Equals, http.StatusBadRequest, qt.Commentf("query %s", q))
	}
}
