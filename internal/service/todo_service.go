package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"todoapi/internal/attachment"
	"todoapi/internal/cache"
	dom "todoapi/internal/domain"
	"todoapi/internal/metrics"
	"todoapi/internal/repo"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/singleflight"
)

// UploadIssuer grants time-bounded write access to a todo's attachment slot.
type UploadIssuer interface {
	IssueUploadURL(ctx context.Context, todoID string) (attachment.Upload, error)
}

// Config holds the collaborators of a TodoService. Todos, Comments and
// Issuer are required; everything else has a default.
type Config struct {
	Todos    repo.TodoRepo
	Comments repo.CommentRepo
	Issuer   UploadIssuer

	// Cache is optional; nil disables list caching.
	Cache   *cache.TodoCache
	Metrics *metrics.Collector
	Clock   clock.Clock
	NewID   func() string
	Logger  *slog.Logger

	CommentReadPolicy CommentReadPolicy
	// CommentPageSize applies when a caller does not ask for a limit. Zero means unbounded.
	CommentPageSize int
}

type TodoService struct {
	todos    repo.TodoRepo
	comments repo.CommentRepo
	issuer   UploadIssuer
	cache    *cache.TodoCache
	metrics  *metrics.Collector
	clock    clock.Clock
	newID    func() string
	log      *slog.Logger
	sf       singleflight.Group

	readPolicy CommentReadPolicy
	pageSize   int
}

// CreateTodoInput is the caller-supplied part of a new todo.
type CreateTodoInput struct {
	Name    string
	DueDate string
}

// NewTodoService creates a TodoService from cfg.
func NewTodoService(cfg Config) (*TodoService, error) {
	if cfg.Todos == nil || cfg.Comments == nil {
		return nil, errors.NotValidf("missing store")
	}
	if cfg.Issuer == nil {
		return nil, errors.NotValidf("missing attachment issuer")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CommentReadPolicy == "" {
		cfg.CommentReadPolicy = CommentsOwnerOnly
	}
	return &TodoService{
		todos:      cfg.Todos,
		comments:   cfg.Comments,
		issuer:     cfg.Issuer,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		newID:      cfg.NewID,
		log:        cfg.Logger.With("component", "todo_service"),
		readPolicy: cfg.CommentReadPolicy,
		pageSize:   cfg.CommentPageSize,
	}, nil
}

// now is the store timestamp: UTC at the precision both SQL backends keep.
func (s *TodoService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func (s *TodoService) Create(ctx context.Context, userID string, in CreateTodoInput) (dom.Todo, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return dom.Todo{}, errors.NotValidf("empty todo name")
	}
	t, err := s.todos.Create(ctx, dom.Todo{
		TodoID:    s.newID(),
		UserID:    userID,
		Name:      name,
		DueDate:   strings.TrimSpace(in.DueDate),
		Done:      false,
		CreatedAt: s.now(),
		Version:   1,
	})
	if err != nil {
		return dom.Todo{}, err
	}
	s.log.InfoContext(ctx, "todo created", "user_id", userID, "todo_id", t.TodoID)
	s.metrics.TodoCreated()
	s.invalidateCache(ctx, userID)
	return t, nil
}

func (s *TodoService) List(ctx context.Context, userID string) ([]dom.Todo, error) {
	if s.cache != nil {
		key := "list:" + userID
		v, err, _ := s.sf.Do(key, func() (interface{}, error) {
			if list, err := s.cache.GetList(ctx, userID); err == nil && list != nil {
				s.metrics.ListCacheResult(true)
				return list, nil
			} else if err != nil {
				s.log.WarnContext(ctx, "todo cache read failed", "user_id", userID, "err", err)
			}
			s.metrics.ListCacheResult(false)
			list, err := s.todos.ListByUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			if err := s.cache.SetList(ctx, userID, list); err != nil {
				s.log.WarnContext(ctx, "todo cache write failed", "user_id", userID, "err", err)
			}
			return list, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dom.Todo), nil
	}
	return s.todos.ListByUser(ctx, userID)
}

// GetByID returns the todo when it exists and belongs to userID.
func (s *TodoService) GetByID(ctx context.Context, userID, todoID string) (dom.Todo, error) {
	return s.todos.GetByID(ctx, userID, todoID)
}

// Update applies patch to name, due date and done. It never touches the
// identifiers, creation time or attachment reference.
func (s *TodoService) Update(ctx context.Context, userID, todoID string, patch dom.TodoPatch) (dom.Todo, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return dom.Todo{}, errors.NotValidf("empty todo name")
		}
		patch.Name = &name
	}
	if patch.DueDate != nil {
		due := strings.TrimSpace(*patch.DueDate)
		patch.DueDate = &due
	}
	if patch.Empty() && patch.ExpectedVersion == nil {
		return s.todos.GetByID(ctx, userID, todoID)
	}
	t, err := s.todos.Update(ctx, userID, todoID, patch)
	if err != nil {
		return dom.Todo{}, err
	}
	s.log.InfoContext(ctx, "todo updated", "user_id", userID, "todo_id", todoID, "version", t.Version)
	s.invalidateCache(ctx, userID)
	return t, nil
}

// Delete purges the todo's comments, then removes the todo. Deleting a
// missing or foreign todo is not an error and purges nothing. The todo row
// goes last so a failed call leaves it in place and a retry redoes both.
func (s *TodoService) Delete(ctx context.Context, userID, todoID string) error {
	if _, err := s.todos.GetByID(ctx, userID, todoID); err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil
		}
		return err
	}
	purged, err := s.comments.DeleteByTodo(ctx, todoID)
	if err != nil {
		return errors.Annotatef(err, "purge comments of todo %q", todoID)
	}
	if err := s.todos.Delete(ctx, userID, todoID); err != nil {
		return errors.Annotatef(err, "todo %q comments purged", todoID)
	}
	s.log.InfoContext(ctx, "todo deleted", "user_id", userID, "todo_id", todoID, "comments_purged", purged)
	s.invalidateCache(ctx, userID)
	return nil
}

// RequestAttachmentUpload checks the todo first, so no capability is ever
// granted for a missing item, then issues the URL and records the reference.
func (s *TodoService) RequestAttachmentUpload(ctx context.Context, userID, todoID string) (string, error) {
	if _, err := s.todos.GetByID(ctx, userID, todoID); err != nil {
		return "", err
	}
	up, err := s.issuer.IssueUploadURL(ctx, todoID)
	if err != nil {
		return "", err
	}
	if err := s.todos.SetAttachmentURL(ctx, userID, todoID, up.Reference); err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "attachment upload url issued",
		"user_id", userID, "todo_id", todoID, "key", up.Key, "expires_at", up.ExpiresAt)
	s.metrics.UploadURLIssued()
	s.invalidateCache(ctx, userID)
	return up.URL, nil
}

func (s *TodoService) invalidateCache(ctx context.Context, userID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.log.WarnContext(ctx, "todo cache invalidation failed", "user_id", userID, "err", err)
		}
	}
}
