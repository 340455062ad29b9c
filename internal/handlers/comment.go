package handlers

import (
	"net/http"

	"todoapi/internal/auth"
	"todoapi/internal/dto"
	"todoapi/internal/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	svc *service.TodoService
	// pageSize is echoed back to decide whether a page was full.
	pageSize int
}

func NewCommentHandler(svc *service.TodoService, pageSize int) *CommentHandler {
	return &CommentHandler{svc: svc, pageSize: pageSize}
}

// Add godoc
// @Summary      Comment on a todo
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        todoId  path      string                 true  "Todo ID"
// @Param        body    body      dto.AddCommentRequest  true  "Comment"
// @Success      201     {object}  dto.NewCommentResponse
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /todos/{todoId}/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cm, err := h.svc.AddComment(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId"),
		service.AddCommentInput{Comment: req.Comment})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewCommentResponse{NewComment: dto.CommentToResponse(cm)})
}

// List godoc
// @Summary      List a todo's comments, newest first
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        todoId  path      string  true   "Todo ID"
// @Param        before  query     string  false  "Cursor: nextCursor of the previous page, or an RFC3339 createdAt (exclusive)"
// @Param        limit   query     int     false  "Page size (max 100)"
// @Success      200     {object}  dto.ListCommentsResponse
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /todos/{todoId}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	var q dto.ListCommentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	before, beforeID, err := q.Cursor()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
		return
	}
	list, err := h.svc.ListComments(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId"),
		service.CommentPage{Before: before, BeforeID: beforeID, Limit: q.Limit})
	if err != nil {
		writeError(c, err)
		return
	}
	limit := q.Limit
	if limit <= 0 {
		limit = h.pageSize
	}
	c.JSON(http.StatusOK, dto.NewListCommentsResponse(list, limit))
}
