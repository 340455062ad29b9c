package handlers

import (
	"net/http"

	"todoapi/internal/auth"
	"todoapi/internal/dto"
	"todoapi/internal/service"

	"github.com/gin-gonic/gin"
)

type TodoHandler struct {
	svc *service.TodoService
}

func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoItemResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.svc.Create(c.Request.Context(), auth.UserIDFromContext(c), service.CreateTodoInput{
		Name:    req.Name,
		DueDate: req.DueDate.String(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TodoItemResponse{Item: dto.NewTodoResponse(t)})
}

// List godoc
// @Summary      List the caller's todos
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.ListTodosResponse
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), auth.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTodosResponse{Items: dto.NewTodoResponses(list)})
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        todoId  path      string  true  "Todo ID"
// @Success      200     {object}  dto.TodoItemResponse
// @Failure      404     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /todos/{todoId} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	t, err := h.svc.GetByID(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TodoItemResponse{Item: dto.NewTodoResponse(t)})
}

// Update godoc
// @Summary      Update a todo
// @Description  Changes name, dueDate and done. Send version to reject the update if the todo changed meanwhile.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        todoId  path      string                 true  "Todo ID"
// @Param        body    body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200     {object}  dto.TodoItemResponse
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Failure      409     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /todos/{todoId} [patch]
func (h *TodoHandler) Update(c *gin.Context) {
	var req dto.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.svc.Update(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId"), req.Patch())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TodoItemResponse{Item: dto.NewTodoResponse(t)})
}

// Delete godoc
// @Summary      Delete a todo and its comments
// @Tags         todos
// @Security     BearerAuth
// @Param        todoId  path  string  true  "Todo ID"
// @Success      204
// @Failure      500  {object}  map[string]string
// @Router       /todos/{todoId} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestUpload godoc
// @Summary      Get a presigned attachment upload URL
// @Description  The URL accepts a single PUT of the file until it expires. The todo's attachmentUrl is set to the object location.
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Param        todoId  path      string  true  "Todo ID"
// @Success      201     {object}  dto.UploadURLResponse
// @Failure      404     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /todos/{todoId}/attachment [post]
func (h *TodoHandler) RequestUpload(c *gin.Context) {
	url, err := h.svc.RequestAttachmentUpload(c.Request.Context(), auth.UserIDFromContext(c), c.Param("todoId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.UploadURLResponse{UploadURL: url})
}
