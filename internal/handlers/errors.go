package handlers

import (
	"net/http"

	dom "todoapi/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
)

// writeError maps service errors onto status codes. Unknown errors are
// logged by the request logger and reported without detail.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, errors.NotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errors.NotValid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, dom.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
