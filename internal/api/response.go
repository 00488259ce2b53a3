package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func failure(c *gin.Context, status int, err string) {
	c.JSON(status, Response{Success: false, Error: err})
}

func badRequest(c *gin.Context, err string) {
	failure(c, http.StatusBadRequest, err)
}

func internalError(c *gin.Context, err string) {
	failure(c, http.StatusInternalServerError, err)
}
