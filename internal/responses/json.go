package responses

import (
	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	// Line is the 1-based source line of a parse error, when known.
	Line int `json:"line,omitempty"`
}

func Success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func Fail(c *gin.Context, statusCode int, err error, message string) {
	FailAt(c, statusCode, err, message, 0)
}

// FailAt is Fail with the offending source line attached.
func FailAt(c *gin.Context, statusCode int, err error, message string, line int) {
	resp := APIResponse{
		Status:  "error",
		Message: message,
		Line:    line,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusCode, resp)
}
