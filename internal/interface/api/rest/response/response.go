// Package response renders the single envelope every upload endpoint answers
// with: {status, message, data?, error?}.
package response

import "github.com/gin-gonic/gin"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Body{Status: StatusSuccess, Message: message, Data: data})
}

// Error renders err as a plain string; a nil err omits the field.
func Error(c *gin.Context, code int, message string, err error) {
	c.JSON(code, errorBody(message, err))
}

// Abort is Error for middleware: the remaining handlers are skipped.
func Abort(c *gin.Context, code int, message string, err error) {
	c.AbortWithStatusJSON(code, errorBody(message, err))
}

func errorBody(message string, err error) Body {
	b := Body{Status: StatusError, Message: message}
	if err != nil {
		b.Error = err.Error()
	}
	return b
}
