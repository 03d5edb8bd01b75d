package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes by status.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          CodeBadRequest,
	http.StatusUnauthorized:        CodeUnauthorized,
	http.StatusForbidden:           CodeForbidden,
	http.StatusNotFound:            CodeNotFound,
	http.StatusConflict:            CodeConflict,
	http.StatusInternalServerError: CodeInternal,
}

// Success sends a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Error sends an error response and stops the handler chain. The message is
// also recorded on the context so the request log carries it.
func Error(c *gin.Context, statusCode int, code, message string) {
	_ = c.Error(&ginError{status: statusCode, message: message})
	c.AbortWithStatusJSON(statusCode, Response{
		Error: &ErrorInfo{Code: code, Message: message},
	})
}

// Status sends an error response whose code is derived from statusCode.
func Status(c *gin.Context, statusCode int, message string) {
	code, ok := statusCodes[statusCode]
	if !ok {
		code = CodeInternal
	}
	Error(c, statusCode, code, message)
}

func BadRequest(c *gin.Context, message string)    { Status(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string)  { Status(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string)     { Status(c, http.StatusForbidden, message) }
func NotFound(c *gin.Context, message string)      { Status(c, http.StatusNotFound, message) }
func Conflict(c *gin.Context, message string)      { Status(c, http.StatusConflict, message) }
func InternalError(c *gin.Context, message string) { Status(c, http.StatusInternalServerError, message) }

type ginError struct {
	status  int
	message string
}

func (e *ginError) Error() string {
	return http.StatusText(e.status) + ": " + e.message
}
