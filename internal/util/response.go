package util

import (
	"corptrain_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
	)
	InternalServerError(c)
}

// HandleServiceError 将业务错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrExerciseNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrAttemptNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAttemptAlreadyTerminal),
		errors.Is(err, ErrItemAlreadyAnswered),
		errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrExerciseTypeLocked):
		Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidAnswerShape),
		errors.Is(err, ErrUnknownExerciseType),
		errors.Is(err, ErrInvalidExercise):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Error(c, http.StatusForbidden, err.Error())
	default:
		LogInternalError(c, err)
	}
}
