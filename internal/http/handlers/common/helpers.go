package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/http/middleware"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// ErrTradeIDMissing возвращается, если маршрут зарегистрирован без TradeIDValidator.
var ErrTradeIDMissing = errors.New("id сделки не найден в контексте")

// TradeID извлекает id сделки, положенный middleware.TradeIDValidator.
func TradeID(c *gin.Context) (int64, error) {
	raw, exists := c.Get(middleware.ContextTradeIDKey)
	if !exists {
		return 0, ErrTradeIDMissing
	}

	id, ok := raw.(int64)
	if !ok {
		return 0, ErrTradeIDMissing
	}
	return id, nil
}

// Fail передаёт ошибку в middleware.ErrorHandler, который выберет статус и текст.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondError отправляет ошибку в стандартном формате.
func RespondError(c *gin.Context, statusCode int, code apperror.ErrorCode, message string) {
	c.AbortWithStatusJSON(statusCode, middleware.ErrorResponse{Error: message, Code: code})
}

// RespondBadRequest отправляет 400 Bad Request.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, apperror.ErrCodeValidation, message)
}

// RespondInternalError отправляет 500 Internal Server Error.
func RespondInternalError(c *gin.Context, message string) {
	if message == "" {
		message = "внутренняя ошибка сервера"
	}
	RespondError(c, http.StatusInternalServerError, apperror.ErrCodeInternal, message)
}
