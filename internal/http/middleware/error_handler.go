package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Error string             `json:"error"`
	Code  apperror.ErrorCode `json:"code"`
}

// ErrorHandler превращает ошибку, добавленную хэндлером через c.Error, в JSON ответ.
// Текст берётся из AppError: это сообщение сервера или клиентской валидации.
// Остальные ошибки маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.HTTPStatusOf(err)
		code := apperror.CodeOf(err)

		entry := logger.L().WithFields(logrus.Fields{
			"error":  err.Error(),
			"code":   code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		if status >= 500 {
			entry.Error("http: ошибка запроса")
		} else {
			entry.Warn("http: запрос отклонён")
		}

		c.JSON(status, ErrorResponse{
			Error: apperror.UserMessage(err, "внутренняя ошибка сервера"),
			Code:  code,
		})
	}
}
