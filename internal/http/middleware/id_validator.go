package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// ContextTradeIDKey - ключ id сделки в gin.Context.
const ContextTradeIDKey = "tradeID"

// TradeIDValidator проверяет, что параметр - положительный id сделки, и кладёт его в контекст.
// Использование: router.GET("/trades/:id", TradeIDValidator("id"), handler.Detail)
func TradeIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error: "параметр " + paramName + " обязателен",
				Code:  apperror.ErrCodeValidation,
			})
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
				Error: "параметр " + paramName + " должен быть положительным числом",
				Code:  apperror.ErrCodeValidation,
			})
			return
		}

		c.Set(ContextTradeIDKey, id)
		c.Next()
	}
}
