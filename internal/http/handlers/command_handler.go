package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/http/handlers/common"
)

// CommandHandler выполняет команды над сделкой. Успешный ответ содержит
// свежие детали сделки, если она ещё видна пользователю.
type CommandHandler struct {
	desk Desk
}

func NewCommandHandler(d Desk) *CommandHandler {
	return &CommandHandler{desk: d}
}

func (h *CommandHandler) run(c *gin.Context, command func(ctx context.Context, tradeID int64) error) {
	tradeID, err := common.TradeID(c)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := command(c.Request.Context(), tradeID); err != nil {
		common.Fail(c, err)
		return
	}

	if view, ok := h.desk.Detail(tradeID); ok {
		c.JSON(http.StatusOK, view)
		return
	}
	c.Status(http.StatusNoContent)
}

// Initiate POST /api/trades/:id/initiate
func (h *CommandHandler) Initiate(c *gin.Context) {
	h.run(c, h.desk.Initiate)
}

// MarkPaymentSent POST /api/trades/:id/mark-payment-sent
func (h *CommandHandler) MarkPaymentSent(c *gin.Context) {
	h.run(c, h.desk.MarkPaymentSent)
}

// ConfirmPayment POST /api/trades/:id/confirm-payment
func (h *CommandHandler) ConfirmPayment(c *gin.Context) {
	h.run(c, h.desk.ConfirmPayment)
}

// Delete DELETE /api/trades/:id
func (h *CommandHandler) Delete(c *gin.Context) {
	h.run(c, h.desk.Delete)
}

// Cancel POST /api/trades/:id/cancel
func (h *CommandHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "неверный формат запроса")
		return
	}

	h.run(c, func(ctx context.Context, tradeID int64) error {
		return h.desk.Cancel(ctx, tradeID, req.Reason)
	})
}

// UploadProof POST /api/trades/:id/upload-proof (multipart: file, description)
func (h *CommandHandler) UploadProof(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "файл обязателен")
		return
	}
	file, err := header.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer file.Close()

	description := c.PostForm("description")
	h.run(c, func(ctx context.Context, tradeID int64) error {
		return h.desk.UploadProof(ctx, tradeID, header.Filename, file, description)
	})
}

// SendMessage POST /api/trades/:id/message
func (h *CommandHandler) SendMessage(c *gin.Context) {
	tradeID, err := common.TradeID(c)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "неверный формат сообщения")
		return
	}

	msg, err := h.desk.SendMessage(c.Request.Context(), tradeID, req.Message)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
