package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/http/handlers/common"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// TradeHandler отдаёт представления сделок: маркетплейс, активные, история, детали.
type TradeHandler struct {
	desk Desk
}

func NewTradeHandler(d Desk) *TradeHandler {
	return &TradeHandler{desk: d}
}

// Viewer GET /api/viewer
func (h *TradeHandler) Viewer(c *gin.Context) {
	c.JSON(http.StatusOK, h.desk.Viewer())
}

// Marketplace GET /api/marketplace?type=&payment_method=&amount=
func (h *TradeHandler) Marketplace(c *gin.Context) {
	var filter store.MarketFilter

	if raw := c.Query("type"); raw != "" {
		tradeType, err := valueobject.NewTradeType(raw)
		if err != nil {
			common.Fail(c, err)
			return
		}
		filter.Type = tradeType
	}
	if raw := c.Query("payment_method"); raw != "" {
		method, err := valueobject.NewPaymentMethod(raw)
		if err != nil {
			common.Fail(c, err)
			return
		}
		filter.PaymentMethod = method
	}
	if raw := c.Query("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() {
			common.RespondBadRequest(c, "неверный amount")
			return
		}
		filter.MinAmount = amount
	}

	c.JSON(http.StatusOK, h.desk.Marketplace(c.Request.Context(), filter))
}

// Active GET /api/trades/active
func (h *TradeHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, h.desk.Active(c.Request.Context()))
}

// History GET /api/trades/history?status=
func (h *TradeHandler) History(c *gin.Context) {
	view, err := h.desk.History(c.Request.Context(), valueobject.TradeStatus(c.Query("status")))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Detail GET /api/trades/:id
func (h *TradeHandler) Detail(c *gin.Context) {
	tradeID, err := common.TradeID(c)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.desk.OpenDetail(c.Request.Context(), tradeID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CloseView DELETE /api/trades/:id/view
func (h *TradeHandler) CloseView(c *gin.Context) {
	h.desk.CloseDetail()
	c.Status(http.StatusNoContent)
}

// Create POST /api/trades
func (h *TradeHandler) Create(c *gin.Context) {
	var in entity.CreateTradeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, "неверный формат объявления")
		return
	}

	trade, err := h.desk.Create(c.Request.Context(), in)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}
