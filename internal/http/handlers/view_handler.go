package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/desk"
	"github.com/ignatzorin/p2p-desk/internal/http/handlers/common"
)

// ViewHandler управляет модальным состоянием интерфейса.
type ViewHandler struct {
	desk Desk
}

func NewViewHandler(d Desk) *ViewHandler {
	return &ViewHandler{desk: d}
}

// State GET /api/view-state
func (h *ViewHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.desk.ViewState())
}

// Transition POST /api/view-state
func (h *ViewHandler) Transition(c *gin.Context) {
	var to desk.ViewState
	if err := c.ShouldBindJSON(&to); err != nil {
		common.RespondBadRequest(c, "неверный формат состояния")
		return
	}

	state, err := h.desk.Transition(c.Request.Context(), to)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
