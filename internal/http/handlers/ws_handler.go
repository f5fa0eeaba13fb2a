package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/ws"
)

// WSHandler подключает окно интерфейса к рассылке событий.
type WSHandler struct {
	hub      *ws.Hub
	desk     Desk
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт хэндлер. Пустой allowedOrigins разрешает любой origin.
func NewWSHandler(hub *ws.Hub, d Desk, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:  hub,
		desk: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Handle обслуживает GET /api/ws. Пока соединение открыто, дашборд считается
// открытым: активные сделки опрашиваются, а новые объявления приходят по каналу.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().WithError(err).Warn("ws: не удалось открыть соединение")
		return
	}

	client := ws.NewClient(conn, h.hub)
	h.hub.Register(client)

	closeDashboard := h.desk.OpenDashboard()
	defer closeDashboard()

	client.Run(c.Request.Context())
}
