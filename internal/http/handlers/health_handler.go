package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/ws"
)

// RealtimeStatus сообщает, подключён ли канал событий.
type RealtimeStatus interface {
	Connected() bool
}

// HealthHandler предоставляет endpoint для проверки здоровья демона.
type HealthHandler struct {
	hub      *ws.Hub
	realtime RealtimeStatus
	started  time.Time
}

// NewHealthHandler создаёт health handler. realtime может быть nil, если канал выключен.
func NewHealthHandler(hub *ws.Hub, realtime RealtimeStatus) *HealthHandler {
	return &HealthHandler{hub: hub, realtime: realtime, started: time.Now()}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Clients   int               `json:"clients"`
	Checks    map[string]string `json:"checks"`
}

// Health обрабатывает GET /health. Потеря канала событий не делает демон
// нездоровым: данные продолжают обновляться рефетчами.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	switch {
	case h.realtime == nil:
		checks["realtime"] = "disabled"
	case h.realtime.Connected():
		checks["realtime"] = "healthy"
	default:
		checks["realtime"] = "reconnecting"
		status = "degraded"
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.Len()
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Clients:   clients,
		Checks:    checks,
	})
}
