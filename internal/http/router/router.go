package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/p2p-desk/internal/config"
	"github.com/ignatzorin/p2p-desk/internal/http/handlers"
	"github.com/ignatzorin/p2p-desk/internal/http/middleware"
)

// Handlers - все хэндлеры локального API.
type Handlers struct {
	Health   *handlers.HealthHandler
	Trades   *handlers.TradeHandler
	Commands *handlers.CommandHandler
	Views    *handlers.ViewHandler
	WS       *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)
	api.GET("/viewer", h.Trades.Viewer)

	// Представления
	api.GET("/marketplace", h.Trades.Marketplace)
	api.GET("/trades/active", h.Trades.Active)
	api.GET("/trades/history", h.Trades.History)
	api.GET("/trades/:id", middleware.TradeIDValidator("id"), h.Trades.Detail)
	api.DELETE("/trades/:id/view", middleware.TradeIDValidator("id"), h.Trades.CloseView)

	api.GET("/view-state", h.Views.State)
	api.POST("/view-state", h.Views.Transition)

	// Команды уходят на сервер сделок, поэтому ограничены по частоте.
	commands := api.Group("/trades")
	commands.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		commands.POST("", h.Trades.Create)
		commands.DELETE("/:id", middleware.TradeIDValidator("id"), h.Commands.Delete)
		commands.POST("/:id/initiate", middleware.TradeIDValidator("id"), h.Commands.Initiate)
		commands.POST("/:id/upload-proof", middleware.TradeIDValidator("id"), h.Commands.UploadProof)
		commands.POST("/:id/mark-payment-sent", middleware.TradeIDValidator("id"), h.Commands.MarkPaymentSent)
		commands.POST("/:id/confirm-payment", middleware.TradeIDValidator("id"), h.Commands.ConfirmPayment)
		commands.POST("/:id/cancel", middleware.TradeIDValidator("id"), h.Commands.Cancel)
		commands.POST("/:id/message", middleware.TradeIDValidator("id"), h.Commands.SendMessage)
	}

	return r
}
