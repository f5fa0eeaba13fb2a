package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatzorin/p2p-desk/internal/config"
	"github.com/ignatzorin/p2p-desk/internal/desk"
	"github.com/ignatzorin/p2p-desk/internal/gateway"
	"github.com/ignatzorin/p2p-desk/internal/goroutine"
	httpHandlers "github.com/ignatzorin/p2p-desk/internal/http/handlers"
	httpRouter "github.com/ignatzorin/p2p-desk/internal/http/router"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/realtime"
	"github.com/ignatzorin/p2p-desk/internal/storage"
	"github.com/ignatzorin/p2p-desk/internal/store"
	"github.com/ignatzorin/p2p-desk/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)

	api := gateway.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)

	// id из токена нужен, пока профиль не загружен или сервер недоступен.
	fallbackID, err := gateway.ViewerIDFromToken(cfg.APIToken)
	if err != nil {
		logger.L().WithError(err).Warn("main: не удалось прочитать id пользователя из токена")
	}

	tradeStore := store.New()

	// Вебсокеты интерфейса.
	hub := ws.NewHub()
	goroutine.SafeGo(func() { hub.Run(ctx) })
	notify := func(event string, data any) {
		if err := hub.Broadcast(event, data); err != nil {
			logger.L().WithError(err).WithField("event", event).Error("main: событие не отправлено")
		}
	}

	// Канал событий сервера сделок.
	var rt desk.Realtime
	var status httpHandlers.RealtimeStatus
	if cfg.RealtimeEnabled() {
		manager, err := realtime.NewManager(realtime.Options{
			URL:         cfg.RealtimeURL,
			AppKey:      cfg.RealtimeAppKey,
			Authorizer:  realtime.NewAuthorizer(cfg.BroadcastAuthURL, cfg.APIToken, &http.Client{Timeout: cfg.RequestTimeout}),
			MaxInterval: cfg.ReconnectMaxInterval,
			OnStatus: func(connected bool) {
				notify(ws.EventRealtimeStatus, map[string]bool{"connected": connected})
			},
		})
		if err != nil {
			log.Fatalf("main: некорректные настройки канала событий: %v", err)
		}
		goroutine.SafeGo(func() {
			if err := manager.Run(ctx); err != nil {
				logger.L().WithError(err).Error("main: канал событий остановлен")
			}
		})
		rt = realtime.NewBridge(manager, tradeStore)
		status = manager
	} else {
		logger.L().Warn("main: канал событий не настроен, данные обновляются только запросами")
	}

	controller := desk.New(desk.Options{
		Gateway:          api,
		Store:            tradeStore,
		Realtime:         rt,
		Proofs:           storage.NewProofStorage(cfg.StorageBaseURL, cfg.MaxUploadSizeMB),
		PollInterval:     cfg.ActivePollInterval,
		Notify:           notify,
		FallbackViewerID: fallbackID,
	})
	if err := controller.Start(ctx); err != nil {
		logger.L().WithError(err).Warn("main: профиль не загружен, повторим при следующей команде")
	}
	defer controller.Stop()

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:   httpHandlers.NewHealthHandler(hub, status),
		Trades:   httpHandlers.NewTradeHandler(controller),
		Commands: httpHandlers.NewCommandHandler(controller),
		Views:    httpHandlers.NewViewHandler(controller),
		WS:       httpHandlers.NewWSHandler(hub, controller, cfg.AllowedOrigins),
	})

	server := &http.Server{
		Addr:              "127.0.0.1:" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	})

	logger.L().WithField("addr", server.Addr).Info("main: локальное API запущено")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}
