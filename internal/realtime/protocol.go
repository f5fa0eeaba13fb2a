package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Служебные события протокола Pusher.
const (
	eventConnectionEstablished = "pusher:connection_established"
	eventSubscribe             = "pusher:subscribe"
	eventUnsubscribe           = "pusher:unsubscribe"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventError                 = "pusher:error"
	eventSubscriptionError     = "pusher:subscription_error"
	eventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// Каналы и события сделок.
const (
	TradesChannel     = "p2p-trades"
	EventTradeUpdated = "P2PTradeUpdated"
	EventNewMessage   = "NewTradeMessage"
)

// TradeChannel - приватный канал одной сделки.
func TradeChannel(tradeID int64) string {
	return fmt.Sprintf("private-p2p-trade.%d", tradeID)
}

// IsPrivate сообщает, требует ли канал авторизации.
func IsPrivate(channel string) bool {
	return strings.HasPrefix(channel, "private-") || strings.HasPrefix(channel, "presence-")
}

// Event - событие канала после нормализации.
type Event struct {
	Channel string
	Name    string
	Data    json.RawMessage
}

type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type subscribeData struct {
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

type connectionInfo struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// normalizeEventName убирает ведущую точку и пространство имён Laravel:
// ".P2PTradeUpdated" и "App\\Events\\P2PTradeUpdated" дают "P2PTradeUpdated".
func normalizeEventName(name string) string {
	name = strings.TrimPrefix(name, ".")
	if i := strings.LastIndexAny(name, `\.`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// payload возвращает данные события как JSON: сервер кладёт их строкой.
func payload(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("realtime: некорректные данные события: %w", err)
	}
	return json.RawMessage(s), nil
}

// socketURL дополняет адрес сервера путём /app/{key} и параметрами протокола.
func socketURL(base, appKey string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("realtime: некорректный адрес сервера: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.Contains(u.Path, "/app/") {
		u.Path = strings.TrimRight(u.Path, "/") + "/app/" + appKey
	}
	q := u.Query()
	if q.Get("protocol") == "" {
		q.Set("protocol", "7")
	}
	q.Set("client", "p2p-desk")
	q.Set("version", "1.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
