// Package realtime держит одно соединение с сервером событий (протокол Pusher)
// на весь процесс. Представления подписываются на каналы через счётчик ссылок:
// подписка на сервере живёт, пока канал нужен хотя бы одному представлению.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/goroutine"
	"github.com/ignatzorin/p2p-desk/internal/logger"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	authTimeout = 10 * time.Second
	sendBuffer  = 32
)

// Handler получает события канала.
type Handler func(Event)

// Subscriber - то, что нужно мосту от менеджера.
type Subscriber interface {
	Subscribe(channel string, h Handler) (unsubscribe func())
}

// subscription - обработчик одного подписчика. mu держится от проверки active
// до возврата из обработчика.
type subscription struct {
	handler Handler

	mu         sync.Mutex
	active     atomic.Bool
	delivering atomic.Bool
}

func (s *subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() {
		return
	}
	s.delivering.Store(true)
	defer s.delivering.Store(false)
	s.handler(ev)
}

// deactivate прекращает доставку. Если событие уже прошло проверку, но
// обработчик ещё не вызван, ждёт его завершения. Отписка из самого обработчика
// не ждёт: текущий вызов становится последним.
func (s *subscription) deactivate() {
	s.active.Store(false)
	if s.delivering.Load() {
		return
	}
	s.mu.Lock()
	s.mu.Unlock()
}

type channelState struct {
	subs       map[uint64]*subscription
	subscribed bool
}

// Options - параметры менеджера.
type Options struct {
	URL         string
	AppKey      string
	Authorizer  *Authorizer
	MaxInterval time.Duration
	Dialer      *websocket.Dialer
	// OnStatus вызывается при установке и потере соединения.
	OnStatus func(connected bool)
}

// Manager - единственное соединение процесса с сервером событий.
type Manager struct {
	url        string
	authorizer *Authorizer
	dialer     *websocket.Dialer
	maxBackoff time.Duration
	onStatus   func(connected bool)

	mu       sync.Mutex
	channels map[string]*channelState
	nextID   uint64
	conn     *websocket.Conn
	socketID string
	send     chan []byte
}

// NewManager создаёт менеджер. Соединение открывает Run.
func NewManager(opts Options) (*Manager, error) {
	target, err := socketURL(opts.URL, opts.AppKey)
	if err != nil {
		return nil, err
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	maxBackoff := opts.MaxInterval
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Manager{
		url:        target,
		authorizer: opts.Authorizer,
		dialer:     dialer,
		maxBackoff: maxBackoff,
		onStatus:   opts.OnStatus,
		channels:   make(map[string]*channelState),
	}, nil
}

// Subscribe регистрирует обработчик канала. Подписка на сервере отправляется
// при первом интересе, отписка при освобождении последней ссылки.
// После возврата из возвращённой функции новые вызовы обработчика не начинаются.
func (m *Manager) Subscribe(channel string, h Handler) func() {
	sub := &subscription{handler: h}
	sub.active.Store(true)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	state, ok := m.channels[channel]
	if !ok {
		state = &channelState{subs: make(map[uint64]*subscription)}
		m.channels[channel] = state
	}
	state.subs[id] = sub
	first := !ok
	socketID := m.socketID
	m.mu.Unlock()

	if first && socketID != "" {
		goroutine.SafeGo(func() { m.subscribeChannel(channel, socketID) })
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.deactivate()
			m.release(channel, id)
		})
	}
}

func (m *Manager) release(channel string, id uint64) {
	m.mu.Lock()
	state, ok := m.channels[channel]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(state.subs, id)
	last := len(state.subs) == 0
	if last {
		delete(m.channels, channel)
	}
	m.mu.Unlock()

	if last {
		m.sendFrame(eventUnsubscribe, subscribeData{Channel: channel})
		logger.L().WithField("channel", channel).Debug("realtime: последняя ссылка освобождена, отписка")
	}
}

// Refs возвращает число ссылок на каждый канал.
func (m *Manager) Refs() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.channels))
	for name, state := range m.channels {
		out[name] = len(state.subs)
	}
	return out
}

// Connected сообщает, открыто ли соединение.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.socketID != ""
}

// Run держит соединение до отмены ctx, переподключаясь с экспоненциальной паузой.
func (m *Manager) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = m.maxBackoff
	b.MaxElapsedTime = 0

	for {
		var conn *websocket.Conn
		err := backoff.RetryNotify(func() error {
			c, err := m.connect(ctx)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
			logger.L().WithError(err).WithField("retry_in", next.String()).Warn("realtime: не удалось подключиться")
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Reset()

		err = m.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		logger.L().WithError(err).Warn("realtime: соединение потеряно, переподключение")
	}
}

// connect открывает сокет и ждёт pusher:connection_established.
func (m *Manager) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime: не удалось открыть соединение: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime: нет приветствия сервера: %w", err)
	}
	if f.Event != eventConnectionEstablished {
		conn.Close()
		if f.Event == eventError {
			// Коды 4000-4099 означают, что переподключаться бессмысленно.
			var e errorData
			if data, err := payload(f.Data); err == nil {
				_ = json.Unmarshal(data, &e)
			}
			if e.Code >= 4000 && e.Code < 4100 {
				return nil, backoff.Permanent(fmt.Errorf("realtime: сервер отклонил соединение: %d %s", e.Code, e.Message))
			}
		}
		return nil, fmt.Errorf("realtime: неожиданное событие %q вместо приветствия", f.Event)
	}

	data, err := payload(f.Data)
	if err != nil {
		conn.Close()
		return nil, err
	}
	var info connectionInfo
	if err := json.Unmarshal(data, &info); err != nil || info.SocketID == "" {
		conn.Close()
		return nil, fmt.Errorf("realtime: в приветствии нет socket_id")
	}

	send := make(chan []byte, sendBuffer)

	m.mu.Lock()
	m.conn = conn
	m.socketID = info.SocketID
	m.send = send
	channels := make([]string, 0, len(m.channels))
	for name := range m.channels {
		channels = append(channels, name)
	}
	m.mu.Unlock()

	logger.L().WithFields(logrus.Fields{
		"socket_id": info.SocketID,
		"channels":  len(channels),
	}).Info("realtime: соединение установлено")

	goroutine.SafeGo(func() { m.writePump(conn, send) })
	m.status(true)

	// После переподключения восстанавливаем все живые подписки.
	for _, name := range channels {
		goroutine.SafeGo(func() { m.subscribeChannel(name, info.SocketID) })
	}
	return conn, nil
}

// serve читает события до разрыва соединения.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	goroutine.SafeGo(func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	})
	defer m.disconnect(conn)

	conn.SetReadLimit(512 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.L().WithError(err).Error("realtime: не удалось разобрать сообщение")
			continue
		}
		m.dispatch(f)
	}
}

func (m *Manager) disconnect(conn *websocket.Conn) {
	m.mu.Lock()
	current := m.conn == conn
	if current {
		m.conn = nil
		m.socketID = ""
		if m.send != nil {
			close(m.send)
			m.send = nil
		}
		for _, state := range m.channels {
			state.subscribed = false
		}
	}
	m.mu.Unlock()
	conn.Close()

	if current {
		m.status(false)
	}
}

func (m *Manager) status(connected bool) {
	if m.onStatus != nil {
		m.onStatus(connected)
	}
}

func (m *Manager) dispatch(f frame) {
	log := logger.L().WithFields(logrus.Fields{"channel": f.Channel, "event": f.Event})

	switch f.Event {
	case eventPing:
		m.sendFrame(eventPong, struct{}{})
		return
	case eventPong:
		return
	case eventError:
		log.Warn("realtime: ошибка сервера")
		return
	case eventSubscriptionSucceeded:
		m.mu.Lock()
		if state, ok := m.channels[f.Channel]; ok {
			state.subscribed = true
		}
		m.mu.Unlock()
		log.Debug("realtime: подписка подтверждена")
		return
	case eventSubscriptionError:
		log.Warn("realtime: сервер отклонил подписку")
		return
	}
	if f.Channel == "" {
		return
	}

	data, err := payload(f.Data)
	if err != nil {
		log.WithError(err).Error("realtime: не удалось разобрать данные события")
		return
	}
	ev := Event{Channel: f.Channel, Name: normalizeEventName(f.Event), Data: data}

	m.mu.Lock()
	state, ok := m.channels[f.Channel]
	subs := make([]*subscription, 0)
	if ok {
		for _, sub := range state.subs {
			subs = append(subs, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// subscribeChannel отправляет pusher:subscribe, для приватного канала с подписью.
func (m *Manager) subscribeChannel(channel, socketID string) {
	data := subscribeData{Channel: channel}

	if IsPrivate(channel) {
		if m.authorizer == nil {
			logger.L().WithField("channel", channel).Error("realtime: нет авторизатора для приватного канала")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		auth, err := m.authorizer.Authorize(ctx, socketID, channel)
		cancel()
		if err != nil {
			logger.L().WithError(err).WithField("channel", channel).Warn("realtime: авторизация канала не удалась")
			return
		}
		data.Auth = auth
	}

	// Пока шла авторизация, канал могли освободить или соединение могло смениться.
	m.mu.Lock()
	_, wanted := m.channels[channel]
	current := m.socketID == socketID
	m.mu.Unlock()
	if !wanted || !current {
		return
	}

	m.sendFrame(eventSubscribe, data)
}

func (m *Manager) sendFrame(event string, data any) bool {
	raw, err := json.Marshal(outgoing{Event: event, Data: data})
	if err != nil {
		logger.L().WithError(err).Error("realtime: не удалось сериализовать сообщение")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.send == nil {
		return false
	}
	select {
	case m.send <- raw:
		return true
	default:
		logger.L().WithField("event", event).Warn("realtime: очередь отправки переполнена")
		return false
	}
}

func (m *Manager) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	ping, _ := json.Marshal(outgoing{Event: eventPing, Data: struct{}{}})

	for {
		select {
		case message, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}

var _ Subscriber = (*Manager)(nil)
