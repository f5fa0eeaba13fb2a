// Package countdown ведёт локальные таймеры оплаты для сделок в процессе.
// Таймер только для отображения: истечение срока окончательно фиксирует сервер,
// клиент при достижении нуля один раз запрашивает обновление.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/ignatzorin/p2p-desk/internal/goroutine"
)

const tickInterval = time.Second

// State - текущее состояние таймера для отображения.
type State struct {
	TradeID   int64         `json:"trade_id"`
	Remaining time.Duration `json:"-"`
	Text      string        `json:"text"`
	Expired   bool          `json:"expired"`
}

type timer struct {
	tradeID   int64
	expiresAt time.Time
	expired   bool
	stop      chan struct{}
	ticker    *clock.Ticker
}

// Service держит по одному таймеру на сделку.
type Service struct {
	clk      clock.Clock
	onExpire func(tradeID int64)
	onTick   func(State)

	mu     sync.Mutex
	timers map[int64]*timer
}

// New создаёт сервис. onExpire вызывается ровно один раз на запуск таймера.
func New(clk clock.Clock, onExpire func(tradeID int64)) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		clk:      clk,
		onExpire: onExpire,
		timers:   make(map[int64]*timer),
	}
}

// OnTick задаёт обработчик ежесекундного обновления (пуш в интерфейс).
func (s *Service) OnTick(fn func(State)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// Start запускает таймер. Существующий таймер сделки заменяется.
// Если срок уже прошёл, таймер сразу истекает и вызывает onExpire один раз.
func (s *Service) Start(tradeID int64, expiresAt time.Time) {
	s.Stop(tradeID)

	t := &timer{
		tradeID:   tradeID,
		expiresAt: expiresAt,
		stop:      make(chan struct{}),
	}

	s.mu.Lock()
	s.timers[tradeID] = t
	s.mu.Unlock()

	if s.tick(t) {
		return
	}

	t.ticker = s.clk.Ticker(tickInterval)
	ticker := t.ticker
	goroutine.SafeGo(func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if s.tick(t) {
					return
				}
			}
		}
	})
}

// Stop останавливает таймер сделки (закрытие деталей, смена id).
func (s *Service) Stop(tradeID int64) {
	s.mu.Lock()
	t, ok := s.timers[tradeID]
	if ok {
		delete(s.timers, tradeID)
	}
	s.mu.Unlock()

	if ok {
		close(t.stop)
	}
}

// StopAll останавливает все таймеры.
func (s *Service) StopAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[int64]*timer)
	s.mu.Unlock()

	for _, t := range timers {
		close(t.stop)
	}
}

// Running сообщает, запущен ли таймер сделки.
func (s *Service) Running(tradeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[tradeID]
	return ok && !t.expired
}

// Remaining возвращает состояние таймера на текущий момент.
func (s *Service) Remaining(tradeID int64) (State, bool) {
	s.mu.Lock()
	t, ok := s.timers[tradeID]
	if !ok {
		s.mu.Unlock()
		return State{}, false
	}
	state := s.stateLocked(t)
	s.mu.Unlock()
	return state, true
}

// Sync принудительно проверяет все таймеры по текущему времени часов.
func (s *Service) Sync() {
	s.mu.Lock()
	timers := make([]*timer, 0, len(s.timers))
	for _, t := range s.timers {
		timers = append(timers, t)
	}
	s.mu.Unlock()

	for _, t := range timers {
		s.tick(t)
	}
}

// tick пересчитывает таймер. Возвращает true, если таймер истёк и больше не тикает.
func (s *Service) tick(t *timer) bool {
	s.mu.Lock()
	if t.expired {
		s.mu.Unlock()
		return true
	}
	if current, ok := s.timers[t.tradeID]; !ok || current != t {
		// Таймер остановлен или заменён: в закрытое представление не пишем.
		s.mu.Unlock()
		return true
	}

	state := s.stateLocked(t)
	fire := state.Expired
	if fire {
		t.expired = true
	}
	onTick := s.onTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(state)
	}
	if fire && s.onExpire != nil {
		s.onExpire(t.tradeID)
	}
	return fire
}

func (s *Service) stateLocked(t *timer) State {
	remaining := t.expiresAt.Sub(s.clk.Now())
	if remaining < 0 {
		remaining = 0
	}
	secs := wholeSeconds(remaining)
	return State{
		TradeID:   t.tradeID,
		Remaining: remaining,
		Text:      formatSeconds(secs),
		Expired:   secs == 0,
	}
}

// Format выводит оставшееся время как MM:SS, никогда не отрицательное.
// Неполная секунда считается целой: 00:00 показывается только после истечения.
func Format(d time.Duration) string {
	return formatSeconds(wholeSeconds(d))
}

func wholeSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

func formatSeconds(total int64) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
