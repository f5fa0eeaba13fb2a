package store

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/logger"
)

// PatchMode определяет, что делать с патчем для неизвестной сделки.
type PatchMode int

const (
	// DetailOnly - неизвестные id игнорируются.
	DetailOnly PatchMode = iota
	// Listing - неизвестные id добавляются (листинг всех публичных сделок).
	Listing
)

type ChangeKind string

const (
	ChangeReplaced ChangeKind = "replaced"
	ChangePatched  ChangeKind = "patched"
	ChangeInserted ChangeKind = "inserted"
	ChangeMessage  ChangeKind = "message"
	ChangeRemoved  ChangeKind = "removed"
)

// Change - уведомление подписчикам стора.
type Change struct {
	Kind    ChangeKind `json:"kind"`
	Scope   string     `json:"scope,omitempty"`
	TradeID int64      `json:"trade_id,omitempty"`
}

// Fetch - токен запроса. Ответ применяется, только если для области
// не был уже применён более поздний запрос.
type Fetch struct {
	Scope Scope
	Gen   uint64
	seq   uint64
}

type entry struct {
	trade   *entity.Trade
	version uint64
}

// Store хранит видимые пользователю сделки по id.
type Store struct {
	mu      sync.RWMutex
	trades  map[int64]*entry
	members map[Scope]map[int64]struct{}
	issued  map[Scope]uint64
	applied map[Scope]uint64
	seq     uint64

	subMu  sync.RWMutex
	subs   map[int]func(Change)
	nextID int
}

// New создаёт пустой стор.
func New() *Store {
	return &Store{
		trades:  make(map[int64]*entry),
		members: make(map[Scope]map[int64]struct{}),
		issued:  make(map[Scope]uint64),
		applied: make(map[Scope]uint64),
		subs:    make(map[int]func(Change)),
	}
}

// Subscribe регистрирует обработчик изменений. Возвращает функцию отписки.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.subMu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// BeginFetch выдаёт токен нового запроса для области.
func (s *Store) BeginFetch(scope Scope) Fetch {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued[scope]++
	return Fetch{Scope: scope, Gen: s.issued[scope], seq: s.seq}
}

// Replace применяет полный ответ сервера для области. Возвращает false, если
// ответ устарел: для области уже применён более поздний запрос.
// Сделки, изменённые патчем после отправки запроса, не перезаписываются.
func (s *Store) Replace(f Fetch, trades []*entity.Trade) bool {
	s.mu.Lock()

	if f.Gen <= s.applied[f.Scope] {
		s.mu.Unlock()
		logger.L().WithFields(logrus.Fields{
			"scope":      f.Scope.String(),
			"generation": f.Gen,
		}).Debug("store: устаревший ответ отброшен")
		return false
	}
	s.applied[f.Scope] = f.Gen

	prev := s.members[f.Scope]
	next := make(map[int64]struct{}, len(trades))

	// Версия снимка - момент отправки запроса: всё, что записано позже, новее.
	for _, t := range trades {
		if t == nil || t.ID == 0 {
			continue
		}
		next[t.ID] = struct{}{}
		if existing, ok := s.trades[t.ID]; ok && existing.version > f.seq {
			continue
		}
		s.trades[t.ID] = &entry{trade: t.Clone(), version: f.seq}
	}
	s.members[f.Scope] = next

	removed := make([]Change, 0)
	for id := range prev {
		if _, still := next[id]; still {
			continue
		}
		if !s.referencedLocked(id) {
			delete(s.trades, id)
			removed = append(removed, Change{Kind: ChangeRemoved, TradeID: id})
		}
	}
	s.mu.Unlock()

	s.notify(append([]Change{{Kind: ChangeReplaced, Scope: f.Scope.String()}}, removed...)...)
	return true
}

// Release забывает область (закрытие представления) и удаляет сделки,
// на которые больше никто не ссылается.
func (s *Store) Release(scope Scope) {
	s.mu.Lock()
	ids := s.members[scope]
	delete(s.members, scope)
	removed := make([]Change, 0)
	for id := range ids {
		if !s.referencedLocked(id) {
			delete(s.trades, id)
			removed = append(removed, Change{Kind: ChangeRemoved, TradeID: id})
		}
	}
	s.mu.Unlock()

	s.notify(removed...)
}

func (s *Store) referencedLocked(id int64) bool {
	for _, ids := range s.members {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

// ApplyPatch сливает частичное обновление в сделку по id.
// Возвращает true, если стор изменился.
func (s *Store) ApplyPatch(p *entity.TradePatch, mode PatchMode) bool {
	if p == nil || p.ID == 0 {
		return false
	}

	s.mu.Lock()
	e, ok := s.trades[p.ID]
	if !ok {
		if mode != Listing {
			s.mu.Unlock()
			return false
		}
		s.seq++
		s.trades[p.ID] = &entry{trade: p.ToTrade(), version: s.seq}
		// Новая сделка принадлежит листингам маркетплейса, чтобы её убрал следующий рефетч.
		joined := false
		for scope, ids := range s.members {
			if scope.Kind == ScopeMarketplace {
				ids[p.ID] = struct{}{}
				joined = true
			}
		}
		if !joined {
			if s.members[LiveScope] == nil {
				s.members[LiveScope] = make(map[int64]struct{})
			}
			s.members[LiveScope][p.ID] = struct{}{}
		}
		s.mu.Unlock()
		s.notify(Change{Kind: ChangeInserted, TradeID: p.ID})
		return true
	}

	res := e.trade.Merge(p)
	if res.StatusRejected {
		logger.Trade(p.ID).WithField("status", e.trade.Status).Warn("store: переход статуса из патча отклонён")
	}
	if res.Changed {
		s.seq++
		e.version = s.seq
	}
	s.mu.Unlock()

	if res.Changed {
		s.notify(Change{Kind: ChangePatched, TradeID: p.ID})
	}
	return res.Changed
}

// AppendMessage добавляет сообщение чата в открытую сделку. Неизвестные id игнорируются.
func (s *Store) AppendMessage(tradeID int64, msg entity.Message) bool {
	s.mu.Lock()
	e, ok := s.trades[tradeID]
	added := ok && e.trade.AppendMessages(msg)
	if added {
		s.seq++
		e.version = s.seq
	}
	s.mu.Unlock()

	if added {
		s.notify(Change{Kind: ChangeMessage, TradeID: tradeID})
	}
	return added
}

// Get возвращает копию сделки.
func (s *Store) Get(id int64) (*entity.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.trades[id]
	if !ok {
		return nil, false
	}
	return e.trade.Clone(), true
}

// Len - количество сделок в сторе.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// MarketFilter - фильтр маркетплейса.
type MarketFilter struct {
	Type          valueobject.TradeType
	PaymentMethod valueobject.PaymentMethod
	MinAmount     decimal.Decimal
}

// Marketplace - все активные объявления выбранного направления. Собственные
// объявления пользователя видны, но действия по ним ограничивает policy.
func (s *Store) Marketplace(f MarketFilter) []*entity.Trade {
	return s.selectTrades(func(t *entity.Trade) bool {
		if t.Status != valueobject.TradeStatusActive {
			return false
		}
		if f.Type != "" && t.Type != f.Type {
			return false
		}
		if f.PaymentMethod != "" && t.PaymentMethod != f.PaymentMethod {
			return false
		}
		if f.MinAmount.IsPositive() && t.Amount.LessThan(f.MinAmount) {
			return false
		}
		return true
	})
}

// Active - сделки в процессе, где пользователь продавец или покупатель.
func (s *Store) Active(viewerID int64) []*entity.Trade {
	return s.selectTrades(func(t *entity.Trade) bool {
		return t.Status == valueobject.TradeStatusProcessing && t.IsParty(viewerID)
	})
}

// History - все сделки пользователя, опционально по одному статусу.
func (s *Store) History(viewerID int64, status valueobject.TradeStatus) []*entity.Trade {
	return s.selectTrades(func(t *entity.Trade) bool {
		if !t.IsParty(viewerID) && !t.IsOwnedBy(viewerID) {
			return false
		}
		return status == "" || t.Status == status
	})
}

func (s *Store) selectTrades(keep func(*entity.Trade) bool) []*entity.Trade {
	s.mu.RLock()
	out := make([]*entity.Trade, 0)
	for _, e := range s.trades {
		if keep(e.trade) {
			out = append(out, e.trade.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
