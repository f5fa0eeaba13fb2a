// Package desk объединяет стор, политику, таймеры, канал событий и REST клиент
// в представления, которые отдаёт локальное API: маркетплейс, активные сделки,
// история и детали сделки.
package desk

import (
	"context"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/ignatzorin/p2p-desk/internal/countdown"
	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/gateway"
	"github.com/ignatzorin/p2p-desk/internal/goroutine"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/storage"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// Gateway - команды и чтения REST API сделок.
type Gateway interface {
	ListTrades(ctx context.Context, params gateway.ListParams) ([]*entity.Trade, error)
	UserTrades(ctx context.Context, status valueobject.TradeStatus) ([]*entity.Trade, error)
	GetTrade(ctx context.Context, id int64) (*entity.Trade, error)
	CreateTrade(ctx context.Context, in entity.CreateTradeInput) (*entity.Trade, error)
	Initiate(ctx context.Context, id int64) error
	UploadProof(ctx context.Context, id int64, file *storage.ProofFile, description string) error
	MarkPaymentSent(ctx context.Context, id int64) error
	ConfirmPayment(ctx context.Context, id int64) error
	Cancel(ctx context.Context, id int64, reason string) error
	Delete(ctx context.Context, id int64) error
	SendMessage(ctx context.Context, id int64, text string) (*entity.Message, error)
	Profile(ctx context.Context) (*entity.Viewer, error)
}

// Realtime - подписки на каналы событий сделок.
type Realtime interface {
	WatchListing(mode store.PatchMode) func()
	WatchTrade(tradeID int64) func()
}

type noRealtime struct{}

func (noRealtime) WatchListing(store.PatchMode) func() { return func() {} }
func (noRealtime) WatchTrade(int64) func()             { return func() {} }

// Options - зависимости контроллера.
type Options struct {
	Gateway  Gateway
	Store    *store.Store
	Realtime Realtime
	Proofs   *storage.ProofStorage
	Clock    clock.Clock
	// PollInterval - период обновления активных сделок, пока открыт дашборд.
	PollInterval time.Duration
	// Notify получает события для интерфейса (изменения стора, тики таймеров).
	Notify func(event string, data any)
	// FallbackViewerID используется, если профиль не удалось загрузить.
	FallbackViewerID int64
}

// Flags - временные флаги выполнения команды по сделке.
type Flags struct {
	Uploading  bool `json:"uploading"`
	Processing bool `json:"processing"`
}

// Desk - контроллер представлений одного пользователя.
type Desk struct {
	gw        Gateway
	store     *store.Store
	rt        Realtime
	proofs    *storage.ProofStorage
	clk       clock.Clock
	countdown *countdown.Service
	poll      time.Duration
	notify    func(event string, data any)
	fallback  int64

	mu        sync.Mutex
	root      context.Context
	viewer    entity.Viewer
	views     map[store.Scope]*scopeView
	market    store.Scope
	history   store.Scope
	detail    *detailView
	flags     map[int64]Flags
	viewState ViewState
	sessions  int
	stopDash  func()

	// timersMu упорядочивает запуск и остановку таймеров, timers - срок запущенного таймера.
	timersMu sync.Mutex
	timers   map[int64]time.Time

	unsubscribeStore func()
}

// New создаёт контроллер. Запросы начинаются после Start.
func New(opts Options) *Desk {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	rt := opts.Realtime
	if rt == nil {
		rt = noRealtime{}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(string, any) {}
	}

	d := &Desk{
		gw:        opts.Gateway,
		store:     opts.Store,
		rt:        rt,
		proofs:    opts.Proofs,
		clk:       clk,
		poll:      poll,
		notify:    notify,
		fallback:  opts.FallbackViewerID,
		root:      context.Background(),
		views:     make(map[store.Scope]*scopeView),
		flags:     make(map[int64]Flags),
		timers:    make(map[int64]time.Time),
		viewState: Closed(),
	}
	if d.store == nil {
		d.store = store.New()
	}
	if d.proofs == nil {
		d.proofs = storage.NewProofStorage("", 10)
	}

	d.countdown = countdown.New(clk, d.onExpire)
	d.countdown.OnTick(func(s countdown.State) {
		d.notify(EventCountdownTick, s)
	})
	d.unsubscribeStore = d.store.Subscribe(d.onStoreChange)
	return d
}

// События для интерфейса.
const (
	EventTradeChanged  = "trade.changed"
	EventCountdownTick = "countdown.tick"
	EventViewState     = "view.state"
	EventCommandFailed = "command.failed"
)

const changeFlags store.ChangeKind = "flags"

// Start загружает профиль пользователя и привязывает фоновые запросы к ctx.
func (d *Desk) Start(ctx context.Context) error {
	d.mu.Lock()
	d.root = ctx
	d.mu.Unlock()

	return d.RefreshViewer(ctx)
}

// Stop закрывает все представления, таймеры и подписки.
func (d *Desk) Stop() {
	d.closeDetail()

	d.mu.Lock()
	views := d.views
	d.views = make(map[store.Scope]*scopeView)
	stopDash := d.stopDash
	d.stopDash = nil
	d.sessions = 0
	d.mu.Unlock()

	for _, v := range views {
		v.cancel()
	}
	if stopDash != nil {
		stopDash()
	}
	d.unsubscribeStore()

	d.timersMu.Lock()
	d.countdown.StopAll()
	d.timers = make(map[int64]time.Time)
	d.timersMu.Unlock()
}

// RefreshViewer перечитывает профиль: id, KYC и баланс.
func (d *Desk) RefreshViewer(ctx context.Context) error {
	viewer, err := d.gw.Profile(ctx)
	if err != nil {
		d.mu.Lock()
		if d.viewer.ID == 0 && d.fallback != 0 {
			d.viewer = entity.Viewer{ID: d.fallback}
		}
		d.mu.Unlock()
		logger.L().WithError(err).Warn("desk: не удалось загрузить профиль")
		return err
	}

	d.mu.Lock()
	d.viewer = *viewer
	d.mu.Unlock()
	return nil
}

// Viewer возвращает текущего пользователя.
func (d *Desk) Viewer() entity.Viewer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewer
}

// Store нужен адаптерам для подписки на изменения.
func (d *Desk) Store() *store.Store {
	return d.store
}

// Flags возвращает временные флаги сделки.
func (d *Desk) Flags(tradeID int64) Flags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags[tradeID]
}

func (d *Desk) setFlags(tradeID int64, update func(*Flags)) {
	d.mu.Lock()
	f := d.flags[tradeID]
	update(&f)
	if f == (Flags{}) {
		delete(d.flags, tradeID)
	} else {
		d.flags[tradeID] = f
	}
	d.mu.Unlock()

	d.notify(EventTradeChanged, store.Change{Kind: changeFlags, TradeID: tradeID})
}

func (d *Desk) rootContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

// onStoreChange пересылает изменения интерфейсу и синхронизирует открытые детали.
func (d *Desk) onStoreChange(c store.Change) {
	d.notify(EventTradeChanged, c)

	d.mu.Lock()
	dv := d.detail
	d.mu.Unlock()
	if dv != nil && (c.TradeID == 0 || c.TradeID == dv.id) {
		d.syncDetail(dv)
	}
	d.syncCountdowns()
}

// syncCountdowns держит таймер для каждой сделки в процессе, которая видна
// в активных сделках или открыта в деталях. Остальные таймеры останавливаются.
// Таймер с тем же сроком не перезапускается, поэтому истечение запрашивает
// обновление один раз.
func (d *Desk) syncCountdowns() {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()

	d.mu.Lock()
	_, activeOpen := d.views[store.ActiveScope]
	var detailID int64
	if d.detail != nil {
		detailID = d.detail.id
	}
	viewerID := d.viewer.ID
	d.mu.Unlock()

	wanted := make(map[int64]time.Time)
	if activeOpen {
		for _, t := range d.store.Active(viewerID) {
			if t.ExpiresAt != nil {
				wanted[t.ID] = *t.ExpiresAt
			}
		}
	}
	if detailID != 0 {
		if t, ok := d.store.Get(detailID); ok && t.Status == valueobject.TradeStatusProcessing && t.ExpiresAt != nil {
			wanted[t.ID] = *t.ExpiresAt
		}
	}

	for id := range d.timers {
		if _, ok := wanted[id]; !ok {
			delete(d.timers, id)
			d.countdown.Stop(id)
		}
	}
	for id, expires := range wanted {
		if current, ok := d.timers[id]; ok && current.Equal(expires) {
			continue
		}
		d.timers[id] = expires
		d.countdown.Start(id, expires)
	}
}

// onExpire вызывается таймером один раз: статус подтверждает только сервер.
func (d *Desk) onExpire(tradeID int64) {
	logger.Trade(tradeID).Info("desk: время на оплату истекло, запрашиваем обновление")
	ctx := d.rootContext()
	goroutine.SafeGo(func() { d.refreshAfterExpiry(ctx, tradeID) })
}
