package desk

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/gateway"
	"github.com/ignatzorin/p2p-desk/internal/goroutine"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

type loader func(ctx context.Context) ([]*entity.Trade, error)

// scopeView - открытое представление одной области стора. Его контекст
// отменяется при закрытии, и запоздавшие ответы не применяются.
type scopeView struct {
	scope  store.Scope
	load   loader
	ctx    context.Context
	cancel context.CancelFunc
	err    error
}

func (d *Desk) openScopeLocked(scope store.Scope, load loader) *scopeView {
	if v, ok := d.views[scope]; ok {
		return v
	}
	ctx, cancel := context.WithCancel(d.root)
	v := &scopeView{scope: scope, load: load, ctx: ctx, cancel: cancel}
	d.views[scope] = v
	return v
}

func (d *Desk) closeScope(scope store.Scope) {
	d.mu.Lock()
	v, ok := d.views[scope]
	if ok {
		delete(d.views, scope)
	}
	d.mu.Unlock()

	if ok {
		v.cancel()
		d.store.Release(scope)
	}
}

func (d *Desk) view(scope store.Scope) *scopeView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.views[scope]
}

// fetch загружает область и заменяет её в сторе. Ответ отбрасывается, если
// представление закрыли, пока шёл запрос, или стор уже применил более новый.
func (d *Desk) fetch(reqCtx context.Context, v *scopeView) error {
	ctx, cancel := context.WithCancel(v.ctx)
	defer cancel()
	if reqCtx != nil {
		stop := context.AfterFunc(reqCtx, cancel)
		defer stop()
	}

	f := d.store.BeginFetch(v.scope)
	trades, err := v.load(ctx)

	d.mu.Lock()
	current := d.views[v.scope] == v
	if current {
		v.err = err
	}
	d.mu.Unlock()

	log := logger.L().WithFields(logrus.Fields{"scope": v.scope.String(), "generation": f.Gen})
	if !current {
		log.Debug("desk: ответ для закрытого представления отброшен")
		return nil
	}

	if err != nil {
		if apperror.IsNotFound(err) && v.scope.Kind == store.ScopeDetail {
			// Сделку удалили на сервере: убираем её из деталей.
			d.store.Replace(f, nil)
			return err
		}
		if errors.Is(err, context.Canceled) {
			log.Debug("desk: запрос отменён")
			return err
		}
		log.WithError(err).Warn("desk: не удалось загрузить сделки")
		return err
	}

	d.store.Replace(f, trades)

	// Представление могли закрыть, пока применялся ответ.
	if d.view(v.scope) != v {
		d.store.Release(v.scope)
	}
	return nil
}

// refresh перечитывает открытые области из списка. Закрытые пропускаются.
func (d *Desk) refresh(ctx context.Context, scopes ...store.Scope) error {
	var firstErr error
	for _, scope := range scopes {
		v := d.view(scope)
		if v == nil {
			continue
		}
		if err := d.fetch(ctx, v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// refreshAll - полный рефетч всех открытых представлений после команды.
func (d *Desk) refreshAll(ctx context.Context) {
	d.mu.Lock()
	scopes := make([]store.Scope, 0, len(d.views))
	for scope := range d.views {
		scopes = append(scopes, scope)
	}
	d.mu.Unlock()

	_ = d.refresh(ctx, scopes...)
}

func (d *Desk) refreshAfterExpiry(ctx context.Context, tradeID int64) {
	_ = d.refresh(ctx, store.DetailScope(tradeID), store.ActiveScope)
}

// Marketplace возвращает объявления по фильтру. Смена фильтра закрывает прежний листинг.
func (d *Desk) Marketplace(ctx context.Context, filter store.MarketFilter) ListView {
	scope := store.MarketplaceScope(filter)
	load := func(ctx context.Context) ([]*entity.Trade, error) {
		return d.gw.ListTrades(ctx, gateway.ListParams{
			Type:          filter.Type,
			PaymentMethod: filter.PaymentMethod,
			Amount:        filter.MinAmount,
		})
	}

	d.mu.Lock()
	previous := d.market
	d.market = scope
	v := d.openScopeLocked(scope, load)
	d.mu.Unlock()

	if previous != (store.Scope{}) && previous != scope {
		d.closeScope(previous)
	}

	err := d.fetch(ctx, v)
	if err == nil {
		d.store.Release(store.LiveScope)
	}
	return d.listView(d.store.Marketplace(filter), err)
}

// Active возвращает сделки в процессе, где пользователь участник.
func (d *Desk) Active(ctx context.Context) ListView {
	d.mu.Lock()
	v := d.openScopeLocked(store.ActiveScope, func(ctx context.Context) ([]*entity.Trade, error) {
		return d.gw.UserTrades(ctx, valueobject.TradeStatusProcessing)
	})
	d.mu.Unlock()

	err := d.fetch(ctx, v)
	d.syncCountdowns()
	return d.listView(d.store.Active(d.Viewer().ID), err)
}

// History возвращает все сделки пользователя или только с указанным статусом.
func (d *Desk) History(ctx context.Context, status valueobject.TradeStatus) (ListView, error) {
	if status != "" && !status.IsValid() {
		return ListView{}, apperror.New(apperror.ErrCodeValidation, "неизвестный статус сделки")
	}

	scope := store.UserScope(string(status))
	d.mu.Lock()
	previous := d.history
	d.history = scope
	v := d.openScopeLocked(scope, func(ctx context.Context) ([]*entity.Trade, error) {
		return d.gw.UserTrades(ctx, status)
	})
	d.mu.Unlock()

	if previous != (store.Scope{}) && previous != scope {
		d.closeScope(previous)
	}

	err := d.fetch(ctx, v)
	return d.listView(d.store.History(d.Viewer().ID, status), err), nil
}

// OpenDashboard отмечает, что окно интерфейса подключено: пока открыт хотя бы
// один дашборд, активные сделки опрашиваются по таймеру, а публичный канал
// добавляет новые объявления. Возвращает функцию закрытия. Закрытие последнего
// дашборда закрывает и списки: маркетплейс, активные сделки и историю.
func (d *Desk) OpenDashboard() func() {
	d.mu.Lock()
	d.sessions++
	if d.sessions == 1 {
		d.openScopeLocked(store.ActiveScope, func(ctx context.Context) ([]*entity.Trade, error) {
			return d.gw.UserTrades(ctx, valueobject.TradeStatusProcessing)
		})

		ctx, cancel := context.WithCancel(d.root)
		unwatch := d.rt.WatchListing(store.Listing)
		done := make(chan struct{})
		goroutine.SafeGo(func() {
			defer close(done)
			d.pollActive(ctx)
		})
		d.stopDash = func() {
			cancel()
			<-done
			unwatch()
		}
	}
	d.mu.Unlock()

	closed := false
	return func() {
		d.mu.Lock()
		if closed || d.sessions == 0 {
			d.mu.Unlock()
			return
		}
		closed = true
		d.sessions--
		var stop func()
		if d.sessions == 0 {
			stop = d.stopDash
			d.stopDash = nil
		}
		d.mu.Unlock()

		if stop != nil {
			stop()
			d.closeLists()
		}
	}
}

// closeLists закрывает списочные представления, если дашбордов не осталось.
// Детали закрываются отдельно.
func (d *Desk) closeLists() {
	d.mu.Lock()
	if d.sessions > 0 {
		d.mu.Unlock()
		return
	}
	closing := make([]*scopeView, 0, len(d.views))
	for scope, v := range d.views {
		if scope.Kind == store.ScopeDetail {
			continue
		}
		closing = append(closing, v)
		delete(d.views, scope)
	}
	d.market, d.history = store.Scope{}, store.Scope{}
	d.mu.Unlock()

	for _, v := range closing {
		v.cancel()
		d.store.Release(v.scope)
	}
	d.store.Release(store.LiveScope)
	d.syncCountdowns()
}

func (d *Desk) pollActive(ctx context.Context) {
	_ = d.refresh(ctx, store.ActiveScope)

	ticker := d.clk.Ticker(d.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := time.Now()
			_ = d.refresh(ctx, store.ActiveScope)
			logger.L().WithField("duration", time.Since(started).String()).Debug("desk: активные сделки обновлены")
		}
	}
}
