package desk

import (
	"context"
	"sync"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// detailView - открытые детали одной сделки: подписки на каналы живут, пока оно открыто.
type detailView struct {
	id    int64
	scope store.Scope

	mu             sync.Mutex
	closed         bool
	unwatchListing func()
	unwatchTrade   func()
}

// OpenDetail открывает детали сделки. Детали другой сделки закрываются.
func (d *Desk) OpenDetail(ctx context.Context, tradeID int64) (DetailView, error) {
	if tradeID <= 0 {
		return DetailView{}, apperror.ErrTradeNotFound
	}

	d.mu.Lock()
	previous := d.detail
	reuse := previous != nil && previous.id == tradeID
	d.mu.Unlock()

	if !reuse {
		d.closeDetail()

		dv := &detailView{id: tradeID, scope: store.DetailScope(tradeID)}
		d.mu.Lock()
		d.detail = dv
		d.openScopeLocked(dv.scope, func(ctx context.Context) ([]*entity.Trade, error) {
			trade, err := d.gw.GetTrade(ctx, tradeID)
			if err != nil {
				return nil, err
			}
			return []*entity.Trade{trade}, nil
		})
		d.mu.Unlock()

		dv.mu.Lock()
		dv.unwatchListing = d.rt.WatchListing(store.DetailOnly)
		dv.mu.Unlock()
	}

	v := d.view(store.DetailScope(tradeID))
	if v == nil {
		return DetailView{}, apperror.ErrViewNotOpen
	}
	err := d.fetch(ctx, v)
	if dv := d.currentDetail(tradeID); dv != nil {
		d.syncDetail(dv)
	}
	d.syncCountdowns()

	view, ok := d.Detail(tradeID)
	if !ok {
		if err != nil {
			return DetailView{}, err
		}
		return DetailView{}, apperror.ErrTradeNotFound
	}
	if err != nil {
		view.Error = apperror.UserMessage(err, "Не удалось обновить сделку")
	}
	return view, nil
}

// CloseDetail закрывает детали: отписка от канала сделки, остановка таймера.
func (d *Desk) CloseDetail() {
	d.closeDetail()

	d.mu.Lock()
	if d.viewState.DetailID() != 0 {
		d.viewState = Closed()
	}
	state := d.viewState
	d.mu.Unlock()
	d.notify(EventViewState, state)
}

func (d *Desk) closeDetail() {
	d.mu.Lock()
	dv := d.detail
	d.detail = nil
	d.mu.Unlock()
	if dv == nil {
		return
	}

	dv.mu.Lock()
	dv.closed = true
	unwatchListing, unwatchTrade := dv.unwatchListing, dv.unwatchTrade
	dv.unwatchListing, dv.unwatchTrade = nil, nil
	dv.mu.Unlock()

	if unwatchTrade != nil {
		unwatchTrade()
	}
	if unwatchListing != nil {
		unwatchListing()
	}
	d.closeScope(dv.scope)
	d.syncCountdowns()
	logger.Trade(dv.id).Debug("desk: детали закрыты")
}

func (d *Desk) currentDetail(tradeID int64) *detailView {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detail != nil && d.detail.id == tradeID {
		return d.detail
	}
	return nil
}

// syncDetail подписывает детали на приватный канал, пока сделка в процессе.
func (d *Desk) syncDetail(dv *detailView) {
	trade, ok := d.store.Get(dv.id)
	processing := ok && trade.Status == valueobject.TradeStatusProcessing

	var unwatch func()
	dv.mu.Lock()
	switch {
	case dv.closed:
	case processing && dv.unwatchTrade == nil:
		dv.unwatchTrade = d.rt.WatchTrade(dv.id)
	case !processing && dv.unwatchTrade != nil:
		unwatch = dv.unwatchTrade
		dv.unwatchTrade = nil
	}
	dv.mu.Unlock()

	// Отписка может ждать обработчик канала, который сам синхронизирует детали.
	if unwatch != nil {
		unwatch()
	}
}

// Detail строит представление сделки из стора без запроса к серверу.
func (d *Desk) Detail(tradeID int64) (DetailView, bool) {
	trade, ok := d.store.Get(tradeID)
	if !ok {
		return DetailView{}, false
	}

	view := DetailView{
		TradeCard: d.card(trade),
		Flags:     d.Flags(tradeID),
		Messages:  trade.Messages,
		Proofs:    make([]ProofView, 0, len(trade.Proofs)),
	}
	if view.Messages == nil {
		view.Messages = []entity.Message{}
	}
	for _, p := range trade.Proofs {
		view.Proofs = append(view.Proofs, ProofView{Proof: p, URL: d.proofs.URL(p.FilePath)})
	}
	return view, true
}
