package handlers

import (
	"context"
	"io"

	"github.com/ignatzorin/p2p-desk/internal/desk"
	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// Desk - контроллер представлений, который обслуживают хэндлеры.
type Desk interface {
	Viewer() entity.Viewer

	Marketplace(ctx context.Context, filter store.MarketFilter) desk.ListView
	Active(ctx context.Context) desk.ListView
	History(ctx context.Context, status valueobject.TradeStatus) (desk.ListView, error)
	OpenDetail(ctx context.Context, tradeID int64) (desk.DetailView, error)
	Detail(tradeID int64) (desk.DetailView, bool)
	CloseDetail()
	OpenDashboard() func()

	Create(ctx context.Context, in entity.CreateTradeInput) (*entity.Trade, error)
	Initiate(ctx context.Context, tradeID int64) error
	UploadProof(ctx context.Context, tradeID int64, fileName string, r io.Reader, description string) error
	MarkPaymentSent(ctx context.Context, tradeID int64) error
	ConfirmPayment(ctx context.Context, tradeID int64) error
	Cancel(ctx context.Context, tradeID int64, reason string) error
	Delete(ctx context.Context, tradeID int64) error
	SendMessage(ctx context.Context, tradeID int64, text string) (*entity.Message, error)

	ViewState() desk.ViewState
	Transition(ctx context.Context, to desk.ViewState) (desk.ViewState, error)
}

var _ Desk = (*desk.Desk)(nil)
