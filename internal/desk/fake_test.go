package desk_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/gateway"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/storage"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// backend - сервер сделок в памяти, общий для нескольких пользователей.
type backend struct {
	mu       sync.Mutex
	clk      clock.Clock
	nextID   int64
	trades   map[int64]*entity.Trade
	calls    map[string]int
	failures map[string]error
	listHook func(gateway.ListParams)
}

func newBackend(clk clock.Clock) *backend {
	return &backend{
		clk:      clk,
		trades:   make(map[int64]*entity.Trade),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

func (b *backend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *backend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *backend) fail(name string, err error) {
	b.mu.Lock()
	b.failures[name] = err
	b.mu.Unlock()
}

func (b *backend) put(t *entity.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t.ID == 0 {
		b.nextID++
		t.ID = b.nextID
	} else if t.ID > b.nextID {
		b.nextID = t.ID
	}
	b.trades[t.ID] = t.Clone()
}

func (b *backend) trade(id int64) *entity.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.trades[id]; ok {
		return t.Clone()
	}
	return nil
}

// begin учитывает вызов и возвращает заранее заданную ошибку. Вызывается под b.mu.
func (b *backend) begin(name string) error {
	b.calls[name]++
	if err, ok := b.failures[name]; ok {
		delete(b.failures, name)
		return err
	}
	return nil
}

func notFound() error {
	return apperror.Wrap(errors.New("404"), apperror.ErrCodeNotFound, "Trade not found")
}

func ptr[T any](v T) *T { return &v }

type fakeGateway struct {
	b      *backend
	viewer entity.Viewer
}

func (g *fakeGateway) ListTrades(ctx context.Context, params gateway.ListParams) ([]*entity.Trade, error) {
	g.b.mu.Lock()
	hook := g.b.listHook
	g.b.mu.Unlock()
	if hook != nil {
		hook(params)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin("list"); err != nil {
		return nil, err
	}
	out := make([]*entity.Trade, 0)
	for _, t := range g.b.trades {
		if t.Status != valueobject.TradeStatusActive {
			continue
		}
		if params.Type != "" && t.Type != params.Type {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

func (g *fakeGateway) UserTrades(_ context.Context, status valueobject.TradeStatus) ([]*entity.Trade, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin("user"); err != nil {
		return nil, err
	}
	out := make([]*entity.Trade, 0)
	for _, t := range g.b.trades {
		if !t.IsParty(g.viewer.ID) && !t.IsOwnedBy(g.viewer.ID) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

func (g *fakeGateway) GetTrade(_ context.Context, id int64) (*entity.Trade, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin("get"); err != nil {
		return nil, err
	}
	t, ok := g.b.trades[id]
	if !ok {
		return nil, notFound()
	}
	return t.Clone(), nil
}

func (g *fakeGateway) CreateTrade(_ context.Context, in entity.CreateTradeInput) (*entity.Trade, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin("create"); err != nil {
		return nil, err
	}
	g.b.nextID++
	t := &entity.Trade{
		ID:                  g.b.nextID,
		UserID:              g.viewer.ID,
		Type:                in.Type,
		Amount:              in.Amount,
		Price:               in.Price,
		PaymentMethod:       in.PaymentMethod,
		CustomPaymentMethod: in.CustomPaymentMethod,
		PaymentDetails:      in.PaymentDetails,
		TimeLimit:           in.TimeLimit,
		Status:              valueobject.TradeStatusActive,
		CreatedAt:           g.b.clk.Now(),
	}
	if in.Type == valueobject.TradeTypeSell {
		t.SellerID = ptr(g.viewer.ID)
	} else {
		t.BuyerID = ptr(g.viewer.ID)
	}
	g.b.trades[t.ID] = t
	return t.Clone(), nil
}

func (g *fakeGateway) mutate(name string, id int64, fn func(t *entity.Trade) error) error {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin(name); err != nil {
		return err
	}
	t, ok := g.b.trades[id]
	if !ok {
		return notFound()
	}
	return fn(t)
}

func (g *fakeGateway) Initiate(_ context.Context, id int64) error {
	return g.mutate("initiate", id, func(t *entity.Trade) error {
		if t.Status != valueobject.TradeStatusActive {
			return apperror.Wrap(errors.New("409"), apperror.ErrCodeStaleState, "Trade is no longer active")
		}
		if t.SellerID == nil {
			t.SellerID = ptr(g.viewer.ID)
		} else {
			t.BuyerID = ptr(g.viewer.ID)
		}
		t.Status = valueobject.TradeStatusProcessing
		t.ExpiresAt = ptr(g.b.clk.Now().Add(time.Duration(t.TimeLimit) * time.Minute))
		return nil
	})
}

func (g *fakeGateway) UploadProof(_ context.Context, id int64, file *storage.ProofFile, description string) error {
	return g.mutate("upload", id, func(t *entity.Trade) error {
		t.Proofs = append(t.Proofs, entity.Proof{
			ID:          int64(len(t.Proofs) + 1),
			FilePath:    "p2p-proofs/" + file.Name,
			Description: description,
			CreatedAt:   g.b.clk.Now(),
		})
		return nil
	})
}

func (g *fakeGateway) MarkPaymentSent(_ context.Context, id int64) error {
	return g.mutate("mark_paid", id, func(t *entity.Trade) error {
		t.PaidAt = ptr(g.b.clk.Now())
		return nil
	})
}

func (g *fakeGateway) ConfirmPayment(_ context.Context, id int64) error {
	return g.mutate("confirm", id, func(t *entity.Trade) error {
		t.Status = valueobject.TradeStatusCompleted
		t.CompletedAt = ptr(g.b.clk.Now())
		return nil
	})
}

func (g *fakeGateway) Cancel(_ context.Context, id int64, reason string) error {
	return g.mutate("cancel", id, func(t *entity.Trade) error {
		t.Status = valueobject.TradeStatusCancelled
		t.CancellationReason = ptr(reason)
		t.CancelledAt = ptr(g.b.clk.Now())
		return nil
	})
}

func (g *fakeGateway) Delete(_ context.Context, id int64) error {
	return g.mutate("delete", id, func(t *entity.Trade) error {
		delete(g.b.trades, id)
		return nil
	})
}

func (g *fakeGateway) SendMessage(_ context.Context, id int64, text string) (*entity.Message, error) {
	var msg entity.Message
	err := g.mutate("message", id, func(t *entity.Trade) error {
		msg = entity.Message{
			ID:        int64(len(t.Messages) + 1),
			TradeID:   id,
			UserID:    g.viewer.ID,
			Message:   text,
			CreatedAt: g.b.clk.Now(),
		}
		t.Messages = append(t.Messages, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (g *fakeGateway) Profile(context.Context) (*entity.Viewer, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if err := g.b.begin("profile"); err != nil {
		return nil, err
	}
	v := g.viewer
	return &v, nil
}

// fakeRealtime считает ссылки на подписки.
type fakeRealtime struct {
	mu      sync.Mutex
	listing map[store.PatchMode]int
	trades  map[int64]int
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{listing: make(map[store.PatchMode]int), trades: make(map[int64]int)}
}

func (r *fakeRealtime) WatchListing(mode store.PatchMode) func() {
	r.mu.Lock()
	r.listing[mode]++
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.listing[mode]--
			r.mu.Unlock()
		})
	}
}

func (r *fakeRealtime) WatchTrade(id int64) func() {
	r.mu.Lock()
	r.trades[id]++
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.trades[id]--
			r.mu.Unlock()
		})
	}
}

func (r *fakeRealtime) tradeRefs(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trades[id]
}

func (r *fakeRealtime) listingRefs(mode store.PatchMode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listing[mode]
}

// events собирает уведомления интерфейсу.
type events struct {
	mu   sync.Mutex
	list []string
	data []any
}

func (e *events) notify(event string, data any) {
	e.mu.Lock()
	e.list = append(e.list, event)
	e.data = append(e.data, data)
	e.mu.Unlock()
}

func (e *events) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, name := range e.list {
		if name == event {
			n++
		}
	}
	return n
}
