package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

func ptr[T any](v T) *T { return &v }

func trade(id int64, status valueobject.TradeStatus, seller int64, buyer *int64) *entity.Trade {
	return &entity.Trade{
		ID:            id,
		UserID:        seller,
		Type:          valueobject.TradeTypeSell,
		SellerID:      ptr(seller),
		BuyerID:       buyer,
		Amount:        decimal.NewFromInt(100),
		Price:         decimal.RequireFromString("1.5"),
		PaymentMethod: valueobject.PaymentWise,
		Status:        status,
		CreatedAt:     time.Unix(id, 0),
	}
}

func TestStore_ReplaceAndDerivedViews(t *testing.T) {
	s := store.New()
	f := s.BeginFetch(store.UserScope(""))
	ok := s.Replace(f, []*entity.Trade{
		trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20))),
		trade(2, valueobject.TradeStatusCompleted, 10, ptr(int64(20))),
		trade(3, valueobject.TradeStatusActive, 10, nil),
		trade(4, valueobject.TradeStatusProcessing, 30, ptr(int64(40))),
	})
	require.True(t, ok)

	active := s.Active(20)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)

	assert.Len(t, s.History(10, ""), 3)
	completed := s.History(10, valueobject.TradeStatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, int64(2), completed[0].ID)

	market := s.Marketplace(store.MarketFilter{Type: valueobject.TradeTypeSell})
	require.Len(t, market, 1)
	assert.Equal(t, int64(3), market[0].ID)
	assert.Empty(t, s.Marketplace(store.MarketFilter{Type: valueobject.TradeTypeBuy}))
}

func TestStore_StaleResponseIsDiscarded(t *testing.T) {
	s := store.New()
	scope := store.UserScope("")

	first := s.BeginFetch(scope)
	second := s.BeginFetch(scope)

	require.True(t, s.Replace(second, []*entity.Trade{trade(1, valueobject.TradeStatusCompleted, 10, ptr(int64(20)))}))
	assert.False(t, s.Replace(first, []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, valueobject.TradeStatusCompleted, got.Status)
}

func TestStore_FetchDoesNotOverwriteNewerPatch(t *testing.T) {
	s := store.New()
	scope := store.UserScope("")
	require.True(t, s.Replace(s.BeginFetch(scope), []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))

	inFlight := s.BeginFetch(scope)
	s.ApplyPatch(&entity.TradePatch{ID: 1, Status: ptr(valueobject.TradeStatusCompleted)}, store.DetailOnly)

	require.True(t, s.Replace(inFlight, []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))
	got, _ := s.Get(1)
	assert.Equal(t, valueobject.TradeStatusCompleted, got.Status)
}

func TestStore_IdenticalEmbeddedPatchKeepsFetchApplicable(t *testing.T) {
	s := store.New()
	scope := store.UserScope("")
	withSeller := trade(1, valueobject.TradeStatusActive, 10, nil)
	withSeller.Seller = &entity.Counterparty{ID: 10, Username: "alice"}
	require.True(t, s.Replace(s.BeginFetch(scope), []*entity.Trade{withSeller}))

	changes := 0
	unsubscribe := s.Subscribe(func(store.Change) { changes++ })
	defer unsubscribe()

	inFlight := s.BeginFetch(scope)
	assert.False(t, s.ApplyPatch(&entity.TradePatch{ID: 1, Seller: &entity.Counterparty{ID: 10, Username: "alice"}}, store.DetailOnly))
	assert.Zero(t, changes)

	fresh := trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))
	require.True(t, s.Replace(inFlight, []*entity.Trade{fresh}))
	got, _ := s.Get(1)
	assert.Equal(t, valueobject.TradeStatusProcessing, got.Status, "ответ запроса применяется к сделке")
}

func TestStore_PatchUnknownID(t *testing.T) {
	s := store.New()
	patch := &entity.TradePatch{
		ID:     99,
		Type:   ptr(valueobject.TradeTypeSell),
		Status: ptr(valueobject.TradeStatusActive),
		Amount: ptr(decimal.NewFromInt(5)),
	}

	assert.False(t, s.ApplyPatch(patch, store.DetailOnly))
	assert.Equal(t, 0, s.Len())

	assert.True(t, s.ApplyPatch(patch, store.Listing))
	got, ok := s.Get(99)
	require.True(t, ok)
	assert.Equal(t, valueobject.TradeStatusActive, got.Status)
	assert.Len(t, s.Marketplace(store.MarketFilter{Type: valueobject.TradeTypeSell}), 1)
}

func TestStore_PatchIsIdempotent(t *testing.T) {
	s := store.New()
	require.True(t, s.Replace(s.BeginFetch(store.UserScope("")), []*entity.Trade{trade(1, valueobject.TradeStatusActive, 10, nil)}))

	patch := &entity.TradePatch{ID: 1, BuyerID: ptr(int64(20)), Status: ptr(valueobject.TradeStatusProcessing)}
	assert.True(t, s.ApplyPatch(patch, store.Listing))
	assert.False(t, s.ApplyPatch(patch, store.Listing))
	assert.Len(t, s.Active(20), 1)
}

func TestStore_CompletedTradeLeavesActiveView(t *testing.T) {
	s := store.New()
	require.True(t, s.Replace(s.BeginFetch(store.UserScope("")), []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))
	require.Len(t, s.Active(10), 1)

	s.ApplyPatch(&entity.TradePatch{ID: 1, Status: ptr(valueobject.TradeStatusCompleted)}, store.DetailOnly)
	assert.Empty(t, s.Active(10))
	assert.Len(t, s.History(10, valueobject.TradeStatusCompleted), 1)
}

func TestStore_ReplaceDropsUnreferenced(t *testing.T) {
	s := store.New()
	user := store.UserScope("")
	detail := store.DetailScope(1)

	require.True(t, s.Replace(s.BeginFetch(user), []*entity.Trade{
		trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20))),
		trade(2, valueobject.TradeStatusProcessing, 10, ptr(int64(20))),
	}))
	require.True(t, s.Replace(s.BeginFetch(detail), []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))

	require.True(t, s.Replace(s.BeginFetch(user), nil))
	_, ok := s.Get(1)
	assert.True(t, ok, "сделка открыта в деталях")
	_, ok = s.Get(2)
	assert.False(t, ok)

	s.Release(detail)
	assert.Equal(t, 0, s.Len())
}

func TestStore_AppendMessage(t *testing.T) {
	s := store.New()
	assert.False(t, s.AppendMessage(1, entity.Message{ID: 1}))

	require.True(t, s.Replace(s.BeginFetch(store.DetailScope(1)), []*entity.Trade{trade(1, valueobject.TradeStatusProcessing, 10, ptr(int64(20)))}))
	assert.True(t, s.AppendMessage(1, entity.Message{ID: 1, Message: "привет"}))
	assert.False(t, s.AppendMessage(1, entity.Message{ID: 1, Message: "привет"}))

	got, _ := s.Get(1)
	assert.Len(t, got.Messages, 1)
}

func TestStore_SubscribersNotified(t *testing.T) {
	s := store.New()
	var mu sync.Mutex
	var changes []store.Change
	unsubscribe := s.Subscribe(func(c store.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	s.Replace(s.BeginFetch(store.UserScope("")), []*entity.Trade{trade(1, valueobject.TradeStatusActive, 10, nil)})
	s.ApplyPatch(&entity.TradePatch{ID: 1, PaymentDetails: ptr("IBAN")}, store.DetailOnly)
	unsubscribe()
	s.ApplyPatch(&entity.TradePatch{ID: 1, PaymentDetails: ptr("IBAN 2")}, store.DetailOnly)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 2)
	assert.Equal(t, store.ChangeReplaced, changes[0].Kind)
	assert.Equal(t, store.ChangePatched, changes[1].Kind)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := store.New()
	s.Replace(s.BeginFetch(store.UserScope("")), []*entity.Trade{trade(1, valueobject.TradeStatusActive, 10, nil)})

	got, _ := s.Get(1)
	got.Status = valueobject.TradeStatusCancelled

	again, _ := s.Get(1)
	assert.Equal(t, valueobject.TradeStatusActive, again.Status)
}
