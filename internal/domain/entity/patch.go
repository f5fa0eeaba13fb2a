package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
)

// TradePatch - частичное обновление сделки из канала реального времени.
// nil означает, что поле в событии отсутствовало.
type TradePatch struct {
	ID                  int64                      `json:"id"`
	UserID              *int64                     `json:"user_id"`
	Type                *valueobject.TradeType     `json:"type"`
	SellerID            *int64                     `json:"seller_id"`
	BuyerID             *int64                     `json:"buyer_id"`
	Amount              *decimal.Decimal           `json:"amount"`
	Price               *decimal.Decimal           `json:"price"`
	PaymentMethod       *valueobject.PaymentMethod `json:"payment_method"`
	CustomPaymentMethod *string                    `json:"custom_payment_method"`
	PaymentDetails      *string                    `json:"payment_details"`
	TimeLimit           *int                       `json:"time_limit"`
	Status              *valueobject.TradeStatus   `json:"status"`
	CreatedAt           *time.Time                 `json:"created_at"`
	ExpiresAt           *time.Time                 `json:"expires_at"`
	PaidAt              *time.Time                 `json:"paid_at"`
	CompletedAt         *time.Time                 `json:"completed_at"`
	CancelledAt         *time.Time                 `json:"cancelled_at"`
	CancellationReason  *string                    `json:"cancellation_reason"`
	Dispute             *Dispute                   `json:"dispute"`
	Proofs              []Proof                    `json:"proofs"`
	Messages            []Message                  `json:"messages"`
	Seller              *Counterparty              `json:"seller"`
	Buyer               *Counterparty              `json:"buyer"`
}

// MergeResult описывает итог слияния патча.
type MergeResult struct {
	Changed        bool
	StatusRejected bool
	PreviousStatus valueobject.TradeStatus
}

// ToTrade строит сделку из патча для вставки в листинг.
func (p *TradePatch) ToTrade() *Trade {
	t := &Trade{ID: p.ID}
	t.Merge(p)
	return t
}

// Merge применяет патч поле за полем. Статус меняется только по разрешённому
// переходу, доказательства и сообщения только дополняются.
func (t *Trade) Merge(p *TradePatch) MergeResult {
	res := MergeResult{PreviousStatus: t.Status}
	if p == nil || (t.ID != 0 && p.ID != t.ID) {
		return res
	}

	set := func(changed bool) {
		if changed {
			res.Changed = true
		}
	}

	if p.UserID != nil && *p.UserID != t.UserID {
		t.UserID = *p.UserID
		res.Changed = true
	}
	if p.Type != nil && *p.Type != t.Type {
		t.Type = *p.Type
		res.Changed = true
	}
	if p.SellerID != nil && !equalInt64(t.SellerID, p.SellerID) {
		t.SellerID = cloneInt64(p.SellerID)
		res.Changed = true
	}
	if p.BuyerID != nil && !equalInt64(t.BuyerID, p.BuyerID) {
		t.BuyerID = cloneInt64(p.BuyerID)
		res.Changed = true
	}
	if p.Amount != nil && !p.Amount.Equal(t.Amount) {
		t.Amount = *p.Amount
		res.Changed = true
	}
	if p.Price != nil && !p.Price.Equal(t.Price) {
		t.Price = *p.Price
		res.Changed = true
	}
	if p.PaymentMethod != nil && *p.PaymentMethod != t.PaymentMethod {
		t.PaymentMethod = *p.PaymentMethod
		res.Changed = true
	}
	if p.CustomPaymentMethod != nil && *p.CustomPaymentMethod != t.CustomPaymentMethod {
		t.CustomPaymentMethod = *p.CustomPaymentMethod
		res.Changed = true
	}
	if p.PaymentDetails != nil && *p.PaymentDetails != t.PaymentDetails {
		t.PaymentDetails = *p.PaymentDetails
		res.Changed = true
	}
	if p.TimeLimit != nil && *p.TimeLimit != t.TimeLimit {
		t.TimeLimit = *p.TimeLimit
		res.Changed = true
	}
	if p.CreatedAt != nil && !p.CreatedAt.Equal(t.CreatedAt) {
		t.CreatedAt = *p.CreatedAt
		res.Changed = true
	}

	if p.Status != nil && *p.Status != t.Status {
		if t.Status == "" || t.Status.CanTransitionTo(*p.Status) {
			t.Status = *p.Status
			res.Changed = true
		} else {
			res.StatusRejected = true
		}
	}

	set(mergeTime(&t.ExpiresAt, p.ExpiresAt))
	set(mergeTime(&t.PaidAt, p.PaidAt))
	set(mergeTime(&t.CompletedAt, p.CompletedAt))
	set(mergeTime(&t.CancelledAt, p.CancelledAt))

	if p.CancellationReason != nil && (t.CancellationReason == nil || *t.CancellationReason != *p.CancellationReason) {
		r := *p.CancellationReason
		t.CancellationReason = &r
		res.Changed = true
	}
	if p.Dispute != nil && !t.Dispute.Equal(p.Dispute) {
		d := p.Dispute.clone()
		t.Dispute = &d
		res.Changed = true
	}
	if p.Seller != nil && (t.Seller == nil || *t.Seller != *p.Seller) {
		s := *p.Seller
		t.Seller = &s
		res.Changed = true
	}
	if p.Buyer != nil && (t.Buyer == nil || *t.Buyer != *p.Buyer) {
		b := *p.Buyer
		t.Buyer = &b
		res.Changed = true
	}

	set(t.AppendProofs(p.Proofs...))
	set(t.AppendMessages(p.Messages...))

	return res
}

// AppendProofs добавляет доказательства, которых ещё нет (по id).
func (t *Trade) AppendProofs(proofs ...Proof) bool {
	added := false
	for _, proof := range proofs {
		if proof.ID != 0 && t.hasProof(proof.ID) {
			continue
		}
		t.Proofs = append(t.Proofs, proof)
		added = true
	}
	return added
}

// AppendMessages добавляет сообщения чата, которых ещё нет (по id).
func (t *Trade) AppendMessages(messages ...Message) bool {
	added := false
	for _, msg := range messages {
		if msg.ID != 0 && t.hasMessage(msg.ID) {
			continue
		}
		t.Messages = append(t.Messages, msg)
		added = true
	}
	return added
}

func (t *Trade) hasProof(id int64) bool {
	for _, p := range t.Proofs {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (t *Trade) hasMessage(id int64) bool {
	for _, m := range t.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func mergeTime(dst **time.Time, src *time.Time) bool {
	if src == nil {
		return false
	}
	if *dst != nil && (*dst).Equal(*src) {
		return false
	}
	*dst = cloneTime(src)
	return true
}

// Equal сравнивает споры по значению, nil равен только nil.
func (d *Dispute) Equal(other *Dispute) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.Reason != other.Reason || d.Status != other.Status {
		return false
	}
	if d.Resolution == nil || other.Resolution == nil {
		return d.Resolution == other.Resolution
	}
	return *d.Resolution == *other.Resolution
}

func (d *Dispute) clone() Dispute {
	c := *d
	if d.Resolution != nil {
		r := *d.Resolution
		c.Resolution = &r
	}
	return c
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
