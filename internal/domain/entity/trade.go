package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/validation"
)

// Trade - P2P сделка в том виде, в котором её отдаёт сервер.
type Trade struct {
	ID                  int64                     `json:"id"`
	UserID              int64                     `json:"user_id"`
	Type                valueobject.TradeType     `json:"type"`
	SellerID            *int64                    `json:"seller_id"`
	BuyerID             *int64                    `json:"buyer_id"`
	Amount              decimal.Decimal           `json:"amount"`
	Price               decimal.Decimal           `json:"price"`
	PaymentMethod       valueobject.PaymentMethod `json:"payment_method"`
	CustomPaymentMethod string                    `json:"custom_payment_method,omitempty"`
	PaymentDetails      string                    `json:"payment_details"`
	TimeLimit           int                       `json:"time_limit"`
	Status              valueobject.TradeStatus   `json:"status"`
	CreatedAt           time.Time                 `json:"created_at"`
	ExpiresAt           *time.Time                `json:"expires_at"`
	PaidAt              *time.Time                `json:"paid_at"`
	CompletedAt         *time.Time                `json:"completed_at"`
	CancelledAt         *time.Time                `json:"cancelled_at"`
	CancellationReason  *string                   `json:"cancellation_reason"`
	Dispute             *Dispute                  `json:"dispute"`

	Proofs   []Proof   `json:"proofs"`
	Messages []Message `json:"messages"`

	Seller *Counterparty `json:"seller"`
	Buyer  *Counterparty `json:"buyer"`
}

type Proof struct {
	ID          int64     `json:"id"`
	FilePath    string    `json:"file_path"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type Message struct {
	ID        int64         `json:"id"`
	TradeID   int64         `json:"p2p_trade_id"`
	UserID    int64         `json:"user_id"`
	Message   string        `json:"message"`
	IsSystem  bool          `json:"is_system"`
	CreatedAt time.Time     `json:"created_at"`
	User      *Counterparty `json:"user,omitempty"`
}

type Dispute struct {
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	Resolution *string `json:"resolution,omitempty"`
}

// Counterparty - снимок публичных данных участника, встроенный сервером.
type Counterparty struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	SuccessRate     float64 `json:"success_rate"`
	CompletedTrades int     `json:"completed_trades"`
}

// Viewer - текущий пользователь десктопа.
type Viewer struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	KYCVerified bool            `json:"kyc_verified"`
	Balance     decimal.Decimal `json:"balance"`
}

// Total всегда пересчитывается из amount и price.
func (t *Trade) Total() decimal.Decimal {
	return valueobject.Total(t.Amount, t.Price)
}

// FormattedTotal - итог для отображения ("150.00").
func (t *Trade) FormattedTotal() string {
	return valueobject.FormatTotal(t.Amount, t.Price)
}

// OwnerID возвращает создателя объявления.
func (t *Trade) OwnerID() int64 {
	if t.UserID != 0 {
		return t.UserID
	}
	if t.Type == valueobject.TradeTypeBuy && t.BuyerID != nil {
		return *t.BuyerID
	}
	if t.SellerID != nil {
		return *t.SellerID
	}
	return 0
}

func (t *Trade) IsOwnedBy(userID int64) bool {
	return userID != 0 && t.OwnerID() == userID
}

func (t *Trade) IsSeller(userID int64) bool {
	return userID != 0 && t.SellerID != nil && *t.SellerID == userID
}

func (t *Trade) IsBuyer(userID int64) bool {
	return userID != 0 && t.BuyerID != nil && *t.BuyerID == userID
}

// IsParty сообщает, участвует ли пользователь в сделке как продавец или покупатель.
func (t *Trade) IsParty(userID int64) bool {
	return t.IsSeller(userID) || t.IsBuyer(userID)
}

func (t *Trade) IsPaid() bool {
	return t.PaidAt != nil
}

// IsExpired - срок оплаты истёк по локальным часам. Только для отображения:
// окончательно решает сервер.
func (t *Trade) IsExpired(now time.Time) bool {
	if t.Status != valueobject.TradeStatusProcessing || t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// PaymentLabel возвращает подпись способа оплаты.
func (t *Trade) PaymentLabel() string {
	return t.PaymentMethod.Label(t.CustomPaymentMethod)
}

// Counterparty возвращает данные второй стороны относительно пользователя.
func (t *Trade) CounterpartyFor(userID int64) *Counterparty {
	if t.IsSeller(userID) {
		return t.Buyer
	}
	if t.IsBuyer(userID) {
		return t.Seller
	}
	if t.Type == valueobject.TradeTypeBuy {
		return t.Buyer
	}
	return t.Seller
}

// Clone делает глубокую копию, чтобы читатели стора не видели последующих слияний.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	c := *t
	c.SellerID = cloneInt64(t.SellerID)
	c.BuyerID = cloneInt64(t.BuyerID)
	c.ExpiresAt = cloneTime(t.ExpiresAt)
	c.PaidAt = cloneTime(t.PaidAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.CancelledAt = cloneTime(t.CancelledAt)
	if t.CancellationReason != nil {
		r := *t.CancellationReason
		c.CancellationReason = &r
	}
	if t.Dispute != nil {
		d := *t.Dispute
		c.Dispute = &d
	}
	c.Proofs = append([]Proof(nil), t.Proofs...)
	c.Messages = append([]Message(nil), t.Messages...)
	if t.Seller != nil {
		s := *t.Seller
		c.Seller = &s
	}
	if t.Buyer != nil {
		b := *t.Buyer
		c.Buyer = &b
	}
	return &c
}

// CreateTradeInput - параметры нового объявления.
type CreateTradeInput struct {
	Type                valueobject.TradeType     `json:"type"`
	Amount              decimal.Decimal           `json:"amount"`
	Price               decimal.Decimal           `json:"price"`
	PaymentMethod       valueobject.PaymentMethod `json:"payment_method"`
	CustomPaymentMethod string                    `json:"custom_payment_method,omitempty"`
	PaymentDetails      string                    `json:"payment_details"`
	TimeLimit           int                       `json:"time_limit"`
}

const (
	MinTimeLimitMinutes = 15
	MaxTimeLimitMinutes = 1440
)

// Validate проверяет объявление до отправки. balance учитывается только для продажи.
func (in CreateTradeInput) Validate(balance decimal.Decimal) error {
	if !in.Type.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, "тип сделки должен быть buy или sell")
	}
	if !in.Amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "Введите корректное количество токенов")
	}
	if !in.Price.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "Введите корректную цену")
	}
	if !in.PaymentMethod.IsValid() {
		return apperror.New(apperror.ErrCodeValidation, "неподдерживаемый способ оплаты")
	}
	if in.PaymentMethod == valueobject.PaymentOther && validation.Text(in.CustomPaymentMethod) == "" {
		return apperror.New(apperror.ErrCodeValidation, "Укажите название способа оплаты")
	}
	if err := validation.ValidateLength("название способа оплаты", in.CustomPaymentMethod, 0, validation.MaxCustomPaymentMethodLength); err != nil {
		return err
	}
	if err := validation.ValidateLength("реквизиты", in.PaymentDetails, 0, validation.MaxPaymentDetailsLength); err != nil {
		return err
	}
	if in.TimeLimit < MinTimeLimitMinutes || in.TimeLimit > MaxTimeLimitMinutes {
		return apperror.New(apperror.ErrCodeValidation, "Лимит времени должен быть от 15 до 1440 минут")
	}
	if in.Type == valueobject.TradeTypeSell && in.Amount.GreaterThan(balance) {
		return apperror.New(apperror.ErrCodeValidation, "Недостаточно токенов на балансе")
	}
	return nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
