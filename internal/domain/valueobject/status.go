package valueobject

import "github.com/ignatzorin/p2p-desk/internal/pkg/apperror"

type TradeStatus string

const (
	TradeStatusActive     TradeStatus = "active"
	TradeStatusProcessing TradeStatus = "processing"
	TradeStatusCompleted  TradeStatus = "completed"
	TradeStatusCancelled  TradeStatus = "cancelled"
	TradeStatusDisputed   TradeStatus = "disputed"
)

// Переходы, которые клиент признаёт. Разрешение спора (disputed -> completed/cancelled)
// делает сервер, клиент видит его только через полную перезагрузку.
var tradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusActive:     {TradeStatusProcessing, TradeStatusCancelled},
	TradeStatusProcessing: {TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed},
	TradeStatusCompleted:  {},
	TradeStatusCancelled:  {},
	TradeStatusDisputed:   {},
}

func (s TradeStatus) IsValid() bool {
	_, ok := tradeTransitions[s]
	return ok
}

func (s TradeStatus) IsTerminal() bool {
	switch s {
	case TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed:
		return true
	}
	return false
}

func (s TradeStatus) CanTransitionTo(newStatus TradeStatus) bool {
	for _, status := range tradeTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// Label возвращает подпись статуса для интерфейса.
func (s TradeStatus) Label() string {
	switch s {
	case TradeStatusActive:
		return "Активна"
	case TradeStatusProcessing:
		return "В процессе"
	case TradeStatusCompleted:
		return "Завершена"
	case TradeStatusCancelled:
		return "Отменена"
	case TradeStatusDisputed:
		return "Спор"
	}
	return string(s)
}

func NewTradeStatus(status string) (TradeStatus, error) {
	s := TradeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус сделки")
	}
	return s, nil
}

// TradeType - направление объявления: продавец выставляет токены (sell)
// или покупатель ищет продавца (buy).
type TradeType string

const (
	TradeTypeSell TradeType = "sell"
	TradeTypeBuy  TradeType = "buy"
)

func (t TradeType) IsValid() bool {
	return t == TradeTypeSell || t == TradeTypeBuy
}

func NewTradeType(v string) (TradeType, error) {
	t := TradeType(v)
	if !t.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "тип сделки должен быть buy или sell")
	}
	return t, nil
}

type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentWise         PaymentMethod = "wise"
	PaymentPayPal       PaymentMethod = "paypal"
	PaymentRevolut      PaymentMethod = "revolut"
	PaymentUSDC         PaymentMethod = "usdc"
	PaymentUSDT         PaymentMethod = "usdt"
	PaymentOther        PaymentMethod = "other"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentBankTransfer: "Bank Transfer",
	PaymentWise:         "Wise",
	PaymentPayPal:       "PayPal",
	PaymentRevolut:      "Revolut",
	PaymentUSDC:         "USDC",
	PaymentUSDT:         "USDT",
	PaymentOther:        "Other",
}

func (p PaymentMethod) IsValid() bool {
	_, ok := paymentLabels[p]
	return ok
}

// Label возвращает подпись способа оплаты; для other используется пользовательская подпись.
func (p PaymentMethod) Label(custom string) string {
	if p == PaymentOther && custom != "" {
		return custom
	}
	if label, ok := paymentLabels[p]; ok {
		return label
	}
	return string(p)
}

func NewPaymentMethod(v string) (PaymentMethod, error) {
	p := PaymentMethod(v)
	if !p.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "неподдерживаемый способ оплаты")
	}
	return p, nil
}
