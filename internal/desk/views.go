package desk

import (
	"github.com/ignatzorin/p2p-desk/internal/countdown"
	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/policy"
)

// TradeCard - сделка вместе со всем, что нужно для отрисовки карточки.
// Итог пересчитывается при каждой сборке и нигде не кешируется.
// Countdown есть у сделок в процессе, видимых в активных сделках или в деталях.
type TradeCard struct {
	Trade        *entity.Trade        `json:"trade"`
	Total        string               `json:"total"`
	PaymentLabel string               `json:"payment_label"`
	Counterparty *entity.Counterparty `json:"counterparty,omitempty"`
	Actions      []policy.Action      `json:"actions"`
	Affordances  policy.Affordances   `json:"affordances"`
	Countdown    *countdown.State     `json:"countdown,omitempty"`
}

// ListView - маркетплейс, активные сделки или история.
// При ошибке загрузки сделки из стора сохраняются, а Error содержит текст для интерфейса.
type ListView struct {
	Trades []TradeCard `json:"trades"`
	Error  string      `json:"error,omitempty"`
}

type ProofView struct {
	entity.Proof
	URL string `json:"url"`
}

// DetailView - детали сделки.
type DetailView struct {
	TradeCard
	Flags    Flags            `json:"flags"`
	Proofs   []ProofView      `json:"proofs"`
	Messages []entity.Message `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

func (d *Desk) card(t *entity.Trade) TradeCard {
	viewer := d.Viewer()
	facts := policy.FactsFor(t, viewer, d.clk.Now())

	card := TradeCard{
		Trade:        t,
		Total:        t.FormattedTotal(),
		PaymentLabel: t.PaymentLabel(),
		Counterparty: t.CounterpartyFor(viewer.ID),
		Actions:      policy.Allowed(facts).List(),
		Affordances:  policy.AffordancesFor(facts),
	}
	if state, ok := d.countdown.Remaining(t.ID); ok {
		card.Countdown = &state
	}
	return card
}

func (d *Desk) listView(trades []*entity.Trade, err error) ListView {
	view := ListView{Trades: make([]TradeCard, 0, len(trades))}
	for _, t := range trades {
		view.Trades = append(view.Trades, d.card(t))
	}
	if err != nil {
		view.Error = apperror.UserMessage(err, "Не удалось загрузить сделки")
	}
	return view
}
