package desk

import (
	"fmt"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// ViewKind - какое модальное состояние сейчас показывает интерфейс.
type ViewKind string

const (
	ViewClosed           ViewKind = "closed"
	ViewCreating         ViewKind = "creating"
	ViewViewing          ViewKind = "viewing"
	ViewConfirmingCancel ViewKind = "confirming_cancel"
)

// ViewState - объединение closed | creating | viewing(id) | confirmingCancel(id, reason).
// TradeID заполнен только для viewing и confirming_cancel, Reason только для confirming_cancel.
type ViewState struct {
	Kind    ViewKind `json:"kind"`
	TradeID int64    `json:"trade_id,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func Closed() ViewState { return ViewState{Kind: ViewClosed} }

func Creating() ViewState { return ViewState{Kind: ViewCreating} }

func Viewing(tradeID int64) ViewState {
	return ViewState{Kind: ViewViewing, TradeID: tradeID}
}

func ConfirmingCancel(tradeID int64, reason string) ViewState {
	return ViewState{Kind: ViewConfirmingCancel, TradeID: tradeID, Reason: reason}
}

// Validate проверяет, что поля соответствуют варианту.
func (s ViewState) Validate() error {
	switch s.Kind {
	case ViewClosed, ViewCreating:
		if s.TradeID != 0 || s.Reason != "" {
			return invalidView("состояние %s не содержит сделки", s.Kind)
		}
	case ViewViewing:
		if s.TradeID <= 0 || s.Reason != "" {
			return invalidView("для просмотра нужен id сделки")
		}
	case ViewConfirmingCancel:
		if s.TradeID <= 0 {
			return invalidView("для отмены нужен id сделки")
		}
	default:
		return invalidView("неизвестное состояние %q", s.Kind)
	}
	return nil
}

// Next возвращает новое состояние или ошибку, если переход недопустим.
//
//	closed            -> creating, viewing
//	creating          -> closed, viewing
//	viewing(id)       -> closed, creating, viewing(other), confirming_cancel(id)
//	confirming_cancel -> viewing(id), confirming_cancel(id, new reason), closed
func (s ViewState) Next(to ViewState) (ViewState, error) {
	if err := to.Validate(); err != nil {
		return s, err
	}

	switch s.Kind {
	case ViewClosed:
		switch to.Kind {
		case ViewCreating, ViewViewing:
			return to, nil
		}
	case ViewCreating:
		switch to.Kind {
		case ViewClosed, ViewViewing:
			return to, nil
		}
	case ViewViewing:
		switch to.Kind {
		case ViewClosed, ViewCreating, ViewViewing:
			return to, nil
		case ViewConfirmingCancel:
			if to.TradeID == s.TradeID {
				return to, nil
			}
		}
	case ViewConfirmingCancel:
		switch to.Kind {
		case ViewClosed:
			return to, nil
		case ViewViewing, ViewConfirmingCancel:
			if to.TradeID == s.TradeID {
				return to, nil
			}
		}
	}
	return s, invalidView("переход %s -> %s недопустим", s.Kind, to.Kind)
}

// DetailID - сделка, детали которой должны быть открыты в этом состоянии.
func (s ViewState) DetailID() int64 {
	switch s.Kind {
	case ViewViewing, ViewConfirmingCancel:
		return s.TradeID
	}
	return 0
}

func invalidView(format string, args ...any) error {
	return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf(format, args...))
}
