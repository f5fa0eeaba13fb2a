// Package policy описывает жизненный цикл P2P сделки со стороны клиента:
// какие действия доступны пользователю при данном статусе и роли.
// Все функции чистые и детерминированные.
package policy

import (
	"sort"
	"time"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/validation"
)

type Action string

const (
	ActionInitiate        Action = "initiate"
	ActionDelete          Action = "delete"
	ActionUploadProof     Action = "upload_proof"
	ActionMarkPaymentSent Action = "mark_payment_sent"
	ActionConfirmPayment  Action = "confirm_payment"
	ActionCancel          Action = "cancel"
	ActionSendMessage     Action = "send_message"
)

// AllActions перечисляет действия в порядке отображения кнопок.
var AllActions = []Action{
	ActionInitiate,
	ActionUploadProof,
	ActionMarkPaymentSent,
	ActionConfirmPayment,
	ActionSendMessage,
	ActionCancel,
	ActionDelete,
}

// Facts - всё, от чего зависят права пользователя на сделку.
type Facts struct {
	Status      valueobject.TradeStatus
	Paid        bool
	ProofCount  int
	IsOwner     bool
	IsSeller    bool
	IsBuyer     bool
	KYCVerified bool
	// Expired - локальный таймер дошёл до нуля, сервер ещё не подтвердил.
	Expired bool
}

// FactsFor собирает факты из сделки, пользователя и текущего времени.
func FactsFor(t *entity.Trade, viewer entity.Viewer, now time.Time) Facts {
	return Facts{
		Status:      t.Status,
		Paid:        t.IsPaid(),
		ProofCount:  len(t.Proofs),
		IsOwner:     t.IsOwnedBy(viewer.ID),
		IsSeller:    t.IsSeller(viewer.ID),
		IsBuyer:     t.IsBuyer(viewer.ID),
		KYCVerified: viewer.KYCVerified,
		Expired:     t.IsExpired(now),
	}
}

func (f Facts) isParty() bool {
	return f.IsSeller || f.IsBuyer
}

// ActionSet - множество разрешённых действий.
type ActionSet map[Action]struct{}

func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List возвращает действия в порядке AllActions.
func (s ActionSet) List() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range AllActions {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Strings нужен для JSON ответа локального API.
func (s ActionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// Allowed возвращает действия, доступные при данных фактах.
func Allowed(f Facts) ActionSet {
	set := ActionSet{}
	for _, a := range AllActions {
		if check(a, f) == nil {
			set[a] = struct{}{}
		}
	}
	return set
}

// Check проверяет предусловия действия до отправки запроса.
// Отсутствие KYC у не-владельца даёт ErrKYCRequired, чтобы интерфейс
// показал понятное объяснение вместо обращения к серверу.
func Check(a Action, f Facts) error {
	return check(a, f)
}

func check(a Action, f Facts) error {
	processing := f.Status == valueobject.TradeStatusProcessing

	// KYC проверяется первым: без него не-владелец ничего не меняет.
	if !f.IsOwner && !f.KYCVerified && a != ActionDelete {
		return apperror.ErrKYCRequired
	}

	switch a {
	case ActionInitiate:
		if f.IsOwner {
			return forbidden("Нельзя начать сделку по собственному объявлению")
		}
		if f.Status != valueobject.TradeStatusActive {
			return stale("Сделка уже недоступна")
		}
		return nil

	case ActionDelete:
		if !f.IsOwner {
			return apperror.ErrForbidden
		}
		if f.Status != valueobject.TradeStatusActive {
			return stale("Удалить можно только объявление без контрагента")
		}
		return nil

	case ActionUploadProof:
		if !f.IsBuyer {
			return forbidden("Загрузить подтверждение может только покупатель")
		}
		if !processing || f.Expired {
			return stale("Сделка не ожидает оплаты")
		}
		if f.ProofCount > 0 {
			return stale("Подтверждение уже загружено")
		}
		return nil

	case ActionMarkPaymentSent:
		if !f.IsBuyer {
			return forbidden("Отметить оплату может только покупатель")
		}
		if !processing || f.Expired {
			return stale("Сделка не ожидает оплаты")
		}
		if f.ProofCount == 0 {
			return apperror.ErrProofRequired
		}
		if f.Paid {
			return stale("Оплата уже отмечена")
		}
		return nil

	case ActionConfirmPayment:
		if !f.IsSeller {
			return forbidden("Подтвердить оплату может только продавец")
		}
		if !processing || f.Expired {
			return stale("Сделка не ожидает подтверждения")
		}
		// Отметка покупателя об оплате не обязательна: достаточно доказательства.
		if f.ProofCount == 0 {
			return apperror.ErrProofRequired
		}
		return nil

	case ActionCancel:
		switch f.Status {
		case valueobject.TradeStatusActive:
			if !f.IsSeller {
				return forbidden("Отменить объявление может только продавец")
			}
			return nil
		case valueobject.TradeStatusProcessing:
			if !f.isParty() {
				return apperror.ErrForbidden
			}
			return nil
		}
		return stale("Сделка уже завершена")

	case ActionSendMessage:
		if !f.isParty() {
			return apperror.ErrForbidden
		}
		if !processing {
			return stale("Чат доступен только во время сделки")
		}
		return nil
	}

	return apperror.New(apperror.ErrCodeValidation, "неизвестное действие")
}

// ValidateCancelReason отклоняет пустую причину отмены без запроса к серверу.
func ValidateCancelReason(reason string) (string, error) {
	return validation.ValidateCancelReason(reason)
}

// ValidateMessage проверяет текст сообщения чата.
func ValidateMessage(text string) (string, error) {
	return validation.ValidateMessage(text)
}

func forbidden(msg string) error {
	return apperror.New(apperror.ErrCodeForbidden, msg)
}

func stale(msg string) error {
	return apperror.New(apperror.ErrCodeStaleState, msg)
}
