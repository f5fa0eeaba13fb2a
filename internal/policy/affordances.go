package policy

import "github.com/ignatzorin/p2p-desk/internal/domain/valueobject"

type Modal string

const (
	ModalNone           Modal = ""
	ModalCancelReason   Modal = "cancel_reason"
	ModalUploadProof    Modal = "upload_proof"
	ModalConfirmRelease Modal = "confirm_release"
	ModalKYCRequired    Modal = "kyc_required"
)

// Button - кнопка действия в карточке или деталях сделки.
type Button struct {
	Action       Action `json:"action"`
	Label        string `json:"label"`
	Modal        Modal  `json:"modal,omitempty"`
	Irreversible bool   `json:"irreversible,omitempty"`
	Danger       bool   `json:"danger,omitempty"`
}

// Affordances - всё, что интерфейс показывает для сделки.
type Affordances struct {
	Role        string   `json:"role"`
	StatusLabel string   `json:"status_label"`
	Instruction string   `json:"instruction,omitempty"`
	Buttons     []Button `json:"buttons"`
	Expired     bool     `json:"expired"`
	ShowChat    bool     `json:"show_chat"`
	// Blocked - объяснение, почему действия недоступны (например, нет KYC).
	Blocked string `json:"blocked,omitempty"`
}

var buttonTemplates = map[Action]Button{
	ActionInitiate:        {Action: ActionInitiate, Label: "Начать сделку"},
	ActionDelete:          {Action: ActionDelete, Label: "Удалить", Danger: true},
	ActionUploadProof:     {Action: ActionUploadProof, Label: "Загрузить подтверждение", Modal: ModalUploadProof},
	ActionMarkPaymentSent: {Action: ActionMarkPaymentSent, Label: "Я оплатил"},
	ActionConfirmPayment:  {Action: ActionConfirmPayment, Label: "Подтвердить получение оплаты", Modal: ModalConfirmRelease, Irreversible: true},
	ActionCancel:          {Action: ActionCancel, Label: "Отменить сделку", Modal: ModalCancelReason, Danger: true},
	ActionSendMessage:     {Action: ActionSendMessage, Label: "Отправить"},
}

// Role возвращает роль пользователя в сделке.
func (f Facts) Role() string {
	switch {
	case f.IsSeller:
		return "seller"
	case f.IsBuyer:
		return "buyer"
	case f.IsOwner:
		return "owner"
	}
	return "viewer"
}

// AffordancesFor описывает кнопки, модальные окна и подсказки для сделки.
func AffordancesFor(f Facts) Affordances {
	allowed := Allowed(f)

	a := Affordances{
		Role:        f.Role(),
		StatusLabel: f.Status.Label(),
		Expired:     f.Expired,
		ShowChat:    f.Status == valueobject.TradeStatusProcessing && f.isParty(),
		Instruction: instruction(f),
		Buttons:     make([]Button, 0, len(allowed)),
	}

	for _, action := range allowed.List() {
		if action == ActionSendMessage {
			continue
		}
		a.Buttons = append(a.Buttons, buttonTemplates[action])
	}

	if !f.IsOwner && !f.KYCVerified && f.Status == valueobject.TradeStatusActive {
		a.Blocked = "Пройдите верификацию KYC, чтобы участвовать в P2P сделках"
	}
	if f.Expired {
		a.StatusLabel = "Истекла"
	}
	return a
}

func instruction(f Facts) string {
	switch f.Status {
	case valueobject.TradeStatusActive:
		if f.IsOwner {
			return "Объявление опубликовано и ожидает контрагента"
		}
		return "Начните сделку, чтобы получить реквизиты для оплаты"

	case valueobject.TradeStatusProcessing:
		if f.Expired {
			return "Время на оплату истекло. Статус обновится после подтверждения сервера"
		}
		switch {
		case f.IsBuyer && f.ProofCount == 0:
			return "Переведите оплату по реквизитам продавца и загрузите подтверждение"
		case f.IsBuyer && !f.Paid:
			return "Подтверждение загружено. Отметьте, что оплата отправлена"
		case f.IsBuyer:
			return "Ожидайте, пока продавец подтвердит получение оплаты"
		case f.IsSeller && f.ProofCount == 0:
			return "Ожидайте оплату и подтверждение от покупателя"
		case f.IsSeller:
			return "Проверьте поступление оплаты и подтвердите. Токены будут переданы покупателю безвозвратно"
		}
		return "Сделка в процессе"

	case valueobject.TradeStatusCompleted:
		return "Сделка завершена"
	case valueobject.TradeStatusCancelled:
		return "Сделка отменена"
	case valueobject.TradeStatusDisputed:
		return "По сделке открыт спор. Решение примет администрация"
	}
	return ""
}
