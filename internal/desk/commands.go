package desk

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/goroutine"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
	"github.com/ignatzorin/p2p-desk/internal/policy"
	"github.com/ignatzorin/p2p-desk/internal/validation"
)

// CommandFailure - уведомление интерфейсу о неудачной команде.
type CommandFailure struct {
	TradeID int64         `json:"trade_id,omitempty"`
	Command policy.Action `json:"command"`
	Message string        `json:"message"`
}

// tradeForCommand возвращает сделку из стора, а если её там нет, читает с сервера.
func (d *Desk) tradeForCommand(ctx context.Context, tradeID int64) (*entity.Trade, error) {
	if trade, ok := d.store.Get(tradeID); ok {
		return trade, nil
	}
	trade, err := d.gw.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// check проверяет предусловия действия до обращения к серверу.
func (d *Desk) check(ctx context.Context, tradeID int64, action policy.Action) error {
	trade, err := d.tradeForCommand(ctx, tradeID)
	if err != nil {
		return err
	}
	return policy.Check(action, policy.FactsFor(trade, d.Viewer(), d.clk.Now()))
}

// dispatch выполняет команду на сервере. Успех перечитывает все открытые
// представления; ошибка оставляет стор нетронутым, уведомляет интерфейс
// и запускает ресинхронизацию, потому что сервер мог изменить сделку.
func (d *Desk) dispatch(ctx context.Context, tradeID int64, action policy.Action, flag func(*Flags, bool), call func(context.Context) error) error {
	d.setFlags(tradeID, func(f *Flags) { flag(f, true) })
	err := call(ctx)
	d.setFlags(tradeID, func(f *Flags) { flag(f, false) })

	log := logger.Trade(tradeID).WithField("command", string(action))
	if err != nil {
		log.WithError(err).Warn("desk: команда отклонена")
		d.notify(EventCommandFailed, CommandFailure{
			TradeID: tradeID,
			Command: action,
			Message: apperror.UserMessage(err, ""),
		})
		root := d.rootContext()
		goroutine.SafeGo(func() { d.refreshAll(root) })
		return err
	}

	log.Info("desk: команда выполнена")
	d.refreshAll(ctx)
	return nil
}

func processing(f *Flags, on bool) { f.Processing = on }
func uploading(f *Flags, on bool)  { f.Uploading = on }

// Initiate начинает сделку по чужому объявлению.
func (d *Desk) Initiate(ctx context.Context, tradeID int64) error {
	if err := d.check(ctx, tradeID, policy.ActionInitiate); err != nil {
		return err
	}
	return d.dispatch(ctx, tradeID, policy.ActionInitiate, processing, func(ctx context.Context) error {
		return d.gw.Initiate(ctx, tradeID)
	})
}

// UploadProof проверяет файл и отправляет подтверждение оплаты.
func (d *Desk) UploadProof(ctx context.Context, tradeID int64, fileName string, r io.Reader, description string) error {
	if err := d.check(ctx, tradeID, policy.ActionUploadProof); err != nil {
		return err
	}
	description, err := validation.Optional("описание", description, validation.MaxProofDescriptionLength)
	if err != nil {
		return err
	}
	file, err := d.proofs.Inspect(fileName, r)
	if err != nil {
		return err
	}
	return d.dispatch(ctx, tradeID, policy.ActionUploadProof, uploading, func(ctx context.Context) error {
		return d.gw.UploadProof(ctx, tradeID, file, description)
	})
}

// MarkPaymentSent - покупатель отмечает оплату. Требует загруженного подтверждения.
func (d *Desk) MarkPaymentSent(ctx context.Context, tradeID int64) error {
	if err := d.check(ctx, tradeID, policy.ActionMarkPaymentSent); err != nil {
		return err
	}
	return d.dispatch(ctx, tradeID, policy.ActionMarkPaymentSent, processing, func(ctx context.Context) error {
		return d.gw.MarkPaymentSent(ctx, tradeID)
	})
}

// ConfirmPayment - продавец подтверждает получение оплаты. Действие необратимо.
func (d *Desk) ConfirmPayment(ctx context.Context, tradeID int64) error {
	if err := d.check(ctx, tradeID, policy.ActionConfirmPayment); err != nil {
		return err
	}
	return d.dispatch(ctx, tradeID, policy.ActionConfirmPayment, processing, func(ctx context.Context) error {
		return d.gw.ConfirmPayment(ctx, tradeID)
	})
}

// Cancel отменяет сделку. Пустая причина отклоняется без запроса к серверу.
// После успешной отмены окно подтверждения закрывается.
func (d *Desk) Cancel(ctx context.Context, tradeID int64, reason string) error {
	reason, err := policy.ValidateCancelReason(reason)
	if err != nil {
		return err
	}
	if err := d.check(ctx, tradeID, policy.ActionCancel); err != nil {
		return err
	}
	err = d.dispatch(ctx, tradeID, policy.ActionCancel, processing, func(ctx context.Context) error {
		return d.gw.Cancel(ctx, tradeID, reason)
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	changed := d.viewState.Kind == ViewConfirmingCancel && d.viewState.TradeID == tradeID
	if changed {
		d.viewState = Viewing(tradeID)
	}
	state := d.viewState
	d.mu.Unlock()
	if changed {
		d.notify(EventViewState, state)
	}
	return nil
}

// SubmitCancel отменяет сделку с причиной из текущего окна подтверждения.
func (d *Desk) SubmitCancel(ctx context.Context) error {
	state := d.ViewState()
	if state.Kind != ViewConfirmingCancel {
		return invalidView("окно отмены не открыто")
	}
	return d.Cancel(ctx, state.TradeID, state.Reason)
}

// Delete удаляет собственное объявление до начала сделки.
func (d *Desk) Delete(ctx context.Context, tradeID int64) error {
	if err := d.check(ctx, tradeID, policy.ActionDelete); err != nil {
		return err
	}
	err := d.dispatch(ctx, tradeID, policy.ActionDelete, processing, func(ctx context.Context) error {
		return d.gw.Delete(ctx, tradeID)
	})
	if err != nil {
		return err
	}
	if d.currentDetail(tradeID) != nil {
		d.CloseDetail()
	}
	return nil
}

// SendMessage отправляет сообщение в чат сделки и сразу добавляет его в стор.
func (d *Desk) SendMessage(ctx context.Context, tradeID int64, text string) (*entity.Message, error) {
	text, err := policy.ValidateMessage(text)
	if err != nil {
		return nil, err
	}
	if err := d.check(ctx, tradeID, policy.ActionSendMessage); err != nil {
		return nil, err
	}

	msg, err := d.gw.SendMessage(ctx, tradeID, text)
	if err != nil {
		logger.Trade(tradeID).WithError(err).Warn("desk: сообщение не отправлено")
		d.notify(EventCommandFailed, CommandFailure{
			TradeID: tradeID,
			Command: policy.ActionSendMessage,
			Message: apperror.UserMessage(err, ""),
		})
		return nil, err
	}
	if msg.TradeID == 0 {
		msg.TradeID = tradeID
	}
	// Повтор из канала событий не задублирует сообщение: слияние идёт по id.
	d.store.AppendMessage(tradeID, *msg)
	return msg, nil
}

// Create публикует объявление. Проверяет KYC, поля и баланс для продажи.
func (d *Desk) Create(ctx context.Context, in entity.CreateTradeInput) (*entity.Trade, error) {
	viewer := d.Viewer()
	if !viewer.KYCVerified {
		return nil, apperror.ErrKYCRequired
	}
	if err := in.Validate(viewer.Balance); err != nil {
		return nil, err
	}

	trade, err := d.gw.CreateTrade(ctx, in)
	if err != nil {
		logger.L().WithError(err).WithFields(logrus.Fields{
			"command": "create",
			"type":    string(in.Type),
		}).Warn("desk: объявление не создано")
		d.notify(EventCommandFailed, CommandFailure{Command: "create", Message: apperror.UserMessage(err, "")})
		return nil, err
	}

	d.refreshAll(ctx)
	if err := d.RefreshViewer(ctx); err != nil {
		logger.L().WithError(err).Debug("desk: баланс не обновлён")
	}

	d.mu.Lock()
	changed := d.viewState.Kind == ViewCreating
	if changed {
		d.viewState = Closed()
	}
	state := d.viewState
	d.mu.Unlock()
	if changed {
		d.notify(EventViewState, state)
	}
	return trade, nil
}

// ViewState возвращает текущее модальное состояние интерфейса.
func (d *Desk) ViewState() ViewState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewState
}

// Transition переводит интерфейс в новое состояние. viewing открывает детали,
// closed и creating закрывают их. Окно отмены открывается, только если отмена разрешена.
func (d *Desk) Transition(ctx context.Context, to ViewState) (ViewState, error) {
	current := d.ViewState()
	next, err := current.Next(to)
	if err != nil {
		return current, err
	}

	switch next.Kind {
	case ViewViewing:
		if _, err := d.OpenDetail(ctx, next.TradeID); err != nil {
			return current, err
		}
	case ViewConfirmingCancel:
		if current.Kind != ViewConfirmingCancel {
			if err := d.check(ctx, next.TradeID, policy.ActionCancel); err != nil {
				return current, err
			}
		}
	case ViewClosed, ViewCreating:
		d.closeDetail()
	}

	d.mu.Lock()
	d.viewState = next
	d.mu.Unlock()
	d.notify(EventViewState, next)
	return next, nil
}
