package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/store"
)

// Bridge переводит события каналов в изменения стора.
type Bridge struct {
	sub   Subscriber
	store *store.Store
}

func NewBridge(sub Subscriber, st *store.Store) *Bridge {
	return &Bridge{sub: sub, store: st}
}

// WatchListing подписывается на публичный канал сделок. В режиме Listing
// неизвестные сделки добавляются, в DetailOnly обновляются только известные.
func (b *Bridge) WatchListing(mode store.PatchMode) func() {
	return b.sub.Subscribe(TradesChannel, func(ev Event) {
		if ev.Name != EventTradeUpdated {
			return
		}
		p, err := decodePatch(ev.Data)
		if err != nil {
			logEventError(ev, err)
			return
		}
		b.store.ApplyPatch(p, mode)
	})
}

// WatchTrade подписывается на приватный канал сделки: сообщения чата
// и обновления самой сделки.
func (b *Bridge) WatchTrade(tradeID int64) func() {
	return b.sub.Subscribe(TradeChannel(tradeID), func(ev Event) {
		switch ev.Name {
		case EventNewMessage:
			msg, err := decodeMessage(ev.Data)
			if err != nil {
				logEventError(ev, err)
				return
			}
			if msg.TradeID == 0 {
				msg.TradeID = tradeID
			}
			b.store.AppendMessage(tradeID, *msg)

		case EventTradeUpdated:
			p, err := decodePatch(ev.Data)
			if err != nil {
				logEventError(ev, err)
				return
			}
			if p.ID == 0 {
				p.ID = tradeID
			}
			if p.ID != tradeID {
				return
			}
			b.store.ApplyPatch(p, store.DetailOnly)
		}
	})
}

func logEventError(ev Event, err error) {
	logger.L().WithError(err).WithFields(logrus.Fields{
		"channel": ev.Channel,
		"event":   ev.Name,
	}).Error("realtime: не удалось разобрать событие")
}

// unwrapField снимает обёртку события Laravel вида {"trade": {...}}.
func unwrapField(data json.RawMessage, field string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return data
	}
	inner := bytes.TrimSpace(fields[field])
	if len(inner) > 0 && inner[0] == '{' {
		return inner
	}
	return data
}

func decodePatch(data json.RawMessage) (*entity.TradePatch, error) {
	var p entity.TradePatch
	if err := json.Unmarshal(unwrapField(data, "trade"), &p); err != nil {
		return nil, fmt.Errorf("realtime: некорректная сделка: %w", err)
	}
	return &p, nil
}

func decodeMessage(data json.RawMessage) (*entity.Message, error) {
	var msg entity.Message
	if err := json.Unmarshal(unwrapField(data, "message"), &msg); err != nil {
		return nil, fmt.Errorf("realtime: некорректное сообщение: %w", err)
	}
	if msg.ID == 0 {
		return nil, fmt.Errorf("realtime: сообщение без id")
	}
	return &msg, nil
}
