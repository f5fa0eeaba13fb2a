package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
	"github.com/ignatzorin/p2p-desk/internal/domain/valueobject"
	"github.com/ignatzorin/p2p-desk/internal/storage"
)

// ListParams - фильтры листинга GET /p2p/trades.
type ListParams struct {
	Type          valueobject.TradeType
	PaymentMethod valueobject.PaymentMethod
	Amount        decimal.Decimal
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Type != "" {
		q.Set("type", string(p.Type))
	}
	if p.PaymentMethod != "" {
		q.Set("payment_method", string(p.PaymentMethod))
	}
	if p.Amount.IsPositive() {
		q.Set("amount", p.Amount.String())
	}
	return q
}

// ListTrades - публичные объявления.
func (c *Client) ListTrades(ctx context.Context, params ListParams) ([]*entity.Trade, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/p2p/trades", query: params.values()})
	if err != nil {
		return nil, err
	}
	trades := make([]*entity.Trade, 0)
	if err := decodeList(body, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// UserTrades - сделки пользователя, status "" возвращает все.
func (c *Client) UserTrades(ctx context.Context, status valueobject.TradeStatus) ([]*entity.Trade, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/p2p/trades/user", query: q})
	if err != nil {
		return nil, err
	}
	trades := make([]*entity.Trade, 0)
	if err := decodeList(body, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// GetTrade - детали сделки вместе с сообщениями и доказательствами.
func (c *Client) GetTrade(ctx context.Context, id int64) (*entity.Trade, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: tradePath(id, "")})
	if err != nil {
		return nil, err
	}
	var trade entity.Trade
	if err := decodeData(body, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

// CreateTrade публикует новое объявление.
func (c *Client) CreateTrade(ctx context.Context, in entity.CreateTradeInput) (*entity.Trade, error) {
	req, err := jsonRequest(http.MethodPost, "/p2p/trades", in)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var trade entity.Trade
	if err := decodeData(body, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

// Initiate начинает сделку по объявлению.
func (c *Client) Initiate(ctx context.Context, id int64) error {
	return c.command(ctx, http.MethodPost, tradePath(id, "initiate"), nil)
}

// UploadProof отправляет файл подтверждения оплаты (multipart: file, description).
func (c *Client) UploadProof(ctx context.Context, id int64, file *storage.ProofFile, description string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("gateway: не удалось создать multipart: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("gateway: не удалось записать файл: %w", err)
	}
	if description != "" {
		if err := w.WriteField("description", description); err != nil {
			return fmt.Errorf("gateway: не удалось записать описание: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gateway: не удалось закрыть multipart: %w", err)
	}

	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        tradePath(id, "upload-proof"),
		body:        &buf,
		contentType: w.FormDataContentType(),
	})
	return err
}

// MarkPaymentSent - покупатель отмечает, что оплата отправлена.
func (c *Client) MarkPaymentSent(ctx context.Context, id int64) error {
	return c.command(ctx, http.MethodPost, tradePath(id, "mark-payment-sent"), nil)
}

// ConfirmPayment - продавец подтверждает получение оплаты, токены уходят покупателю.
func (c *Client) ConfirmPayment(ctx context.Context, id int64) error {
	return c.command(ctx, http.MethodPost, tradePath(id, "confirm-payment"), nil)
}

// Cancel отменяет сделку с указанием причины.
func (c *Client) Cancel(ctx context.Context, id int64, reason string) error {
	return c.command(ctx, http.MethodPost, tradePath(id, "cancel"), map[string]string{"reason": reason})
}

// Delete удаляет объявление до начала сделки.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.command(ctx, http.MethodDelete, tradePath(id, ""), nil)
}

// SendMessage отправляет сообщение в чат сделки.
func (c *Client) SendMessage(ctx context.Context, id int64, text string) (*entity.Message, error) {
	req, err := jsonRequest(http.MethodPost, tradePath(id, "message"), map[string]string{"message": text})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var msg entity.Message
	if err := decodeData(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) command(ctx context.Context, method, path string, payload any) error {
	req, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}
