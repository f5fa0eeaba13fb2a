// Package gateway - клиент REST API P2P сделок. Каждая команда уходит
// с bearer токеном и собственным Idempotency-Key.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/p2p-desk/internal/logger"
	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

const idempotencyHeader = "Idempotency-Key"

// Client выполняет запросы к серверу сделок.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	newKey     func() string
}

// NewClient создаёт клиент. baseURL указывает на корень API (…/api).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		newKey: func() string { return uuid.NewString() },
	}
}

// Token возвращает bearer токен пользователя (нужен для авторизации каналов).
func (c *Client) Token() string {
	return c.token
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("gateway: не удалось сериализовать запрос: %w", err)
	}
	req.body = bytes.NewReader(body)
	req.contentType = "application/json; charset=utf-8"
	return req, nil
}

// do отправляет запрос и возвращает тело успешного ответа.
// Ошибки сервера переводятся в apperror с текстом из поля message.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if c.baseURL == "" {
		return nil, apperror.New(apperror.ErrCodeInternal, "gateway: baseURL не задан")
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("gateway: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.method != http.MethodGet {
		req.Header.Set(idempotencyHeader, c.newKey())
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeRequestFailed, "Сервер недоступен, попробуйте позже")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeRequestFailed, "Не удалось прочитать ответ сервера")
	}

	logger.L().WithFields(logrus.Fields{
		"method":   r.method,
		"path":     r.path,
		"status":   resp.StatusCode,
		"duration": time.Since(started).String(),
	}).Debug("gateway: запрос выполнен")

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, mapError(r, resp.StatusCode, body)
	}
	return body, nil
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func mapError(r request, status int, body []byte) error {
	var payload errorBody
	_ = json.Unmarshal(body, &payload)

	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if status == http.StatusUnprocessableEntity && message == "" {
		for _, list := range payload.Errors {
			if len(list) > 0 {
				message = list[0]
				break
			}
		}
	}

	cause := fmt.Errorf("gateway: %s %s: код ответа %d", r.method, r.path, status)

	var code apperror.ErrorCode
	switch {
	case status == http.StatusUnauthorized:
		code = apperror.ErrCodeUnauthorized
	case status == http.StatusForbidden && strings.Contains(strings.ToUpper(message), "KYC"):
		code = apperror.ErrCodeKYCRequired
	case status == http.StatusForbidden:
		code = apperror.ErrCodeForbidden
	case status == http.StatusNotFound:
		code = apperror.ErrCodeNotFound
	case status == http.StatusConflict:
		code = apperror.ErrCodeStaleState
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		code = apperror.ErrCodeValidation
	default:
		code = apperror.ErrCodeRequestFailed
	}

	if message == "" {
		message = defaultMessage(code)
	}
	return apperror.Wrap(cause, code, message)
}

func defaultMessage(code apperror.ErrorCode) string {
	switch code {
	case apperror.ErrCodeUnauthorized:
		return "Сессия истекла, войдите заново"
	case apperror.ErrCodeForbidden:
		return "Недостаточно прав для этого действия"
	case apperror.ErrCodeNotFound:
		return "Сделка не найдена"
	case apperror.ErrCodeStaleState:
		return "Сделка уже изменилась, данные обновлены"
	}
	return apperror.DefaultUserMessage
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap снимает обёртку {"data": …}. Ответы без обёртки возвращаются как есть.
func unwrap(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return trimmed
	}
	return data
}

func decodeData(raw []byte, out any) error {
	if err := json.Unmarshal(unwrap(raw), out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeRequestFailed, "Некорректный ответ сервера")
	}
	return nil
}

// decodeList понимает массив, {"data": [...]} и пагинатор {"data": {"data": [...]}}.
func decodeList(raw []byte, out any) error {
	data := unwrap(raw)
	if len(data) > 0 && data[0] == '{' {
		data = unwrap(data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeRequestFailed, "Некорректный ответ сервера")
	}
	return nil
}

func tradePath(id int64, action string) string {
	p := "/p2p/trades/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}
