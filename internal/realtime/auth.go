package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignatzorin/p2p-desk/internal/pkg/apperror"
)

// Authorizer подписывает подписку на приватный канал через broadcasting auth сервера.
type Authorizer struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewAuthorizer(endpoint, token string, httpClient *http.Client) *Authorizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authorizer{endpoint: endpoint, token: token, httpClient: httpClient}
}

type authResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Authorize возвращает подпись "key:signature" для pusher:subscribe.
func (a *Authorizer) Authorize(ctx context.Context, socketID, channel string) (string, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("realtime: не удалось создать запрос авторизации: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeRequestFailed, "Не удалось авторизовать канал")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", apperror.Wrap(fmt.Errorf("realtime: канал %s: код ответа %d", channel, resp.StatusCode),
			apperror.ErrCodeForbidden, "Нет доступа к каналу сделки")
	case resp.StatusCode >= http.StatusBadRequest:
		return "", apperror.Wrap(fmt.Errorf("realtime: канал %s: код ответа %d", channel, resp.StatusCode),
			apperror.ErrCodeRequestFailed, "Не удалось авторизовать канал")
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("realtime: некорректный ответ авторизации: %w", err)
	}
	if body.Auth == "" {
		return "", fmt.Errorf("realtime: пустая подпись для канала %s", channel)
	}
	return body.Auth, nil
}
