package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/p2p-desk/internal/domain/entity"
)

type profileResponse struct {
	ID           int64            `json:"id"`
	Username     string           `json:"username"`
	Name         string           `json:"name"`
	KYCVerified  *bool            `json:"kyc_verified"`
	KYCStatus    string           `json:"kyc_status"`
	Balance      *decimal.Decimal `json:"balance"`
	TokenBalance *decimal.Decimal `json:"token_balance"`
}

// Profile возвращает текущего пользователя: id, статус KYC и баланс токенов.
func (c *Client) Profile(ctx context.Context) (*entity.Viewer, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/user/profile"})
	if err != nil {
		return nil, err
	}
	var p profileResponse
	if err := decodeData(body, &p); err != nil {
		return nil, err
	}

	viewer := &entity.Viewer{
		ID:       p.ID,
		Username: p.Username,
	}
	if viewer.Username == "" {
		viewer.Username = p.Name
	}
	switch {
	case p.KYCVerified != nil:
		viewer.KYCVerified = *p.KYCVerified
	default:
		viewer.KYCVerified = p.KYCStatus == "verified" || p.KYCStatus == "approved"
	}
	switch {
	case p.TokenBalance != nil:
		viewer.Balance = *p.TokenBalance
	case p.Balance != nil:
		viewer.Balance = *p.Balance
	}
	return viewer, nil
}

// ViewerIDFromToken достаёт id пользователя из claim sub без проверки подписи:
// токен проверяет сервер, клиенту нужен только id до первого ответа профиля.
func ViewerIDFromToken(token string) (int64, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("gateway: токен не является JWT: %w", err)
	}

	switch sub := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("gateway: некорректный sub %q: %w", sub, err)
		}
		return id, nil
	case float64:
		return int64(sub), nil
	}
	return 0, fmt.Errorf("gateway: в токене нет sub")
}
