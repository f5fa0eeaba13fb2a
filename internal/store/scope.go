package store

import (
	"fmt"
	"strconv"
)

type ScopeKind string

const (
	ScopeMarketplace ScopeKind = "marketplace"
	ScopeUser        ScopeKind = "user"
	ScopeActive      ScopeKind = "active"
	ScopeDetail      ScopeKind = "detail"
	ScopeLive        ScopeKind = "live"
)

// Scope - область стора, которую заполняет один вид запроса
// (листинг с фильтром, сделки пользователя, детали одной сделки).
type Scope struct {
	Kind ScopeKind
	Key  string
}

// ActiveScope - сделки пользователя в процессе, обновляется опросом.
var ActiveScope = Scope{Kind: ScopeActive}

// LiveScope держит сделки, пришедшие по каналу без открытого листинга.
var LiveScope = Scope{Kind: ScopeLive}

func MarketplaceScope(f MarketFilter) Scope {
	return Scope{Kind: ScopeMarketplace, Key: fmt.Sprintf("%s|%s|%s", f.Type, f.PaymentMethod, f.MinAmount.String())}
}

// UserScope - сделки пользователя с фильтром статуса ("" - все).
func UserScope(status string) Scope {
	return Scope{Kind: ScopeUser, Key: status}
}

func DetailScope(tradeID int64) Scope {
	return Scope{Kind: ScopeDetail, Key: strconv.FormatInt(tradeID, 10)}
}

func (s Scope) String() string {
	if s.Key == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Key
}
