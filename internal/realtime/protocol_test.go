package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEventName(t *testing.T) {
	assert.Equal(t, "P2PTradeUpdated", normalizeEventName(".P2PTradeUpdated"))
	assert.Equal(t, "P2PTradeUpdated", normalizeEventName(`App\Events\P2PTradeUpdated`))
	assert.Equal(t, "NewTradeMessage", normalizeEventName("NewTradeMessage"))
}

func TestPayload(t *testing.T) {
	data, err := payload(json.RawMessage(`"{\"id\":5}"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5}`, string(data))

	data, err = payload(json.RawMessage(` {"id":6}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":6}`, string(data))
}

func TestSocketURL(t *testing.T) {
	got, err := socketURL("wss://ws.example.com", "app-key")
	require.NoError(t, err)
	assert.Equal(t, "wss://ws.example.com/app/app-key?client=p2p-desk&protocol=7&version=1.0", got)

	got, err = socketURL("http://localhost:6001/", "k")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:6001/app/k?client=p2p-desk&protocol=7&version=1.0", got)

	got, err = socketURL("ws://localhost:6001/app/custom?protocol=5", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:6001/app/custom?client=p2p-desk&protocol=5&version=1.0", got)
}

func TestTradeChannel(t *testing.T) {
	assert.Equal(t, "private-p2p-trade.42", TradeChannel(42))
	assert.True(t, IsPrivate(TradeChannel(42)))
	assert.False(t, IsPrivate(TradesChannel))
}
