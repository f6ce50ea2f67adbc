package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/coinpurse/internal/domain"
	"github.com/vadiminshakov/coinpurse/internal/ledger"
)

func TestBalanceBroadcaster_PublishChange(t *testing.T) {
	b := NewBalanceBroadcaster(4)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b.PublishChange(ledger.Change{
		Symbol:   domain.BTC,
		Previous: decimal.RequireFromString("0.5"),
		Current:  decimal.RequireFromString("0.75"),
		At:       at,
	})

	select {
	case e := <-ch:
		assert.Equal(t, BalanceEvent{Timestamp: at, Symbol: domain.BTC, Previous: "0.5", Amount: "0.75"}, e)
	default:
		t.Fatal("event was not delivered")
	}
}

func TestBalanceBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBalanceBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(BalanceEvent{Symbol: domain.ETH, Amount: "1"})
	b.Publish(BalanceEvent{Symbol: domain.ETH, Amount: "2"})

	require.Len(t, ch, 1)
	assert.Equal(t, "1", (<-ch).Amount)
}

func TestBalanceBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBalanceBroadcaster(0)
	ch := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Subscribers())

	_, open := <-ch
	assert.False(t, open)
}
