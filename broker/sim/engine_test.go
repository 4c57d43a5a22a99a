package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e := NewEngine(broker.Account{ID: "SIM-1", Currency: "USD", Balance: 10000})
	require.NoError(t, e.Connect(context.Background()))
	e.SetTick("EURUSD", 1.10000, 1.10020)
	return e
}

func TestEngineRequiresConnection(t *testing.T) {
	t.Parallel()

	e := NewEngine(broker.Account{ID: "SIM-1"})
	_, err := e.Positions(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotConnected)
}

func TestEngineFillSides(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	buy, err := e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.10})
	assert.NoError(t, err)
	assert.Equal(t, 1.10020, buy.Price, "buys fill on the ask")

	sell, err := e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Side: broker.Sell, Volume: 0.10})
	assert.NoError(t, err)
	assert.Equal(t, 1.10000, sell.Price, "sells fill on the bid")

	assert.NotEqual(t, buy.Ticket, sell.Ticket)
}

func TestEngineClosePosition(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	fill, err := e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.10})
	require.NoError(t, err)

	pos, ok, err := e.Position(ctx, fill.Ticket)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, broker.Buy, pos.Side)

	closed, err := e.ClosePosition(ctx, fill.Ticket)
	assert.NoError(t, err)
	assert.Equal(t, 1.10000, closed.Price, "long closes on the bid")
	assert.Equal(t, broker.Sell, closed.Side)

	_, ok, err = e.Position(ctx, fill.Ticket)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = e.ClosePosition(ctx, fill.Ticket)
	assert.ErrorIs(t, err, broker.ErrPositionNotFound)
}

func TestEngineUnknownSymbol(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.SelectSymbol(ctx, "GBPJPY"), broker.ErrSymbolNotFound)

	_, err := e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "GBPJPY", Side: broker.Buy, Volume: 0.10})
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)
}

func TestEngineReject(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	e.SetReject(errors.New("not enough money"))
	_, err := e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.10})
	assert.Error(t, err)

	e.SetReject(nil)
	_, err = e.MarketOrder(ctx, broker.MarketOrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.10})
	assert.NoError(t, err)
}

func TestEngineInjectAndRemove(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	e.InjectPosition(broker.Position{Ticket: 555, Symbol: "EURUSD", Side: broker.Buy, Volume: 0.10, OpenPrice: 1.10000})
	positions, err := e.Positions(ctx)
	assert.NoError(t, err)
	assert.Len(t, positions, 1)
	assert.Equal(t, "EURUSD", positions[555].Symbol)

	e.RemovePosition(555)
	positions, err = e.Positions(ctx)
	assert.NoError(t, err)
	assert.Empty(t, positions)
}

func TestEngineSymbolInfo(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.AddSymbol(market.SymbolInfo{Name: "USDJPY", Point: 0.001, Digits: 3})

	info, err := e.SymbolInfo(context.Background(), "USDJPY")
	assert.NoError(t, err)
	assert.Equal(t, 0.001, info.Point)

	info, err = e.SymbolInfo(context.Background(), "EURUSD")
	assert.NoError(t, err)
	assert.Equal(t, market.DefaultPoint, info.Point, "SetTick registers the default point")
}
