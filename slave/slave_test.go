package slave

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/broker/sim"
	"github.com/rustyeddy/copytrader/bus"
	"github.com/rustyeddy/copytrader/pkg/logx"
	"github.com/rustyeddy/copytrader/store"
)

type fixture struct {
	node   *Node
	engine *sim.Engine
	store  *store.SQLite
}

func newFixture(t *testing.T, acct store.Account) *fixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "copy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := sim.NewEngine(broker.Account{ID: "S-" + acct.Name})
	require.NoError(t, eng.Connect(context.Background()))

	node := New(acct, eng, nil, st, Options{Magic: 234000}, logx.New("SLAVE:"+acct.Name))
	return &fixture{node: node, engine: eng, store: st}
}

func apexAccount() store.Account {
	return store.Account{
		Name:              "Apex",
		Type:              store.Slave,
		Enabled:           true,
		Suffix:            ".c",
		SlippageTolerance: 50,
	}
}

func openSignal(price float64) bus.Signal {
	return bus.NewOpen(555, "EURUSD", broker.Buy, 0.10, price, 1.09500, 1.11000)
}

func TestExecuteOpenMirrorsAndCorrelates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	// Live ask 15 points away from the signal price, inside tolerance 50.
	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)

	ticket, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.NoError(t, err)
	assert.NotZero(t, ticket)

	pos, ok, err := f.engine.Position(ctx, ticket)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EURUSD.c", pos.Symbol)
	assert.Equal(t, broker.Buy, pos.Side)
	assert.Equal(t, 0.10, pos.Volume)
	assert.Equal(t, 1.09500, pos.StopLoss, "stop loss carried through unchanged")
	assert.Equal(t, 1.11000, pos.TakeProfit)

	m, err := f.store.OpenMapping(ctx, 555, "Apex")
	require.NoError(t, err)
	assert.Equal(t, ticket, m.SlaveTicket)
	assert.Equal(t, store.StatusOpen, m.Status)
	assert.Equal(t, "BUY", m.Direction)
}

func TestExecuteOpenSlippageBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Exactly the tolerance: accepted.
	f := newFixture(t, apexAccount())
	f.engine.SetTick("EURUSD.c", 1.10045, 1.10050)
	_, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	assert.NoError(t, err, "delta of exactly 50 points is accepted")

	// One point past the tolerance: rejected, no correlation record.
	f2 := newFixture(t, apexAccount())
	f2.engine.SetTick("EURUSD.c", 1.10046, 1.10051)
	_, err = f2.node.ExecuteOpen(ctx, openSignal(1.10000))
	assert.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = f2.store.OpenMapping(ctx, 555, "Apex")
	assert.ErrorIs(t, err, store.ErrNotFound)

	positions, err := f2.engine.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions, "no order was submitted")
}

func TestExecuteOpenUnknownSymbol(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())

	// EURUSD.c was never registered on this terminal.
	_, err := f.node.ExecuteOpen(context.Background(), openSignal(1.10000))
	assert.ErrorIs(t, err, broker.ErrSymbolNotFound)

	_, err = f.store.OpenMapping(context.Background(), 555, "Apex")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecuteOpenRejectedOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)
	f.engine.SetReject(broker.ErrRejected)

	_, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	assert.ErrorIs(t, err, broker.ErrRejected)

	_, err = f.store.OpenMapping(ctx, 555, "Apex")
	assert.ErrorIs(t, err, store.ErrNotFound, "rejected order leaves no correlation")
}

func TestExecuteOpenSymbolMapPrecedence(t *testing.T) {
	t.Parallel()

	acct := apexAccount()
	acct.SymbolMap = map[string]string{"XAUUSD": "GOLD"}
	acct.Suffix = ".pro"

	f := newFixture(t, acct)
	ctx := context.Background()

	f.engine.SetTick("GOLD", 2400.00, 2400.05)

	sig := bus.NewOpen(777, "XAUUSD", broker.Sell, 0.05, 2400.00, 0, 0)
	ticket, err := f.node.ExecuteOpen(ctx, sig)
	require.NoError(t, err)

	pos, ok, err := f.engine.Position(ctx, ticket)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GOLD", pos.Symbol, "explicit map entry wins over suffix")
}

func TestExecuteCloseFullCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)
	ticket, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.NoError(t, err)

	require.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))

	_, ok, err := f.engine.Position(ctx, ticket)
	require.NoError(t, err)
	assert.False(t, ok, "mirrored position was closed")

	_, err = f.store.OpenMapping(ctx, 555, "Apex")
	assert.ErrorIs(t, err, store.ErrNotFound, "mapping transitioned to CLOSED")
}

func TestExecuteCloseNoMappingIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())

	// Covers both a rejected-slippage open and an already-closed ticket.
	assert.NoError(t, f.node.ExecuteClose(context.Background(), bus.NewClose(555, "EURUSD")))
}

func TestExecuteCloseIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)
	_, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.NoError(t, err)

	require.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))
	require.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))

	// Exactly one CLOSED record, zero OPEN.
	open, err := f.store.OpenMappingsBySlave(ctx, "Apex")
	assert.NoError(t, err)
	assert.Empty(t, open)
}

func TestExecuteCloseReconcilesVanishedPosition(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)
	ticket, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.NoError(t, err)

	// The position disappears out-of-band (stopped out, manual close).
	f.engine.RemovePosition(ticket)

	assert.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))

	_, err = f.store.OpenMapping(ctx, 555, "Apex")
	assert.ErrorIs(t, err, store.ErrNotFound, "record reconciled to CLOSED")
}

func TestCorrelationUniquenessAcrossReplays(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)

	_, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.NoError(t, err)

	// Replaying the same open hits the partial unique index; the store
	// never holds two OPEN records for one (master_ticket, slave_name).
	_, err = f.node.ExecuteOpen(ctx, openSignal(1.10000))
	assert.Error(t, err)

	open, err := f.store.OpenMappingsBySlave(ctx, "Apex")
	assert.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestProcessUnknownActionIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	f.node.process(context.Background(), bus.Signal{Action: "MODIFY", Ticket: 1, Symbol: "EURUSD"})

	positions, err := f.engine.Positions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

// End-to-end: the exact scenario of a 555/EURUSD buy mirrored by slave
// "Apex" with suffix ".c" and tolerance 50, then closed by the master.
func TestScenarioOpenThenClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10010, 1.10015)

	sig := bus.NewOpen(555, "EURUSD", broker.Buy, 0.10, 1.10000, 1.09500, 1.11000)
	ticket, err := f.node.ExecuteOpen(ctx, sig)
	require.NoError(t, err)

	m, err := f.store.OpenMapping(ctx, 555, "Apex")
	require.NoError(t, err)
	assert.Equal(t, ticket, m.SlaveTicket)

	require.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))

	open, err := f.store.OpenMappingsBySlave(ctx, "Apex")
	require.NoError(t, err)
	assert.Empty(t, open)
}

// End-to-end: the same signal at an 80-point deviation is dropped and the
// subsequent close finds nothing to do.
func TestScenarioRejectedSlippage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, apexAccount())
	ctx := context.Background()

	f.engine.SetTick("EURUSD.c", 1.10075, 1.10080)

	_, err := f.node.ExecuteOpen(ctx, openSignal(1.10000))
	require.ErrorIs(t, err, ErrSlippageExceeded)

	assert.NoError(t, f.node.ExecuteClose(ctx, bus.NewClose(555, "EURUSD")))

	open, err := f.store.OpenMappingsBySlave(ctx, "Apex")
	require.NoError(t, err)
	assert.Empty(t, open)
}
