// Package sim provides an in-process terminal implementing broker.Broker.
//
// It stands in for a real platform-specific terminal binding: quotes live in
// a tick store, orders fill instantly at the touch, and positions are held
// in memory. Nodes treat it exactly like a live connection, which keeps the
// whole copy pipeline runnable and testable on any machine.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/market"
)

type Engine struct {
	mu        sync.Mutex
	acct      broker.Account
	symbols   map[string]market.SymbolInfo
	selected  map[string]bool
	ticks     *market.TickStore
	positions map[int64]broker.Position
	nextTick  int64
	connected bool
	rejectErr error
}

func NewEngine(acct broker.Account) *Engine {
	return &Engine{
		acct:      acct,
		symbols:   make(map[string]market.SymbolInfo),
		selected:  make(map[string]bool),
		ticks:     market.NewTickStore(),
		positions: make(map[int64]broker.Position),
		nextTick:  1000,
	}
}

// AddSymbol registers a symbol with its quoting metadata.
func (e *Engine) AddSymbol(info market.SymbolInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info.Point <= 0 {
		info.Point = market.DefaultPoint
	}
	e.symbols[info.Name] = info
}

// SetTick publishes a quote. Unknown symbols are registered with the
// default point size.
func (e *Engine) SetTick(symbol string, bid, ask float64) {
	e.mu.Lock()
	if _, ok := e.symbols[symbol]; !ok {
		e.symbols[symbol] = market.SymbolInfo{Name: symbol, Point: market.DefaultPoint, Digits: 5}
	}
	e.mu.Unlock()
	e.ticks.Set(market.Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: time.Now()})
}

// SetReject makes every subsequent order fail with err; nil restores fills.
func (e *Engine) SetReject(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejectErr = err
}

// InjectPosition places a position directly on the book, as if it had been
// opened out-of-band. Used to drive master-side polling.
func (e *Engine) InjectPosition(p broker.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Ticket == 0 {
		e.nextTick++
		p.Ticket = e.nextTick
	}
	e.positions[p.Ticket] = p
}

// RemovePosition drops a position from the book without a fill, as if it
// had been closed out-of-band.
func (e *Engine) RemovePosition(ticket int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.positions, ticket)
}

func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = true
	return nil
}

func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) AccountSummary(ctx context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.Account{}, broker.ErrNotConnected
	}
	return e.acct, nil
}

func (e *Engine) Positions(ctx context.Context) (map[int64]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil, broker.ErrNotConnected
	}
	out := make(map[int64]broker.Position, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out, nil
}

func (e *Engine) Position(ctx context.Context, ticket int64) (broker.Position, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.Position{}, false, broker.ErrNotConnected
	}
	p, ok := e.positions[ticket]
	return p, ok, nil
}

func (e *Engine) SelectSymbol(ctx context.Context, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.ErrNotConnected
	}
	if _, ok := e.symbols[symbol]; !ok {
		return broker.ErrSymbolNotFound
	}
	e.selected[symbol] = true
	return nil
}

func (e *Engine) SymbolInfo(ctx context.Context, symbol string) (market.SymbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.symbols[symbol]
	if !ok {
		return market.SymbolInfo{}, broker.ErrSymbolNotFound
	}
	return info, nil
}

func (e *Engine) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	return e.ticks.Get(symbol)
}

func (e *Engine) MarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.OrderFill{}, broker.ErrNotConnected
	}
	if e.rejectErr != nil {
		return broker.OrderFill{}, e.rejectErr
	}
	if _, ok := e.symbols[req.Symbol]; !ok {
		return broker.OrderFill{}, broker.ErrSymbolNotFound
	}

	tick, err := e.ticks.Get(req.Symbol)
	if err != nil {
		return broker.OrderFill{}, err
	}

	// Buys fill on the ask, sells on the bid.
	fillPrice := tick.Ask
	if req.Side == broker.Sell {
		fillPrice = tick.Bid
	}

	e.nextTick++
	ticket := e.nextTick
	e.positions[ticket] = broker.Position{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		OpenPrice:  fillPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   time.Now(),
	}

	return broker.OrderFill{
		Ticket: ticket,
		Symbol: req.Symbol,
		Side:   req.Side,
		Volume: req.Volume,
		Price:  fillPrice,
		Time:   time.Now(),
	}, nil
}

func (e *Engine) ClosePosition(ctx context.Context, ticket int64) (broker.OrderFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return broker.OrderFill{}, broker.ErrNotConnected
	}
	if e.rejectErr != nil {
		return broker.OrderFill{}, e.rejectErr
	}
	p, ok := e.positions[ticket]
	if !ok {
		return broker.OrderFill{}, broker.ErrPositionNotFound
	}

	tick, err := e.ticks.Get(p.Symbol)
	if err != nil {
		return broker.OrderFill{}, err
	}

	// Longs close on the bid, shorts on the ask.
	closePrice := tick.Bid
	if p.Side == broker.Sell {
		closePrice = tick.Ask
	}

	delete(e.positions, ticket)

	return broker.OrderFill{
		Ticket: ticket,
		Symbol: p.Symbol,
		Side:   p.Side.Opposite(),
		Volume: p.Volume,
		Price:  closePrice,
		Time:   time.Now(),
	}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = false
	return nil
}
