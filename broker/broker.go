package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/copytrader/market"
)

// Side is the direction of an order or position. The values match the wire
// encoding of copy signals (0=BUY, 1=SELL), so the constants must not be
// reordered.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SideFromString parses "BUY"/"SELL". Anything else defaults to Buy.
func SideFromString(s string) Side {
	if s == "SELL" {
		return Sell
	}
	return Buy
}

var (
	ErrNotConnected     = errors.New("broker not connected")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrRejected         = errors.New("order rejected")
)

// Broker is one live terminal connection.
//
// Implementations are not safe for concurrent callers: the underlying
// terminal APIs allow a single live session per process, so each node
// drives its broker from one sequential loop.
type Broker interface {
	Connect(ctx context.Context) error
	Connected() bool
	AccountSummary(ctx context.Context) (Account, error)

	// Positions returns every currently open position keyed by ticket.
	Positions(ctx context.Context) (map[int64]Position, error)
	// Position looks up one open position. The bool reports existence;
	// a missing position is not an error.
	Position(ctx context.Context, ticket int64) (Position, bool, error)

	// SelectSymbol makes a symbol visible/tradable on this terminal.
	SelectSymbol(ctx context.Context, symbol string) error
	SymbolInfo(ctx context.Context, symbol string) (market.SymbolInfo, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)

	MarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error)
	// ClosePosition submits the opposing market order for the full volume
	// of an open position.
	ClosePosition(ctx context.Context, ticket int64) (OrderFill, error)

	Close() error
}

type Account struct {
	ID       string
	Currency string
	Balance  float64
	Equity   float64
	Server   string
}

type Position struct {
	Ticket     int64
	Symbol     string
	Side       Side
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
}

type MarketOrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	StopLoss   float64
	TakeProfit float64
	Deviation  int // max fill deviation accepted by the broker, in points
	Magic      int // order identification tag
	Comment    string
}

type OrderFill struct {
	Ticket int64
	Symbol string
	Side   Side
	Volume float64
	Price  float64
	Time   time.Time
}
