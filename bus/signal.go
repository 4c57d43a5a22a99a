package bus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rustyeddy/copytrader/broker"
)

// Signal actions. The bus carries exactly these two variants; anything else
// is rejected at the decode boundary.
const (
	ActionOpen  = "OPEN"
	ActionClose = "CLOSE"
)

// ErrMalformed marks payloads that fail wire validation. Receivers log and
// drop these; they never crash on them.
var ErrMalformed = fmt.Errorf("malformed signal")

// Signal is one immutable copy event. An OPEN carries the full order
// description; a CLOSE carries only the master ticket and symbol.
type Signal struct {
	Action     string
	Ticket     int64
	Symbol     string
	Side       broker.Side
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
}

func NewOpen(ticket int64, symbol string, side broker.Side, volume, price, sl, tp float64) Signal {
	return Signal{
		Action:     ActionOpen,
		Ticket:     ticket,
		Symbol:     symbol,
		Side:       side,
		Volume:     volume,
		Price:      price,
		StopLoss:   sl,
		TakeProfit: tp,
	}
}

func NewClose(ticket int64, symbol string) Signal {
	return Signal{Action: ActionClose, Ticket: ticket, Symbol: symbol}
}

// Wire shapes. OPEN: {"action","ticket","symbol","type","volume","price",
// "sl","tp"}; CLOSE: {"action","ticket","symbol"}. type is 0=BUY, 1=SELL.
type openWire struct {
	Action string  `json:"action"`
	Ticket int64   `json:"ticket"`
	Symbol string  `json:"symbol"`
	Type   int     `json:"type"`
	Volume float64 `json:"volume"`
	Price  float64 `json:"price"`
	SL     float64 `json:"sl"`
	TP     float64 `json:"tp"`
}

type closeWire struct {
	Action string `json:"action"`
	Ticket int64  `json:"ticket"`
	Symbol string `json:"symbol"`
}

// Encode serializes the signal as "<TOPIC> <JSON>". The leading topic token
// lets subscribers filter without parsing the payload.
func (s Signal) Encode(topic string) (string, error) {
	var payload any
	switch s.Action {
	case ActionOpen:
		payload = openWire{
			Action: ActionOpen,
			Ticket: s.Ticket,
			Symbol: s.Symbol,
			Type:   int(s.Side),
			Volume: s.Volume,
			Price:  s.Price,
			SL:     s.StopLoss,
			TP:     s.TakeProfit,
		}
	case ActionClose:
		payload = closeWire{Action: ActionClose, Ticket: s.Ticket, Symbol: s.Symbol}
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrMalformed, s.Action)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode signal: %w", err)
	}
	return topic + " " + string(b), nil
}

// Decode parses "<TOPIC> <JSON>" and validates the payload against the
// closed set of signal shapes.
func Decode(raw string) (Signal, error) {
	_, payload, ok := strings.Cut(raw, " ")
	if !ok {
		return Signal{}, fmt.Errorf("%w: missing topic separator", ErrMalformed)
	}

	var w openWire
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if w.Ticket <= 0 {
		return Signal{}, fmt.Errorf("%w: missing or invalid ticket", ErrMalformed)
	}
	if w.Symbol == "" {
		return Signal{}, fmt.Errorf("%w: missing symbol", ErrMalformed)
	}

	switch w.Action {
	case ActionOpen:
		if w.Type != 0 && w.Type != 1 {
			return Signal{}, fmt.Errorf("%w: invalid order type %d", ErrMalformed, w.Type)
		}
		if w.Volume <= 0 {
			return Signal{}, fmt.Errorf("%w: invalid volume %v", ErrMalformed, w.Volume)
		}
		return Signal{
			Action:     ActionOpen,
			Ticket:     w.Ticket,
			Symbol:     w.Symbol,
			Side:       broker.Side(w.Type),
			Volume:     w.Volume,
			Price:      w.Price,
			StopLoss:   w.SL,
			TakeProfit: w.TP,
		}, nil
	case ActionClose:
		return Signal{Action: ActionClose, Ticket: w.Ticket, Symbol: w.Symbol}, nil
	default:
		return Signal{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, w.Action)
	}
}
