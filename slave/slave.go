// Package slave implements the executing side of the copy pipeline: consume
// broadcast signals, translate symbols for the local broker, gate on
// slippage, mirror the order, and keep the durable ticket correlation.
package slave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/bus"
	"github.com/rustyeddy/copytrader/market"
	"github.com/rustyeddy/copytrader/store"
	"github.com/rustyeddy/copytrader/symbol"
)

var (
	// ErrSlippageExceeded rejects an open whose live price has drifted too
	// far from the signal price. No correlation is created; a later close
	// for the same ticket becomes a logged no-op.
	ErrSlippageExceeded = errors.New("slippage exceeded")
)

// Receiver is the consuming side of the bus.
type Receiver interface {
	Receive(ctx context.Context) (*bus.Signal, error)
}

// Options are the per-process knobs that do not come from the account
// record.
type Options struct {
	Magic            int
	ReconnectBackoff time.Duration
}

type Node struct {
	account    store.Account
	broker     broker.Broker
	recv       Receiver
	store      store.Store
	translator *symbol.Translator
	tolerance  int
	opts       Options
	log        *logrus.Entry
}

func New(acct store.Account, b broker.Broker, recv Receiver, st store.Store, opts Options, log *logrus.Entry) *Node {
	return &Node{
		account:    acct,
		broker:     b,
		recv:       recv,
		store:      st,
		translator: symbol.NewTranslator(acct.SymbolMap, acct.Suffix),
		tolerance:  acct.SlippageTolerance,
		opts:       opts,
		log:        log,
	}
}

// ExecuteOpen mirrors an OPEN signal onto this broker and returns the slave
// ticket. Rejection paths (untranslatable symbol, slippage, broker refusal)
// return an error, create no correlation record, and leave the ticket in
// its initial state: a later CLOSE for it will find no mapping.
func (n *Node) ExecuteOpen(ctx context.Context, sig bus.Signal) (int64, error) {
	slaveSymbol := n.translator.Translate(sig.Symbol)

	if err := n.broker.SelectSymbol(ctx, slaveSymbol); err != nil {
		return 0, fmt.Errorf("select symbol %q: %w", slaveSymbol, err)
	}

	info, err := n.broker.SymbolInfo(ctx, slaveSymbol)
	if err != nil {
		return 0, fmt.Errorf("symbol info %q: %w", slaveSymbol, err)
	}

	tick, err := n.broker.Tick(ctx, slaveSymbol)
	if err != nil {
		return 0, fmt.Errorf("tick %q: %w", slaveSymbol, err)
	}

	// Buys execute on the ask, sells on the bid.
	live := tick.Ask
	if sig.Side == broker.Sell {
		live = tick.Bid
	}

	points := market.PointsBetween(live, sig.Price, info.Point)
	if points > n.tolerance {
		n.log.WithFields(logrus.Fields{
			"symbol":    slaveSymbol,
			"signal":    sig.Price,
			"live":      live,
			"points":    points,
			"tolerance": n.tolerance,
		}).Warn("slippage exceeded, dropping signal")
		return 0, fmt.Errorf("%w: %d points > %d", ErrSlippageExceeded, points, n.tolerance)
	}

	fill, err := n.broker.MarketOrder(ctx, broker.MarketOrderRequest{
		Symbol:     slaveSymbol,
		Side:       sig.Side,
		Volume:     sig.Volume,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Deviation:  n.tolerance,
		Magic:      n.opts.Magic,
		Comment:    fmt.Sprintf("Copy:%d", sig.Ticket),
	})
	if err != nil {
		return 0, fmt.Errorf("market order %q: %w", slaveSymbol, err)
	}

	n.log.WithFields(logrus.Fields{
		"ticket": fill.Ticket,
		"symbol": slaveSymbol,
		"side":   sig.Side.String(),
		"volume": sig.Volume,
		"price":  fill.Price,
	}).Info("mirrored open executed")

	// A crash between the fill above and this insert leaves the position
	// mirrored but untracked. There is no recovery path for that window.
	_, err = n.store.CreateMapping(ctx, store.Mapping{
		MasterTicket: sig.Ticket,
		SlaveName:    n.account.Name,
		SlaveTicket:  fill.Ticket,
		Symbol:       slaveSymbol,
		Direction:    sig.Side.String(),
		Status:       store.StatusOpen,
		OpenTime:     fill.Time,
	})
	if err != nil {
		return 0, fmt.Errorf("persist mapping: %w", err)
	}

	return fill.Ticket, nil
}

// ExecuteClose closes the mirrored position for a CLOSE signal. A missing
// mapping is a logged no-op: it covers both an open rejected on slippage
// and a close already processed. A mapping whose position is already gone
// on this broker is reconciled to CLOSED without an order.
func (n *Node) ExecuteClose(ctx context.Context, sig bus.Signal) error {
	m, err := n.store.OpenMapping(ctx, sig.Ticket, n.account.Name)
	if errors.Is(err, store.ErrNotFound) {
		n.log.WithField("ticket", sig.Ticket).Warn("no mapping found for master ticket")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup mapping: %w", err)
	}

	_, alive, err := n.broker.Position(ctx, m.SlaveTicket)
	if err != nil {
		return fmt.Errorf("query position %d: %w", m.SlaveTicket, err)
	}
	if !alive {
		n.log.WithFields(logrus.Fields{
			"ticket":       sig.Ticket,
			"slave_ticket": m.SlaveTicket,
		}).Info("position already gone, reconciling mapping")
		_, err := n.store.CloseMapping(ctx, sig.Ticket, n.account.Name)
		return err
	}

	fill, err := n.broker.ClosePosition(ctx, m.SlaveTicket)
	if err != nil {
		return fmt.Errorf("close position %d: %w", m.SlaveTicket, err)
	}

	n.log.WithFields(logrus.Fields{
		"ticket":       sig.Ticket,
		"slave_ticket": m.SlaveTicket,
		"symbol":       m.Symbol,
		"price":        fill.Price,
	}).Info("mirrored close executed")

	_, err = n.store.CloseMapping(ctx, sig.Ticket, n.account.Name)
	return err
}

// Run connects and consumes signals until the context is cancelled. If the
// terminal connection drops, processing pauses and reconnects on a fixed
// backoff; signals broadcast during the outage are lost, never retried.
func (n *Node) Run(ctx context.Context) error {
	if err := n.broker.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer n.broker.Close()

	if acct, err := n.broker.AccountSummary(ctx); err == nil {
		n.log.WithFields(logrus.Fields{
			"account": acct.ID,
			"balance": acct.Balance,
			"server":  acct.Server,
		}).Info("connected to slave terminal")
	}

	for {
		if ctx.Err() != nil {
			n.log.Info("slave node stopped")
			return nil
		}

		if !n.broker.Connected() {
			n.log.Warn("terminal disconnected, reconnecting")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(n.opts.ReconnectBackoff):
			}
			if err := n.broker.Connect(ctx); err != nil {
				n.log.WithError(err).Warn("reconnect failed")
			}
			continue
		}

		sig, err := n.recv.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.log.WithError(err).Warn("bus receive failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(n.opts.ReconnectBackoff):
			}
			continue
		}
		if sig == nil {
			continue
		}

		n.process(ctx, *sig)
	}
}

// process dispatches one signal. Failures are isolated to the signal: they
// are logged and the loop moves on.
func (n *Node) process(ctx context.Context, sig bus.Signal) {
	switch sig.Action {
	case bus.ActionOpen:
		if _, err := n.ExecuteOpen(ctx, sig); err != nil {
			n.log.WithError(err).WithField("ticket", sig.Ticket).Error("open signal failed")
		}
	case bus.ActionClose:
		if err := n.ExecuteClose(ctx, sig); err != nil {
			n.log.WithError(err).WithField("ticket", sig.Ticket).Error("close signal failed")
		}
	default:
		n.log.WithField("action", sig.Action).Warn("unknown signal action")
	}
}
