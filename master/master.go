// Package master implements the signal-generating side of the copy
// pipeline: poll the master terminal, diff consecutive snapshots, broadcast
// one signal per transition.
package master

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/bus"
)

// Publisher is the broadcast side of the bus.
type Publisher interface {
	Publish(ctx context.Context, s bus.Signal) error
}

type Node struct {
	name     string
	broker   broker.Broker
	pub      Publisher
	interval time.Duration
	log      *logrus.Entry
}

func New(name string, b broker.Broker, pub Publisher, interval time.Duration, log *logrus.Entry) *Node {
	return &Node{
		name:     name,
		broker:   b,
		pub:      pub,
		interval: interval,
		log:      log,
	}
}

// Diff compares two position snapshots keyed by ticket. Tickets in current
// but not cached were opened since the last poll; tickets in cached but not
// current were closed. A position that opens and fully closes between two
// polls appears in neither set and is never observed; that is the accepted
// cost of snapshot diffing.
func Diff(current, cached map[int64]broker.Position) (opened, closed []int64) {
	for ticket := range current {
		if _, ok := cached[ticket]; !ok {
			opened = append(opened, ticket)
		}
	}
	for ticket := range cached {
		if _, ok := current[ticket]; !ok {
			closed = append(closed, ticket)
		}
	}
	return opened, closed
}

// Run connects, seeds the ticket cache from the first snapshot (positions
// already open at startup are not rebroadcast), then polls on a fixed
// interval until the context is cancelled. The cache lives on this loop's
// stack; nothing else mutates it.
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
		}).Info("connected to master terminal")
	}

	cache, err := n.broker.Positions(ctx)
	if err != nil {
		n.log.WithError(err).Warn("initial snapshot failed, starting empty")
		cache = make(map[int64]broker.Position)
	}
	n.log.WithField("positions", len(cache)).Info("initial positions loaded")

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("master node stopped")
			return nil
		case <-ticker.C:
			cache = n.cycle(ctx, cache)
		}
	}
}

// cycle runs one poll. On a broker failure the cycle is skipped and the
// cache returned unchanged, so the missed transition is picked up by the
// next successful poll.
func (n *Node) cycle(ctx context.Context, cached map[int64]broker.Position) map[int64]broker.Position {
	current, err := n.broker.Positions(ctx)
	if err != nil {
		n.log.WithError(err).Warn("poll failed, skipping cycle")
		return cached
	}

	opened, closed := Diff(current, cached)

	for _, ticket := range opened {
		pos := current[ticket]
		sig := bus.NewOpen(pos.Ticket, pos.Symbol, pos.Side, pos.Volume, pos.OpenPrice, pos.StopLoss, pos.TakeProfit)
		if err := n.pub.Publish(ctx, sig); err != nil {
			n.log.WithError(err).WithField("ticket", ticket).Error("publish open failed")
			continue
		}
		n.log.WithFields(logrus.Fields{
			"ticket": pos.Ticket,
			"symbol": pos.Symbol,
			"side":   pos.Side.String(),
			"volume": pos.Volume,
			"price":  pos.OpenPrice,
		}).Info("OPEN signal published")
	}

	for _, ticket := range closed {
		// The position is gone from the broker and cannot be re-queried;
		// the cached snapshot supplies the symbol.
		symbol := cached[ticket].Symbol
		if err := n.pub.Publish(ctx, bus.NewClose(ticket, symbol)); err != nil {
			n.log.WithError(err).WithField("ticket", ticket).Error("publish close failed")
			continue
		}
		n.log.WithFields(logrus.Fields{
			"ticket": ticket,
			"symbol": symbol,
		}).Info("CLOSE signal published")
	}

	return current
}
