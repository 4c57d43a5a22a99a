// Package bus is the one-to-many broadcast channel between a master node
// and its slaves, carried over Redis pub/sub.
//
// Delivery is best effort and at most once: nothing is buffered for
// subscribers that are not connected at publish time, and late joiners see
// no history. For any one connected subscriber, messages arrive in publish
// order.
package bus

import (
	"context"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DefaultReceiveTimeout bounds a single Receive call so the consuming loop
// stays responsive to shutdown between messages.
const DefaultReceiveTimeout = 100 * time.Millisecond

// Publisher broadcasts signals on one topic.
type Publisher struct {
	client *redis.Client
	topic  string
	log    *logrus.Entry
}

func NewPublisher(addr, topic string, log *logrus.Entry) (*Publisher, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: redis.NewClient(opt), topic: topic, log: log}, nil
}

// Start verifies the bus endpoint is reachable.
func (p *Publisher) Start(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish is fire-and-forget: with no subscriber connected the message is
// simply not delivered.
func (p *Publisher) Publish(ctx context.Context, s Signal) error {
	payload, err := s.Encode(p.topic)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topic, payload).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Subscriber receives signals for one topic.
type Subscriber struct {
	client  *redis.Client
	topic   string
	timeout time.Duration
	sub     *redis.PubSub
	log     *logrus.Entry
}

func NewSubscriber(addr, topic string, timeout time.Duration, log *logrus.Entry) (*Subscriber, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	return &Subscriber{client: redis.NewClient(opt), topic: topic, timeout: timeout, log: log}, nil
}

// Start connects and subscribes to the topic. Messages published before
// this returns are never observed.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return err
	}
	s.sub = s.client.Subscribe(ctx, s.topic)
	// Wait for the subscription confirmation so the caller knows the
	// broadcast is flowing from here on.
	_, err := s.sub.Receive(ctx)
	return err
}

// Receive blocks up to the configured timeout. It returns (nil, nil) when
// no message arrived, and drops malformed payloads with a warning.
func (s *Subscriber) Receive(ctx context.Context) (*Signal, error) {
	msg, err := s.sub.ReceiveTimeout(ctx, s.timeout)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	m, ok := msg.(*redis.Message)
	if !ok {
		// Subscription/pong control frames.
		return nil, nil
	}

	sig, err := Decode(m.Payload)
	if err != nil {
		s.log.WithError(err).Warn("dropping malformed bus payload")
		return nil, nil
	}
	return &sig, nil
}

func (s *Subscriber) Close() error {
	if s.sub != nil {
		_ = s.sub.Close()
	}
	return s.client.Close()
}
