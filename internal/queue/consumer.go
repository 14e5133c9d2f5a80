package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Deliverer receives snapshots published by other instances.
type Deliverer interface {
	DeliverRemote(channel string, payload json.RawMessage)
}

// Consumer binds an exclusive, auto-deleted queue to the fanout exchange
// and hands every foreign snapshot to a Deliverer.
type Consumer struct {
	URL      string
	Exchange string
	Origin   string

	log *slog.Logger
	out Deliverer
}

// NewConsumer returns a Consumer for the local instance.
func NewConsumer(url, exchange, origin string, out Deliverer, log *slog.Logger) *Consumer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{URL: url, Exchange: exchange, Origin: origin, out: out, log: log}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff capped at 30s.  It returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.log.Warn("relay.dial.fail", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("relay.consume.ended", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, c.Exchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("relay.consuming", "exchange", c.Exchange, "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(d.Body)
		}
	}
}

func (c *Consumer) handle(body []byte) {
	ev, err := decodeEvent(body)
	if err != nil {
		c.log.Warn("relay.message.bad", "err", err)
		return
	}
	if ev.Origin == c.Origin {
		return
	}
	c.out.DeliverRemote(ev.Channel, ev.Payload)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
