package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes snapshots to the fanout exchange.  It dials per
// publish: mutations are infrequent and a dead broker must not wedge a
// long-lived channel.
type Publisher struct {
	URL      string
	Exchange string
	Origin   string
}

// NewPublisher returns a Publisher tagged with the local instance id.
func NewPublisher(url, exchange, origin string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{URL: url, Exchange: exchange, Origin: origin}
}

// Publish sends one snapshot.  Messages are transient; a snapshot is
// superseded by the next one so there is nothing worth persisting.
func (p *Publisher) Publish(ctx context.Context, channel string, payload json.RawMessage) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, p.Exchange); err != nil {
		return err
	}

	body, err := json.Marshal(SnapshotEvent{
		Origin:      p.Origin,
		Channel:     channel,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		p.Exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now().UTC(),
			AppId:        p.Origin,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
