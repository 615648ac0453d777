package events

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP publishes events to a RabbitMQ fanout exchange.
type AMQP struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewAMQP dials url and declares a durable fanout exchange.
func NewAMQP(url, exchange string, logger *slog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQP{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (a *AMQP) Publish(ctx context.Context, ev LiveEvent) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}

	err = a.channel.PublishWithContext(ctx,
		a.exchange,
		ev.Type, // routing key, ignored by fanout but useful to consumers
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.CycleID + ":" + ev.ID,
			Timestamp:    ev.At,
			Body:         data,
		})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	a.logger.Debug("Published live event", "type", ev.Type, "id", ev.ID)
	return nil
}

func (a *AMQP) Close() error {
	_ = a.channel.Close()
	return a.conn.Close()
}
