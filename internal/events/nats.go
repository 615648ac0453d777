package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "BILI_LIVE_EVENTS"

// NATS publishes events to a JetStream subject.
type NATS struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  *slog.Logger
}

// NewNATS connects and makes sure a stream captures subject.
func NewNATS(url, subject string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("bili-live-events"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subject},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create stream %s: %w", streamName, err)
	}

	return &NATS{conn: conn, js: js, subject: subject, logger: logger}, nil
}

func (n *NATS) Publish(ctx context.Context, ev LiveEvent) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := n.js.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	n.logger.Debug("Published live event", "type", ev.Type, "id", ev.ID)
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
