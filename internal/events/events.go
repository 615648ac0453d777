// Package events publishes live/offline transitions to a message broker so
// other consumers can react without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/monitor"
)

// Event types.
const (
	TypeLive    = "live"
	TypeOffline = "offline"
)

// LiveEvent is the wire form of one transition.
type LiveEvent struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	Name    string    `json:"uname"`
	Title   string    `json:"title"`
	RoomID  int64     `json:"roomId"`
	CycleID string    `json:"cycleId"`
	At      time.Time `json:"at"`
}

// Publisher delivers encoded events.
type Publisher interface {
	Publish(ctx context.Context, ev LiveEvent) error
	Close() error
}

// FromResult converts a diff result into events, live transitions first.
func FromResult(res monitor.Result, cycleID string, at time.Time) []LiveEvent {
	out := make([]LiveEvent, 0, len(res.NewlyLive)+len(res.WentOffline))
	for _, tr := range res.NewlyLive {
		out = append(out, newEvent(TypeLive, tr, cycleID, at))
	}
	for _, tr := range res.WentOffline {
		out = append(out, newEvent(TypeOffline, tr, cycleID, at))
	}
	return out
}

func newEvent(typ string, tr monitor.Transition, cycleID string, at time.Time) LiveEvent {
	return LiveEvent{
		Type:    typ,
		ID:      tr.ID,
		Name:    tr.Name,
		Title:   tr.Title,
		RoomID:  tr.RoomID,
		CycleID: cycleID,
		At:      at.UTC(),
	}
}

func encode(ev LiveEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, LiveEvent) error { return nil }
func (Nop) Close() error                             { return nil }

// Open builds the publisher selected by cfg.EventsDriver.
func Open(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsNATS:
		p, err := NewNATS(cfg.NATSURL, cfg.EventsSubject, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("NATS event publisher ready", "subject", cfg.EventsSubject)
		return p, nil
	case config.EventsAMQP:
		p, err := NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("AMQP event publisher ready", "exchange", cfg.AMQPExchange)
		return p, nil
	default:
		return Nop{}, nil
	}
}
