package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS implements Store on a JetStream key-value bucket. Bucket revisions
// are used directly as store revisions.
type NATS struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATS connects to url and opens bucket, creating it when missing.
func NewNATS(ctx context.Context, url, bucket string, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("bili-live-store"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := openBucket(ctx, js, bucket, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &NATS{conn: conn, kv: kv}, nil
}

func openBucket(ctx context.Context, js jetstream.JetStream, bucket string, logger *slog.Logger) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("open KV bucket %q: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "bili-live checker state",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create KV bucket %q: %w", bucket, err)
	}
	logger.Info("Created KV bucket", "bucket", bucket)
	return kv, nil
}

func (n *NATS) Get(ctx context.Context, key string) (Entry, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("kv get %q: %w", key, err)
	}
	return Entry{Value: entry.Value(), Revision: entry.Revision()}, nil
}

func (n *NATS) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := n.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %q: %w", key, err)
	}
	return rev, nil
}

func (n *NATS) Swap(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var (
		rev uint64
		err error
	)
	if revision == 0 {
		rev, err = n.kv.Create(ctx, key, value)
	} else {
		rev, err = n.kv.Update(ctx, key, value, revision)
	}
	if wrongRevision(err) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("kv swap %q: %w", key, err)
	}
	return rev, nil
}

// wrongRevision reports a lost create or update race.
func wrongRevision(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (n *NATS) Ping(context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats connection is %s", n.conn.Status())
	}
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
