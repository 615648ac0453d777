// Package checker runs one live-status check cycle:
// fetch → diff → persist (if changed) → publish → notify (if newly live).
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lovetingyuan/bili-live/internal/bili"
	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/events"
	"github.com/lovetingyuan/bili-live/internal/metrics"
	"github.com/lovetingyuan/bili-live/internal/monitor"
	"github.com/lovetingyuan/bili-live/internal/notifications"
	"github.com/lovetingyuan/bili-live/internal/store"
)

// cycleTimeout bounds one cycle: three upstream attempts with backoff plus
// the push settle delay.
const cycleTimeout = 2 * time.Minute

// Fetcher returns the current status of a batch of user IDs.
type Fetcher interface {
	FetchStatuses(ctx context.Context, ids []string) (bili.Snapshot, error)
}

// Options wires a Checker. Store, Fetcher and Notifier are required.
type Options struct {
	Store       store.Store
	Fetcher     Fetcher
	Notifier    notifications.Notifier
	Publisher   events.Publisher
	Metrics     *metrics.Recorder
	FallbackIDs []string // used while the store has no up_ids value
	OnPersist   func()   // called after a changed live set is stored
	Logger      *slog.Logger
}

// Checker runs check cycles. Safe for concurrent use; overlapping calls
// within one process share a single in-flight cycle.
type Checker struct {
	store       store.Store
	fetcher     Fetcher
	notifier    notifications.Notifier
	publisher   events.Publisher
	metrics     *metrics.Recorder
	fallbackIDs []string
	onPersist   func()
	logger      *slog.Logger

	group singleflight.Group
	now   func() time.Time
	newID func() string
}

// New creates a Checker.
func New(opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Checker{
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		notifier:    opts.Notifier,
		publisher:   publisher,
		metrics:     opts.Metrics,
		fallbackIDs: opts.FallbackIDs,
		onPersist:   opts.OnPersist,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Check runs one cycle and returns the updated live set. It returns nil
// with no error when no IDs are tracked.
//
// The cycle itself runs detached from ctx, bounded by cycleTimeout, so a
// caller that gives up does not abort it for callers that joined it.
func (c *Checker) Check(ctx context.Context) (monitor.LiveSet, error) {
	ch := c.group.DoChan("check", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cycleTimeout)
		defer cancel()
		return c.run(runCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("Joined in-flight check cycle")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		live, _ := res.Val.(monitor.LiveSet)
		return live, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunScheduled runs a cycle for the scheduler. Failures are logged and
// reported through the notifier; a failing report is only logged.
func (c *Checker) RunScheduled(ctx context.Context) {
	if _, err := c.Check(ctx); err != nil {
		c.logger.Error("Scheduled check failed", "error", err)
		if ctx.Err() != nil {
			return
		}
		if nerr := c.notifier.Send(ctx, notifications.FailureTitle, err.Error()); nerr != nil {
			c.metrics.Notification("failed")
			c.logger.Error("Failed to report check failure", "error", nerr)
			return
		}
		c.metrics.Notification("sent")
	}
}

func (c *Checker) run(ctx context.Context) (live monitor.LiveSet, err error) {
	start := c.now()
	cycleID := c.newID()
	logger := c.logger.With("cycle_id", cycleID)

	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		c.metrics.Cycle(outcome, c.now().Sub(start))
	}()

	// Idle → Fetching
	ids, err := c.TrackedIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		outcome = "noop"
		logger.Info("No tracked IDs; skipping check")
		return nil, nil
	}

	previous, revision, err := store.GetJSON(ctx, c.store, config.LiveUpsKey, monitor.LiveSet{})
	if err != nil {
		return nil, fmt.Errorf("load live set: %w", err)
	}
	if previous == nil {
		previous = monitor.LiveSet{}
	}

	snapshot, err := c.fetcher.FetchStatuses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch statuses: %w", err)
	}

	// Diffing
	res := monitor.Apply(snapshot, previous)
	logger.Info("Check cycle diffed",
		"tracked", len(ids),
		"reported", len(snapshot),
		"live", len(res.Updated),
		"newly_live", len(res.NewlyLive),
		"went_offline", len(res.WentOffline))

	// Persisting
	if res.Changed {
		if _, err := store.SwapJSON(ctx, c.store, config.LiveUpsKey, res.Updated, revision); err != nil {
			if errors.Is(err, store.ErrConflict) {
				logger.Warn("Live set changed underneath this cycle", "revision", revision)
			}
			return nil, fmt.Errorf("persist live set: %w", err)
		}
		if c.onPersist != nil {
			c.onPersist()
		}
		c.publish(ctx, logger, res, cycleID)
	}
	c.metrics.LiveStreamers(len(res.Updated))

	// Notifying
	if len(res.NewlyLive) > 0 {
		title, body := notifications.Digest(res.Updated)
		if err := c.notifier.Send(ctx, title, body); err != nil {
			c.metrics.Notification("failed")
			return nil, fmt.Errorf("notify: %w", err)
		}
		c.metrics.Notification("sent")
		logger.Info("Live digest sent", "title", title)
	}

	return res.Updated, nil
}

// publish emits transition events. Failures never fail the cycle.
func (c *Checker) publish(ctx context.Context, logger *slog.Logger, res monitor.Result, cycleID string) {
	for _, ev := range events.FromResult(res, cycleID, c.now()) {
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.metrics.EventPublished("failed")
			logger.Warn("Failed to publish live event", "type", ev.Type, "id", ev.ID, "error", err)
			continue
		}
		c.metrics.EventPublished("ok")
	}
}

// TrackedIDs returns the IDs from the store's up_ids value, falling back to
// the configured list while the key is absent.
func (c *Checker) TrackedIDs(ctx context.Context) ([]string, error) {
	entry, err := c.store.Get(ctx, config.UpIDsKey)
	if errors.Is(err, store.ErrNotFound) {
		return c.fallbackIDs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tracked ids: %w", err)
	}
	return config.SplitIDs(string(entry.Value)), nil
}

// State is the persisted view returned by Inspect.
type State struct {
	LiveUps monitor.LiveSet `json:"liveUps"`
	UpIDs   string          `json:"up_ids"`
}

// Inspect returns the stored live set and raw ID list without running a cycle.
func (c *Checker) Inspect(ctx context.Context) (State, error) {
	live, _, err := store.GetJSON(ctx, c.store, config.LiveUpsKey, monitor.LiveSet{})
	if err != nil {
		return State{}, fmt.Errorf("load live set: %w", err)
	}
	raw, err := store.GetString(ctx, c.store, config.UpIDsKey, "")
	if err != nil {
		return State{}, fmt.Errorf("load tracked ids: %w", err)
	}
	return State{LiveUps: live, UpIDs: raw}, nil
}

// Notify sends an arbitrary message through the configured notifier.
func (c *Checker) Notify(ctx context.Context, title, body string) error {
	if err := c.notifier.Send(ctx, title, body); err != nil {
		c.metrics.Notification("failed")
		return err
	}
	c.metrics.Notification("sent")
	return nil
}
