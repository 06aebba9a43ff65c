// Package broadcast pushes order status changes to realtime subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// StatusChange is the message delivered to subscribers.
type StatusChange struct {
	OrderID    int64             `json:"order_id"`
	UserID     int64             `json:"user_id"`
	StoreID    int64             `json:"store_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Broadcaster delivers a status change. Implementations may block on I/O.
type Broadcaster interface {
	Broadcast(ctx context.Context, change StatusChange) error
}

// Notifier wraps a Broadcaster for post-commit use: failures are logged, never returned.
type Notifier struct {
	target Broadcaster
	logg   *logger.Logger
}

func NewNotifier(target Broadcaster, logg *logger.Logger) *Notifier {
	return &Notifier{target: target, logg: logg}
}

// Notify delivers change and swallows any error.
func (n *Notifier) Notify(ctx context.Context, change StatusChange) {
	if n == nil || n.target == nil {
		return
	}
	if err := n.target.Broadcast(ctx, change); err != nil && n.logg != nil {
		ctx = n.logg.WithFields(ctx, map[string]any{"order_id": change.OrderID, "status": change.To.String()})
		n.logg.WarnErr(ctx, "broadcast.failed", err)
	}
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) (int64, error)
	ChannelName(name string) string
}

// RedisBroadcaster publishes JSON status changes on a redis channel.
type RedisBroadcaster struct {
	client  publisher
	channel string
}

func NewRedisBroadcaster(client publisher, channel string) (*RedisBroadcaster, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		channel = "orders"
	}
	return &RedisBroadcaster{client: client, channel: client.ChannelName(channel)}, nil
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, change StatusChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	if _, err := b.client.Publish(ctx, b.channel, payload); err != nil {
		return fmt.Errorf("publish status change: %w", err)
	}
	return nil
}

// Recorder keeps every change in memory. Used when no realtime transport is configured
// and by tests.
type Recorder struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (r *Recorder) Broadcast(_ context.Context, change StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

// Changes returns a copy of the recorded changes.
func (r *Recorder) Changes() []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusChange, len(r.changes))
	copy(out, r.changes)
	return out
}

// Discard drops everything.
type Discard struct{}

func (Discard) Broadcast(context.Context, StatusChange) error { return nil }
