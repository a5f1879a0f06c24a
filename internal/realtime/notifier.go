// Package realtime fans chat notifications out to connected users over
// Redis pub/sub. Every instance of the server can push to any user because
// delivery goes through a per-user channel rather than local connections.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "chat:user:"

// Channel returns the pub/sub channel for userID.
func Channel(userID string) string {
	return channelPrefix + userID
}

// Notification is the message published on a user channel.
type Notification struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Notifier publishes notifications to Redis.
type Notifier struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewNotifier creates a Redis-backed notifier.
func NewNotifier(client redis.UniversalClient, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Notify publishes payload to userID's channel. Users without a live
// subscription simply miss the notification.
func (n *Notifier) Notify(ctx context.Context, userID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	msg, err := json.Marshal(Notification{Type: eventType, Payload: data, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	receivers, err := n.client.Publish(ctx, Channel(userID), msg).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", eventType, err)
	}

	n.logger.DebugContext(ctx, "notification published",
		slog.String("user_id", userID),
		slog.String("type", eventType),
		slog.Int64("receivers", receivers),
	)
	return nil
}

// Subscription is a live feed of one user's notifications.
type Subscription struct {
	pubsub *redis.PubSub
	out    chan Notification
}

// Subscribe opens a feed for userID. The subscription is confirmed before
// Subscribe returns, so nothing published afterwards is missed.
func (n *Notifier) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	pubsub := n.client.Subscribe(ctx, Channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &Subscription{pubsub: pubsub, out: make(chan Notification, 16)}
	go sub.forward(n.logger)
	return sub, nil
}

// C delivers notifications until the subscription is closed.
func (s *Subscription) C() <-chan Notification {
	return s.out
}

// Close ends the subscription and closes C.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

func (s *Subscription) forward(logger *slog.Logger) {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		var n Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			logger.Warn("dropping malformed notification",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.out <- n
	}
}
