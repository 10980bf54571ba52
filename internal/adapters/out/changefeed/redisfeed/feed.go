// Package redisfeed distributes change notifications over Redis Pub/Sub so
// that several service instances share what one of them relays from the
// database.
package redisfeed

import (
	"context"
	"fmt"
	"log/slog"

	"routesync/internal/adapters/out/changefeed"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

var (
	_ ports.ChangeFeed      = (*Feed)(nil)
	_ ports.ChangePublisher = (*Feed)(nil)
)

// Feed publishes to and receives from one Redis channel.
type Feed struct {
	client  *redis.Client
	channel string
	hub     *changefeed.Hub
	logger  *slog.Logger
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, addr, password string, db int, channel string, logger *slog.Logger, m *metrics.Metrics) (*Feed, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, channel, logger, m), nil
}

func NewWithClient(client *redis.Client, channel string, logger *slog.Logger, m *metrics.Metrics) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		client:  client,
		channel: channel,
		hub:     changefeed.NewHub(m),
		logger:  logger.With("component", "redisfeed"),
	}
}

func (f *Feed) Subscribe(
	_ context.Context, stream ports.Stream, filter ports.Filter, handler ports.NotificationHandler,
) (ports.Subscription, error) {
	return f.hub.Add(stream, filter, handler)
}

func (f *Feed) Publish(ctx context.Context, n ports.Notification) error {
	payload, err := changefeed.Encode(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err = f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Run receives from the channel until ctx is done. ready, if not nil, is
// closed once the subscription is confirmed by the server.
func (f *Feed) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis channel %s closed", f.channel)
			}
			n, err := changefeed.Decode([]byte(msg.Payload))
			if err != nil {
				f.logger.Warn("dropping notification", "error", err)
				continue
			}
			f.hub.Dispatch(n)
		}
	}
}

func (f *Feed) Close() error {
	return f.client.Close()
}
