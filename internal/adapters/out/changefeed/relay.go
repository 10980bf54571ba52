package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"routesync/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
)

const (
	relayBuffer      = 256
	relayMaxAttempts = 3
)

// Relay copies every notification of source onto sink. It runs on the
// instance that holds the database listener and feeds a broker the other
// instances subscribe to.
type Relay struct {
	source ports.ChangeFeed
	sink   ports.ChangePublisher
	logger *slog.Logger
	retry  func() backoff.BackOff
}

func NewRelay(source ports.ChangeFeed, sink ports.ChangePublisher, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		source: source,
		sink:   sink,
		logger: logger.With("component", "ChangeRelay"),
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, relayMaxAttempts-1)
		},
	}
}

// Run relays until ctx is done. Notifications arriving while the buffer is
// full are dropped with a warning; subscribers downstream recover on the next
// change or poll.
func (r *Relay) Run(ctx context.Context) error {
	queue := make(chan ports.Notification, relayBuffer)
	enqueue := func(n ports.Notification) {
		select {
		case queue <- n:
		default:
			r.logger.Warn("relay buffer full, dropping notification", "stream", n.Stream, "op", n.Op)
		}
	}

	subs := make([]ports.Subscription, 0, len(ports.Streams()))
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()
	for _, stream := range ports.Streams() {
		sub, err := r.source.Subscribe(ctx, stream, ports.Filter{}, enqueue)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}

	r.logger.Info("relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return nil
		case n := <-queue:
			err := backoff.Retry(func() error {
				return r.sink.Publish(ctx, n)
			}, backoff.WithContext(r.retry(), ctx))
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("failed to relay notification", "stream", n.Stream, "op", n.Op, "error", err)
			}
		}
	}
}
