// Package pgnotify receives change notifications through PostgreSQL
// LISTEN/NOTIFY, as emitted by the triggers installed by the postgres adapter.
package pgnotify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"routesync/internal/adapters/out/changefeed"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"

	"github.com/lib/pq"
)

const (
	minReconnectInterval = 100 * time.Millisecond
	maxReconnectInterval = 10 * time.Second
	pingInterval         = 90 * time.Second
)

var (
	_ ports.ChangeFeed      = (*Feed)(nil)
	_ ports.ChangePublisher = (*Feed)(nil)
)

// Feed holds one LISTEN connection and fans notifications out through a hub.
// Run must be running for subscribers to receive anything.
type Feed struct {
	listener *pq.Listener
	db       *sql.DB
	channel  string
	hub      *changefeed.Hub
	logger   *slog.Logger
}

// New connects to dsn and listens on channel. db is used to publish and may
// be nil for a receive-only feed.
func New(dsn, channel string, db *sql.DB, logger *slog.Logger, m *metrics.Metrics) (*Feed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pgnotify")

	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			switch event {
			case pq.ListenerEventConnectionAttemptFailed:
				logger.Warn("listen connection attempt failed", "error", err)
			case pq.ListenerEventDisconnected:
				logger.Warn("listen connection lost", "error", err)
			case pq.ListenerEventReconnected:
				logger.Info("listen connection restored")
			}
		})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	return &Feed{
		listener: listener,
		db:       db,
		channel:  channel,
		hub:      changefeed.NewHub(m),
		logger:   logger,
	}, nil
}

func (f *Feed) Subscribe(
	_ context.Context, stream ports.Stream, filter ports.Filter, handler ports.NotificationHandler,
) (ports.Subscription, error) {
	return f.hub.Add(stream, filter, handler)
}

// Publish sends n on the feed's channel, for notifications that do not come
// from a trigger.
func (f *Feed) Publish(ctx context.Context, n ports.Notification) error {
	if f.db == nil {
		return fmt.Errorf("publish %s: feed is receive-only", n.Stream)
	}
	payload, err := changefeed.Encode(n)
	if err != nil {
		return err
	}
	_, err = f.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", f.channel, string(payload))
	return err
}

// Run dispatches notifications until ctx is done. A nil notification from the
// listener means the connection was re-established; subscribers are asked to
// resync because changes may have been missed.
func (f *Feed) Run(ctx context.Context) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-f.listener.Notify:
			if !ok {
				return fmt.Errorf("listener on %s closed", f.channel)
			}
			if n == nil {
				f.hub.Resync()
				continue
			}
			notification, err := changefeed.Decode([]byte(n.Extra))
			if err != nil {
				f.logger.Warn("dropping notification", "error", err)
				continue
			}
			f.hub.Dispatch(notification)
		case <-ping.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("listen connection ping failed", "error", err)
				}
			}()
		}
	}
}

func (f *Feed) Close() error {
	return f.listener.Close()
}
