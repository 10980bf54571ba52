package changefeed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"routesync/internal/adapters/out/changefeed"
	"routesync/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubFeed struct {
	*changefeed.Hub
}

func (f hubFeed) Subscribe(_ context.Context, stream ports.Stream, filter ports.Filter, h ports.NotificationHandler) (ports.Subscription, error) {
	return f.Add(stream, filter, h)
}

type recordingPublisher struct {
	mu        sync.Mutex
	failFirst int
	attempts  int
	published []ports.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n ports.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.attempts <= p.failFirst {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, n)
	return nil
}

func (p *recordingPublisher) snapshot() (int, []ports.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, append([]ports.Notification(nil), p.published...)
}

func runRelay(t *testing.T, source hubFeed, sink *recordingPublisher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- changefeed.NewRelay(source, sink, nil).Run(ctx) }()
	require.Eventually(t, func() bool { return source.Len() == len(ports.Streams()) }, time.Second, time.Millisecond)
	return func() {
		cancel()
		require.NoError(t, <-done)
		assert.Zero(t, source.Len())
	}
}

func TestRelay_ForwardsEveryStream(t *testing.T) {
	source := hubFeed{changefeed.NewHub(nil)}
	sink := &recordingPublisher{}
	stop := runRelay(t, source, sink)

	for _, stream := range ports.Streams() {
		source.Dispatch(ports.Notification{Stream: stream, Op: "INSERT"})
	}

	require.Eventually(t, func() bool {
		_, published := sink.snapshot()
		return len(published) == 3
	}, time.Second, time.Millisecond)
	stop()
}

func TestRelay_RetriesFailedPublish(t *testing.T) {
	source := hubFeed{changefeed.NewHub(nil)}
	sink := &recordingPublisher{failFirst: 2}
	stop := runRelay(t, source, sink)

	source.Dispatch(ports.Notification{Stream: ports.StreamOrders, Op: "UPDATE"})

	require.Eventually(t, func() bool {
		_, published := sink.snapshot()
		return len(published) == 1
	}, 5*time.Second, 5*time.Millisecond)
	attempts, _ := sink.snapshot()
	assert.Equal(t, 3, attempts)
	stop()
}
