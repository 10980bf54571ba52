// Package kafkafeed distributes change notifications over a Kafka topic.
// Every service instance reads the topic with its own consumer group so that
// each one sees every notification.
package kafkafeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"routesync/internal/adapters/out/changefeed"
	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

var (
	_ ports.ChangeFeed      = (*Feed)(nil)
	_ ports.ChangePublisher = (*Feed)(nil)
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Feed struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	hub    *changefeed.Hub
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Feed, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka feed needs brokers, topic and group id")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kafkafeed")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
		ErrorLogger: kafkaLogger{logger: logger},
	})

	return &Feed{
		writer: writer,
		reader: reader,
		topic:  cfg.Topic,
		hub:    changefeed.NewHub(m),
		logger: logger,
	}, nil
}

func (f *Feed) Subscribe(
	_ context.Context, stream ports.Stream, filter ports.Filter, handler ports.NotificationHandler,
) (ports.Subscription, error) {
	return f.hub.Add(stream, filter, handler)
}

func (f *Feed) Publish(ctx context.Context, n ports.Notification) error {
	msg, err := toMessage(n)
	if err != nil {
		return err
	}
	return f.writer.WriteMessages(ctx, msg)
}

// Run consumes the topic until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	for {
		msg, err := f.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			f.logger.Error("kafka fetch failed", "error", err)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		n, err := fromMessage(msg)
		if err != nil {
			f.logger.Warn("dropping notification", "error", err, "offset", msg.Offset)
		} else {
			f.hub.Dispatch(n)
		}

		if err = f.reader.CommitMessages(ctx, msg); err != nil {
			f.logger.Warn("commit failed", "error", err, "offset", msg.Offset)
		}
	}
}

func (f *Feed) Close() error {
	return errors.Join(f.writer.Close(), f.reader.Close())
}

// Messages are keyed by stream so one stream stays on one partition.
func toMessage(n ports.Notification) (kafka.Message, error) {
	payload, err := changefeed.Encode(n)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal notification: %w", err)
	}
	return kafka.Message{
		Key:   []byte(n.Stream),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(n.Op)},
		},
	}, nil
}

func fromMessage(msg kafka.Message) (ports.Notification, error) {
	return changefeed.Decode(msg.Value)
}

type kafkaLogger struct {
	logger *slog.Logger
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	k.logger.Warn(fmt.Sprintf(msg, args...))
}
