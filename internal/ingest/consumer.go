// v2
// internal/ingest/consumer.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/metrics"
)

// Recorder is the slice of the analytics service the consumer needs.
type Recorder interface {
	Ingest(ctx context.Context, deviceID string, powerWatts float64, observedAt time.Time) error
}

// ConsumerConfig captures the runtime tunables required to consume the raw
// telemetry stream. All fields must be populated by the caller.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer streams readings from Kafka into the analytics service. Malformed
// or invalid messages are logged, counted, and committed so one bad producer
// cannot wedge the partition.
type Consumer struct {
	cfg      ConsumerConfig
	reader   *kafka.Reader
	recorder Recorder
	log      *slog.Logger
}

// NewConsumer builds a consumer-group reader for the telemetry topic.
func NewConsumer(cfg ConsumerConfig, rec Recorder, log *slog.Logger) (*Consumer, error) {
	if log == nil {
		return nil, errors.New("logger must not be nil")
	}
	if rec == nil {
		return nil, errors.New("recorder must not be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("telemetry topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	return &Consumer{cfg: cfg, reader: reader, recorder: rec, log: log}, nil
}

// Close shuts down the underlying Kafka reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Run blocks until the context is cancelled or the reader is closed,
// consuming messages and recording valid readings.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("telemetry_consumer_started",
		slog.String("topic", c.cfg.Topic),
		slog.String("group", c.cfg.GroupID),
		slog.String("brokers", strings.Join(c.cfg.Brokers, ",")),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info("telemetry_consumer_stopped")
				return ctx.Err()
			}
			return err
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.log.Error("commit_failed",
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var rw ReadingWire
	if err := json.Unmarshal(msg.Value, &rw); err != nil {
		metrics.ObserveKafkaMessage(metrics.KafkaInvalid)
		c.log.Error("invalid_json",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err),
		)
		return
	}
	r, err := rw.ToReading()
	if err != nil {
		metrics.ObserveKafkaMessage(metrics.KafkaInvalid)
		c.log.Error("validation_failed",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err),
		)
		return
	}

	if err := c.recorder.Ingest(ctx, r.DeviceID, r.PowerWatts, r.ObservedAt); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidReading), errors.Is(err, core.ErrUnknownDevice):
			metrics.ObserveKafkaMessage(metrics.KafkaInvalid)
			c.log.Warn("reading_rejected",
				slog.String("device_id", r.DeviceID),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
		default:
			metrics.ObserveKafkaMessage(metrics.KafkaFailed)
			c.log.Error("reading_store_failed",
				slog.String("device_id", r.DeviceID),
				slog.Int64("offset", msg.Offset),
				slog.Any("err", err),
			)
		}
		return
	}
	metrics.ObserveKafkaMessage(metrics.KafkaAccepted)
}
