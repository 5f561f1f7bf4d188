package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/granule-extract/internal/config"
	"github.com/couchcryptid/granule-extract/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes unit-sealed notifications to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer     messageWriter
	logger     *slog.Logger
	maxElapsed time.Duration
}

// NewNotifier creates a Kafka producer for the configured notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger, maxElapsed: cfg.ShutdownTimeout}
}

// NotifyUnitSealed publishes one notification, retrying with exponential
// backoff until it is acknowledged, the context ends, or the retry budget
// is spent.
func (n *Notifier) NotifyUnitSealed(ctx context.Context, u domain.UnitSealed) error {
	msg, err := serializeToMessage(u)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = n.maxElapsed

	op := func() error { return n.writer.WriteMessages(ctx, msg) }
	notify := func(err error, wait time.Duration) {
		n.logger.Warn("publish unit notification failed, retrying",
			"unit", u.Unit, "error", err, "retry_in", wait.String())
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("publish unit notification %s: %w", u.Unit, err)
	}
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a notification into a Kafka message keyed by
// granule, so all units of one granule land on the same partition in order.
func serializeToMessage(u domain.UnitSealed) (kafkago.Message, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize unit notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(u.Granule),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset_id", Value: []byte(u.DatasetID)},
			{Key: "unit_index", Value: []byte(strconv.Itoa(u.Index))},
			{Key: "sealed_at", Value: []byte(u.SealedAt.Format(time.RFC3339))},
		},
	}, nil
}
