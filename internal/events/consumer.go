package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentEvent is published by the payment provider integration.
type PaymentEvent struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

type PaymentUpdater interface {
	UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentConsumer applies payment outcomes read from Kafka to orders. An
// offset is committed once its message is applied or permanently rejected.
type PaymentConsumer struct {
	updater    PaymentUpdater
	permanent  func(error) bool
	reader     messageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewPaymentConsumer builds a consumer in the order-service group. permanent
// reports update errors that retrying cannot fix; any other error is retried.
func NewPaymentConsumer(updater PaymentUpdater, permanent func(error) bool, logger *zap.Logger, topic string, brokers ...string) *PaymentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "order-service",
		MaxBytes: 10e6, // 10MB
	})
	return &PaymentConsumer{
		updater:    updater,
		permanent:  permanent,
		reader:     reader,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *PaymentConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *PaymentConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

func (c *PaymentConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.logger.Error("error fetching payment message", zap.Error(err))
		c.wait(ctx)
		return
	}

	// the reader has already moved past m, so it is retried here until it
	// is handled or ctx ends
	for {
		err := c.handle(ctx, m)
		if err == nil {
			break
		}
		c.logger.Error("payment update failed, retrying",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
		if !c.wait(ctx) {
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Error("failed to commit payment message",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

// wait sleeps for retryDelay and reports false when ctx ended first.
func (c *PaymentConsumer) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryDelay):
		return true
	}
}

// handle returns an error only when the message should be retried.
func (c *PaymentConsumer) handle(ctx context.Context, m kafka.Message) error {
	log := c.logger.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	var event PaymentEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Warn("skipping malformed payment message", zap.Error(err))
		return nil
	}
	if event.OrderID == "" || event.PaymentStatus == "" {
		log.Warn("skipping incomplete payment message",
			zap.String("order_id", event.OrderID),
			zap.String("payment_status", event.PaymentStatus))
		return nil
	}

	order, err := c.updater.UpdatePaymentStatus(ctx, event.OrderID, event.PaymentStatus)
	if err != nil {
		if c.permanent != nil && c.permanent(err) {
			log.Warn("payment update rejected",
				zap.String("order_id", event.OrderID),
				zap.String("payment_status", event.PaymentStatus),
				zap.Error(err))
			return nil
		}
		return err
	}
	log.Info("payment status applied",
		zap.String("order_id", order.ID),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.String("status", string(order.Status)))
	return nil
}
