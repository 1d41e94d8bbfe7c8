package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"imageBatch/worker/models"
	"imageBatch/worker/pool"
)

// MessageHandler processes one task. A nil return means the message is
// settled; an error means it should be delivered again.
type MessageHandler func(ctx context.Context, msg *models.TaskMessage) error

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	pool     *pool.WorkerPool
	logger   *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, workers *pool.WorkerPool, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, topic: topic, pool: workers, logger: logger}, nil
}

type consumerHandler struct {
	fn      MessageHandler
	pool    *pool.WorkerPool
	backoff time.Duration
	logger  *zap.Logger
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles one partition in order. An offset is marked only
// after its request has been processed, so a crash mid-task redelivers it.
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		taskMsg, err := decode(msg.Value)
		if err != nil {
			h.logger.Error("Dropping malformed task message",
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			session.MarkMessage(msg, "")
			continue
		}

		if !h.process(session.Context(), msg, taskMsg) {
			// Unmarked: the next owner of this partition starts here.
			return nil
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// process runs the handler until it succeeds, retrying failures a bounded
// number of times. It reports false when the session ended first, in which
// case the offset must stay unmarked.
func (h *consumerHandler) process(ctx context.Context, msg *sarama.ConsumerMessage, taskMsg *models.TaskMessage) bool {
	for attempt := 1; ; attempt++ {
		var handlerErr error
		if err := h.pool.Run(ctx, func(ctx context.Context) {
			handlerErr = h.fn(ctx, taskMsg)
		}); err != nil {
			return false
		}
		if handlerErr == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		if attempt >= maxAttempts {
			h.logger.Error("Giving up on task message",
				zap.String("request_id", taskMsg.RequestID),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempts", attempt),
				zap.Error(handlerErr),
			)
			return true
		}

		h.logger.Warn("Task failed, retrying",
			zap.String("request_id", taskMsg.RequestID),
			zap.Int("attempt", attempt),
			zap.Error(handlerErr),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.backoff * time.Duration(attempt)):
		}
	}
}

func decode(data []byte) (*models.TaskMessage, error) {
	var msg models.TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, errors.New("missing request_id")
	}
	return &msg, nil
}

// Consume blocks until ctx is canceled, rejoining the group after every
// rebalance.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	h := &consumerHandler{fn: handler, pool: c.pool, backoff: retryBackoff, logger: c.logger}
	for {
		if err := c.consumer.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
