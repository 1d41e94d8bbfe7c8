package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"imageBatch/worker/models"
	"imageBatch/worker/pool"
)

// MessageHandler processes one task. A nil return acks the delivery; an
// error requeues it.
type MessageHandler func(ctx context.Context, msg *models.TaskMessage) error

// Consumer reads task messages from a durable queue. Deliveries are acked
// after processing; prefetch matches the pool size so the broker never hands
// this worker more than it can run.
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	pool      *pool.WorkerPool
	logger    *zap.Logger
}

func NewConsumer(rabbitURL, queueName string, prefetch int, workers *pool.WorkerPool, logger *zap.Logger) (*Consumer, error) {
	conn, err := connectWithRetry(rabbitURL, 10, 5*time.Second, logger)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := channel.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		pool:      workers,
		logger:    logger,
	}, nil
}

func connectWithRetry(url string, maxRetries int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}

		logger.Warn("RabbitMQ connection failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxRetries, err)
}

// Consume blocks until ctx is canceled or the channel closes.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx,
		c.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler MessageHandler) {
	var msg models.TaskMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.RequestID == "" {
		c.logger.Error("Dropping malformed task message",
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		d.Nack(false, false)
		return
	}

	c.pool.Submit(ctx, func(ctx context.Context) {
		c.settle(ctx, d, &msg, handler(ctx, &msg))
	})
}

// settle acks a processed delivery. A run cut short by shutdown is always
// requeued; any other failure is requeued once and then dropped.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, msg *models.TaskMessage, handlerErr error) {
	logger := c.logger.With(zap.String("request_id", msg.RequestID))

	var err error
	switch {
	case handlerErr == nil:
		err = d.Ack(false)
	case ctx.Err() != nil || !d.Redelivered:
		logger.Warn("Requeueing task message", zap.Error(handlerErr))
		err = d.Nack(false, true)
	default:
		logger.Error("Dropping task message after redelivery failed", zap.Error(handlerErr))
		err = d.Nack(false, false)
	}
	if err != nil {
		logger.Warn("Failed to settle delivery", zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
