package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"imageBatch/api/dto"
)

var ErrNotConfirmed = errors.New("broker did not confirm task message")

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, msg amqp.Publishing) (confirmation, error)

// Publisher sends task messages to a durable RabbitMQ queue. The channel is
// in confirm mode, so Dispatch returns only once the broker has taken the
// message.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	publish publishFunc
}

func NewPublisher(rabbitURL, queueName string, logger *zap.Logger) (*Publisher, error) {
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

	if err := channel.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	publish := func(ctx context.Context, msg amqp.Publishing) (confirmation, error) {
		dc, err := channel.PublishWithDeferredConfirmWithContext(ctx,
			"",
			queueName,
			false, // mandatory
			false, // immediate
			msg,
		)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, errors.New("channel is not in confirm mode")
		}
		return dc, nil
	}

	return &Publisher{
		conn:    conn,
		channel: channel,
		publish: publish,
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

func (p *Publisher) Dispatch(ctx context.Context, message *dto.TaskMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	confirm, err := p.publish(ctx, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     message.RequestID,
		CorrelationId: message.TraceID,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish task message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for publish confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
