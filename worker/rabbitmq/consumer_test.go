package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"imageBatch/worker/models"
	"imageBatch/worker/pool"
)

type mockAcknowledger struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (a *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked++
	return nil
}

func (a *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func newTestConsumer(t *testing.T) *Consumer {
	return &Consumer{pool: pool.NewWorkerPool(2), logger: zaptest.NewLogger(t)}
}

func delivery(ack amqp.Acknowledger, body string, redelivered bool) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body), Redelivered: redelivered}
}

const taskBody = `{"request_id":"req-1","trace_id":"t-1"}`

func TestHandle_AcksProcessedDelivery(t *testing.T) {
	c := newTestConsumer(t)
	ack := &mockAcknowledger{}

	var got *models.TaskMessage
	c.handle(context.Background(), delivery(ack, taskBody, false), func(ctx context.Context, msg *models.TaskMessage) error {
		got = msg
		return nil
	})
	c.pool.Wait()

	if got == nil || got.RequestID != "req-1" {
		t.Fatalf("Expected handler to receive req-1, got %+v", got)
	}
	if ack.acked != 1 || ack.nacked != 0 {
		t.Errorf("Expected one ack, got acked=%d nacked=%d", ack.acked, ack.nacked)
	}
}

func TestHandle_CanceledMidTaskRequeues(t *testing.T) {
	c := newTestConsumer(t)
	ack := &mockAcknowledger{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.handle(ctx, delivery(ack, taskBody, true), func(ctx context.Context, msg *models.TaskMessage) error {
		cancel()
		return ctx.Err()
	})
	c.pool.Wait()

	if ack.acked != 0 {
		t.Errorf("Expected no ack, got %d", ack.acked)
	}
	if ack.nacked != 1 || !ack.requeue {
		t.Errorf("Expected requeue, got nacked=%d requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestHandle_FailureRequeuedOnceThenDropped(t *testing.T) {
	c := newTestConsumer(t)
	failing := func(ctx context.Context, msg *models.TaskMessage) error {
		return errors.New("connection reset")
	}

	first := &mockAcknowledger{}
	c.handle(context.Background(), delivery(first, taskBody, false), failing)
	c.pool.Wait()
	if first.nacked != 1 || !first.requeue {
		t.Errorf("Expected first failure to requeue, got nacked=%d requeue=%v", first.nacked, first.requeue)
	}

	second := &mockAcknowledger{}
	c.handle(context.Background(), delivery(second, taskBody, true), failing)
	c.pool.Wait()
	if second.nacked != 1 || second.requeue {
		t.Errorf("Expected redelivered failure to be dropped, got nacked=%d requeue=%v", second.nacked, second.requeue)
	}
}

func TestHandle_MalformedMessageDropped(t *testing.T) {
	c := newTestConsumer(t)
	ack := &mockAcknowledger{}

	c.handle(context.Background(), delivery(ack, "not json", false), func(ctx context.Context, msg *models.TaskMessage) error {
		t.Error("handler must not run for malformed messages")
		return nil
	})
	c.pool.Wait()

	if ack.nacked != 1 || ack.requeue {
		t.Errorf("Expected drop without requeue, got nacked=%d requeue=%v", ack.nacked, ack.requeue)
	}
}
