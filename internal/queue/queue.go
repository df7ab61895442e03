package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/ashveil/jobscout/internal/task"
)

// Job is one enqueued unit of work: the allocated identifier plus the
// immutable submission payload.
type Job struct {
	TaskID string      `json:"task_id"`
	Params task.Params `json:"params"`
}

// Broker is the durable AMQP task queue. Producers enqueue jobs from the
// API process; each job is delivered to exactly one consuming worker.
type Broker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
}

// NewBroker connects to the AMQP broker and declares the durable queue.
func NewBroker(url, queue string, logger *zap.Logger) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	logger.Info("Broker connected", zap.String("queue", queue))
	return &Broker{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Enqueue publishes a job as a persistent delivery. A broker failure is
// returned to the caller so the submission can be rejected explicitly.
func (b *Broker) Enqueue(_ context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = b.ch.Publish("", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.TaskID, err)
	}
	b.logger.Debug("enqueued job", zap.String("task", job.TaskID))
	return nil
}

// Consume delivers queued jobs to handler one at a time until the context
// is canceled. Deliveries are acked after the handler returns regardless of
// outcome: a failed run records its failure through the task store, and the
// queue does not retry it.
func (b *Broker) Consume(ctx context.Context, handler func(context.Context, *Job) error) error {
	if err := b.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	tag := uuid.New().String()
	deliveries, err := b.ch.Consume(b.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.queue, err)
	}
	// Deregister the consumer on exit so unrouted deliveries requeue.
	defer b.ch.Cancel(tag, false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				b.logger.Warn("discarding undecodable job", zap.Error(err))
				d.Ack(false)
				continue
			}
			if err := handler(ctx, &job); err != nil {
				b.logger.Error("job failed",
					zap.String("task", job.TaskID),
					zap.Error(err))
			}
			d.Ack(false)
		}
	}
}

// Close shuts down the channel and connection.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}
