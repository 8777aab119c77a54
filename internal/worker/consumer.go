package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/platform/rabbitmq"
)

// ErrPermanent marks a job that will never succeed, such as a malformed body.
// Such deliveries are dropped instead of requeued.
var ErrPermanent = errors.New("permanent job failure")

// HandlerFunc processes one delivery body.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer drains one durable queue and hands each body to a HandlerFunc.
// Successful jobs are acked. Failed jobs are requeued once; a redelivered job
// that fails again, or any ErrPermanent failure, is dropped.
type Consumer struct {
	conn      *amqp.Connection
	queueName string
	name      string
	handle    HandlerFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConsumer(conn *amqp.Connection, queueName, name string, handle HandlerFunc) *Consumer {
	return &Consumer{
		conn:      conn,
		queueName: queueName,
		name:      name,
		handle:    handle,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open %s channel failed: %w", c.name, err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, c.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	if err := ch.Qos(8, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set %s qos failed: %w", c.name, err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		c.name,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue %s failed: %w", c.queueName, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ch.Close()
		c.run(workerCtx, deliveries)
	}()

	logging.Info("worker started", "worker", c.name, "queue", c.queueName)
	return nil
}

func (c *Consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	err := c.handle(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	requeue := !errors.Is(err, ErrPermanent) && !d.Redelivered
	logging.Warn("worker job failed", "worker", c.name, "requeue", requeue, "err", err)
	_ = d.Nack(false, requeue)
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
