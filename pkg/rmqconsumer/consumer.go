package rmqconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"lms-upload-api/config"
)

// can scale depends on a parallel worker count
const preFetchCount = 1

// DeleteRequestedKey is the routing key other LMS services use to ask for an
// object to be removed, e.g. when a course or a student is deleted.
const DeleteRequestedKey = "object.delete.requested"

var errEmptyKey = errors.New("delete request without key")

type (
	// DeleteFunc removes one object by key.
	DeleteFunc func(ctx context.Context, key string) error

	Consumer struct {
		cfg        config.MQ
		log        *zap.Logger
		conn       *amqp091.Connection
		chConsume  *amqp091.Channel
		chDelivery <-chan amqp091.Delivery
		deleteFn   DeleteFunc
	}

	DeleteRequest struct {
		Key    string `json:"key"`
		Reason string `json:"reason,omitempty"`
	}
)

func New(cfg config.MQ, logger *zap.Logger, deleteFn DeleteFunc) *Consumer {
	return &Consumer{
		cfg:      cfg,
		log:      logger,
		deleteFn: deleteFn,
	}
}

func (c *Consumer) Connect(dsn string) error {
	conn, err := amqp091.Dial(dsn)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	c.conn, c.chConsume = conn, ch

	c.log.Info("rabbitmq consumer connected successfully")

	return nil
}

func (c *Consumer) Init() error {
	if err := c.chConsume.ExchangeDeclare(
		c.cfg.Exchange,
		c.cfg.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := c.chConsume.QueueDeclare(
		c.cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := c.chConsume.QueueBind(
		c.cfg.QueueName,
		DeleteRequestedKey,
		c.cfg.Exchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("queue bind %s: %w", DeleteRequestedKey, err)
	}

	if err := c.chConsume.Qos(preFetchCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	deliveries, err := c.chConsume.Consume(
		c.cfg.QueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.chDelivery = deliveries

	return nil
}

func (c *Consumer) DeliveryWorker(ctx context.Context) {
	c.log.Info("starting delivery worker")

	defer func() {
		c.log.Info("delivery worker gracefully stopped")
	}()

	for {
		select {
		case msg, ok := <-c.chDelivery:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			if err := c.delivery(ctx, msg); err != nil {
				// alert
				c.log.Error("mq delete request failed", zap.Error(err))
			}
		case <-ctx.Done():
			c.chConsume.Close()
			c.conn.Close()
			return
		}
	}
}

// delivery acks handled requests and drops (nack without requeue) malformed
// or failed ones; a poisoned message must not loop.
func (c *Consumer) delivery(ctx context.Context, msg amqp091.Delivery) error {
	var req DeleteRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		_ = msg.Nack(false, false)
		return fmt.Errorf("decode delete request: %w", err)
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		_ = msg.Nack(false, false)
		return errEmptyKey
	}

	if err := c.deleteFn(ctx, req.Key); err != nil {
		_ = msg.Nack(false, false)
		return fmt.Errorf("delete %s: %w", req.Key, err)
	}

	c.log.Info("object deleted on request",
		zap.String("key", req.Key),
		zap.String("reason", req.Reason),
	)

	return msg.Ack(false)
}
