package mq

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"lms-upload-api/config"
	"lms-upload-api/internal/infrastructure/metrics"
)

// "Rely on metrics, not guesses."
const bufferSize = 128

// routing keys
const (
	ActionUploaded        = "object.uploaded"
	ActionDeleted         = "object.deleted"
	ActionDeleteRequested = "object.delete.requested"
)

type (
	InputCh  = chan Event
	RabbitMQ struct {
		cfg      config.MQ
		log      *zap.Logger
		conn     *amqp091.Connection
		pubCh    *amqp091.Channel
		in       InputCh
		mCounter *prometheus.CounterVec
	}
	Event struct {
		Id          uuid.UUID `json:"event_id"`
		TS          time.Time `json:"time_stamp"`
		Action      string    `json:"event_action"`
		Key         string    `json:"key"`
		Folder      string    `json:"folder,omitempty"`
		URL         string    `json:"url,omitempty"`
		Size        int64     `json:"size,omitempty"`
		ContentType string    `json:"content_type,omitempty"`
	}
)

func NewEvent(action, key string) Event {
	return Event{
		Id:     uuid.New(),
		TS:     time.Now().UTC(),
		Action: action,
		Key:    key,
	}
}

func New(cfg config.MQ, logger *zap.Logger, mCounter *prometheus.CounterVec) *RabbitMQ {
	return &RabbitMQ{
		cfg:      cfg,
		log:      logger,
		in:       make(chan Event, bufferSize),
		mCounter: mCounter,
	}
}

func (r *RabbitMQ) Connect(ctx context.Context, dsn string) error {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	amqpCfg := amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp091.Table{
			"connection_name": "lmsupload",
		},
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}

	var err error
	r.conn, err = amqp091.DialConfig(dsn, amqpCfg)
	if err != nil {
		return err
	}
	r.pubCh, err = r.conn.Channel()
	if err != nil {
		_ = r.conn.Close()
		return err
	}

	r.log.Info("rabbitmq connected successfully")

	return nil
}

// Init declares the exchange the gateway publishes to. Queues for
// uploaded/deleted events belong to their consumers.
func (r *RabbitMQ) Init() error {
	if err := r.pubCh.ExchangeDeclare(
		r.cfg.Exchange,
		r.cfg.ExchangeType,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = r.pubCh.Close()
		return err
	}

	return nil
}

// Publish hands the event to the worker without waiting. A full buffer drops
// the event: uploads must not stall on the broker.
func (r *RabbitMQ) Publish(e Event) {
	select {
	case r.in <- e:
	default:
		r.log.Warn("mq buffer full, event dropped",
			zap.String("action", e.Action),
			zap.String("key", e.Key),
		)
		if r.mCounter != nil {
			r.mCounter.WithLabelValues(metrics.EventsDropped).Inc()
		}
	}
}

func (r *RabbitMQ) PublisherWorker(ctx context.Context) {
	r.log.Info("starting publisher worker")

	defer func() {
		r.log.Info("publisher worker gracefully stopped")
	}()

	for {
		select {
		case e := <-r.in:
			if err := r.publish(ctx, e); err != nil {
				// alert
				r.log.Error("mq publish error", zap.Error(err), zap.String("key", e.Key))
				continue
			}
			if r.mCounter != nil {
				r.mCounter.WithLabelValues(metrics.EventsPublished).Inc()
			}
		case <-ctx.Done():
			r.pubCh.Close()
			return
		}
	}
}

func (r *RabbitMQ) publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.Id.String(),
		Timestamp:    e.TS,
		Type:         e.Action,
		Body:         b,
	}

	return r.pubCh.PublishWithContext(
		ctx,
		r.cfg.Exchange,
		e.Action,
		false,
		false,
		pub,
	)
}

func (r *RabbitMQ) GetConn() *amqp091.Connection { return r.conn }

// Nop is the publisher used when no broker is configured.
type Nop struct{}

func (Nop) Publish(Event) {}
