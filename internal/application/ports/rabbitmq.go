package ports

import (
	"context"

	"github.com/rabbitmq/amqp091-go"

	"lms-upload-api/internal/infrastructure/mq"
)

type RabbitMQ interface {
	Connect(ctx context.Context, dsn string) error
	Init() error
	PublisherWorker(ctx context.Context)
	GetConn() *amqp091.Connection
	EventPublisher
}

// EventPublisher must never block the caller.
type EventPublisher interface {
	Publish(e mq.Event)
}
