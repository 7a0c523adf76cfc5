package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/tracing"
)

const (
	// Exchange names
	ExchangeThreatgate = "threatgate-events"

	// routing keys
	RoutingKeyRunCompleted = "collection-run-completed"
	RoutingKeyListChanged  = "list-changed"

	// Default configurations
	DefaultPublishTimeout   = 5 * time.Second
	DefaultReconnectBackoff = time.Second
)

// RabbitMQPublisher emits the core's integration events. It is safe for concurrent
// use from all source collection goroutines.
type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
}

func NewRabbitMQPublisher(rabbitmqURL string, log logger.Logger) (*RabbitMQPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: log,
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}

	return publisher, nil
}

func (p *RabbitMQPublisher) connect() error {
	p.connectionMutex.Lock()
	defer p.connectionMutex.Unlock()

	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to open channel")
	}

	if err := channel.ExchangeDeclare(
		ExchangeThreatgate,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return errors.Wrap(err, "failed to declare exchange")
	}

	p.connection = conn
	p.publishChannel = channel
	return nil
}

func (p *RabbitMQPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEvent")
	defer span.Finish()
	span.SetTag("routingKey", routingKey)

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal event payload")
	}

	p.publishMutex.Lock()
	defer p.publishMutex.Unlock()

	if p.connection == nil || p.connection.IsClosed() {
		if err := p.reconnect(); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	err = p.publishChannel.PublishWithContext(
		publishCtx,
		ExchangeThreatgate,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to publish event")
	}

	return nil
}

func (p *RabbitMQPublisher) reconnect() error {
	time.Sleep(DefaultReconnectBackoff)
	p.logger.Warn("RabbitMQ connection lost, reconnecting")
	return p.connect()
}

func (p *RabbitMQPublisher) Close() error {
	p.connectionMutex.Lock()
	defer p.connectionMutex.Unlock()

	if p.publishChannel != nil {
		p.publishChannel.Close()
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}

// NoopPublisher stands in when no broker is configured. Events are dropped after a
// debug log line; core semantics never depend on the bus.
type NoopPublisher struct {
	logger logger.Logger
}

func NewNoopPublisher(log logger.Logger) *NoopPublisher {
	return &NoopPublisher{logger: log}
}

func (p *NoopPublisher) PublishEvent(ctx context.Context, routingKey string, payload interface{}) error {
	p.logger.Debugf("Event bus disabled, dropping event %s", routingKey)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
