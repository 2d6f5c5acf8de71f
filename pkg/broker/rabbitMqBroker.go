package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/queue-admin/pkg/config"
)

var errBrokerClosed = errors.New("rabbitmq broker is closed")

type RabbitMQBrokerCreator func(ctx context.Context, settings *config.BrokerSettings, logger zerolog.Logger) (MessageBroker, error)

var NewRabbitMqBroker RabbitMQBrokerCreator = func(ctx context.Context, settings *config.BrokerSettings, logger zerolog.Logger) (MessageBroker, error) {
	poolSize := settings.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	broker := &rabbitMqBroker{
		settings:        settings,
		poolSize:        poolSize,
		logger:          logger.With().Str("component", "rabbitmq").Logger(),
		reconnectTicker: time.NewTicker(5 * time.Second), // Retry every 5 seconds
		stopReconnect:   make(chan struct{}),
	}

	if err := broker.connectAndInitialize(); err != nil {
		broker.reconnectTicker.Stop()
		return nil, err
	}

	go broker.recoverConnection()

	return broker, nil
}

type rabbitMqBroker struct {
	mu              sync.Mutex
	connection      *amqp.Connection
	channelPool     chan *pooledChannel
	closed          bool
	settings        *config.BrokerSettings
	poolSize        int
	logger          zerolog.Logger
	reconnectTicker *time.Ticker
	stopReconnect   chan struct{}
}

func (r *rabbitMqBroker) Publish(ctx context.Context, topic string, data []byte, headers map[string]string) error {
	tracer := otel.Tracer("queue-admin")
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKindKey.String("topic"),
			semconv.MessagingDestinationKey.String(r.settings.Exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(topic),
		),
	)
	defer span.End()

	// Inject the trace context into the message headers
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	amqpHeaders := make(amqp.Table, len(headers)+len(carrier))
	for k, v := range headers {
		amqpHeaders[k] = v
	}
	for k, v := range carrier {
		amqpHeaders[k] = v
	}

	pooledChan, err := r.getChannel()
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer r.releaseChannel(pooledChan)

	err = pooledChan.channel.Publish(
		r.settings.Exchange, topic, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         data,
			Headers:      amqpHeaders,
		},
	)
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(data)),
	)

	return nil
}

func (r *rabbitMqBroker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	// Stop the connection recovery goroutine
	close(r.stopReconnect)
	r.reconnectTicker.Stop()

	drainPool(r.channelPool)

	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
