package broker

import "context"

// MessageBroker defines the operations to publish messages to a broker.
type MessageBroker interface {
	// Publish sends data to topic with optional headers. On RabbitMQ the topic is the routing key
	// on the configured exchange; on Pub/Sub it is the topic id.
	Publish(ctx context.Context, topic string, data []byte, headers map[string]string) error
	// Close cleans up any resources (connections).
	Close() error
}

// noopBroker discards every message. It backs the "none" broker type.
type noopBroker struct{}

func (noopBroker) Publish(context.Context, string, []byte, map[string]string) error { return nil }

func (noopBroker) Close() error { return nil }
