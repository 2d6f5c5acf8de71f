package config

// BrokerSettings holds configuration for the broker audit events are published to.
type BrokerSettings struct {
	Type      string `mapstructure:"type" validate:"required,oneof=none rabbitmq gcp-pubsub"`
	URL       string `mapstructure:"url" validate:"required_if=Type rabbitmq"`
	Exchange  string `mapstructure:"exchange"`
	ProjectID string `mapstructure:"project_id" validate:"required_if=Type gcp-pubsub"` // GCP Pub/Sub only
	// Topic is the routing key on RabbitMQ and the topic id on Pub/Sub.
	Topic string `mapstructure:"topic" validate:"required_unless=Type none"`
	// PoolSize is the number of RabbitMQ channels kept open for publishing.
	PoolSize int `mapstructure:"pool_size" validate:"min=0"`
}
