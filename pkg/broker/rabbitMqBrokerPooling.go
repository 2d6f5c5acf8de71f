package broker

import (
	"errors"
	"fmt"

	"github.com/streadway/amqp"
)

type pooledChannel struct {
	channel     *amqp.Channel
	notifyClose chan *amqp.Error
}

func newPooledChannel(ch *amqp.Channel) *pooledChannel {
	// buffered so the library never blocks delivering the close reason
	return &pooledChannel{
		channel:     ch,
		notifyClose: ch.NotifyClose(make(chan *amqp.Error, 1)),
	}
}

// isClosed reports whether the library has announced the channel's closure.
func (p *pooledChannel) isClosed() bool {
	select {
	case <-p.notifyClose:
		return true
	default:
		return false
	}
}

func (r *rabbitMqBroker) dial() (*amqp.Connection, error) {
	conn, err := amqp.Dial(r.settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		for err := range notifyClose {
			r.logger.Warn().Err(err).Msg("rabbitmq connection closed")
		}
	}()
	return conn, nil
}

// connectAndInitialize replaces the connection and the channel pool, declaring the audit exchange.
func (r *rabbitMqBroker) connectAndInitialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// a reconnect that waited on the lock while Close ran must not reopen anything
	if r.closed {
		return errBrokerClosed
	}

	if r.connection != nil && !r.connection.IsClosed() {
		r.connection.Close()
	}

	conn, err := r.dial()
	if err != nil {
		return err
	}

	pool := make(chan *pooledChannel, r.poolSize)
	for i := 0; i < r.poolSize; i++ {
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to open channel: %w", err)
		}
		if i == 0 && r.settings.Exchange != "" {
			// ExchangeDeclare is idempotent and has no effect if the exchange is already in place
			if err := ch.ExchangeDeclare(r.settings.Exchange, "topic", true, false, false, false, nil); err != nil {
				conn.Close()
				return fmt.Errorf("failed to declare exchange: %w", err)
			}
		}
		pool <- newPooledChannel(ch)
	}

	drainPool(r.channelPool)
	r.connection = conn
	r.channelPool = pool

	r.logger.Info().Int("pool_size", r.poolSize).Str("exchange", r.settings.Exchange).Msg("rabbitmq connection and channel pool initialized")
	return nil
}

func (r *rabbitMqBroker) recoverConnection() {
	for {
		select {
		case <-r.reconnectTicker.C:
			r.mu.Lock()
			lost := r.connection == nil || r.connection.IsClosed()
			r.mu.Unlock()
			if !lost {
				continue
			}
			r.logger.Info().Msg("attempting to reconnect to rabbitmq")
			if err := r.connectAndInitialize(); err != nil {
				r.logger.Error().Err(err).Msg("failed to reconnect to rabbitmq")
			}
		case <-r.stopReconnect:
			return
		}
	}
}

func (r *rabbitMqBroker) getChannel() (*pooledChannel, error) {
	r.mu.Lock()
	pool, conn, closed := r.channelPool, r.connection, r.closed
	r.mu.Unlock()

	if closed {
		return nil, errBrokerClosed
	}

	for {
		select {
		case pooledChan := <-pool:
			if pooledChan.isClosed() {
				r.logger.Debug().Msg("discarding closed channel")
				continue
			}
			return pooledChan, nil
		default:
			if conn == nil || conn.IsClosed() {
				return nil, errors.New("rabbitmq connection is not available")
			}
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return newPooledChannel(ch), nil
		}
	}
}

func (r *rabbitMqBroker) releaseChannel(pooledChan *pooledChannel) {
	if pooledChan.isClosed() {
		return
	}

	r.mu.Lock()
	pool, closed := r.channelPool, r.closed
	r.mu.Unlock()

	if closed {
		pooledChan.channel.Close()
		return
	}
	select {
	case pool <- pooledChan:
	default:
		// Pool is full, close the channel
		pooledChan.channel.Close()
	}
}

func drainPool(pool chan *pooledChannel) {
	if pool == nil {
		return
	}
	for {
		select {
		case pooledChan := <-pool:
			pooledChan.channel.Close()
		default:
			return
		}
	}
}
