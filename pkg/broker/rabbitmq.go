package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ridehail/pkg/logger"
)

var ErrClosed = errors.New("broker connection closed")

type Config struct {
	URL            string
	Exchange       string
	ConnectRetries int
	PublishTimeout time.Duration
}

// RabbitMQ publishes JSON messages to a durable topic exchange.
type RabbitMQ struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	config *Config
	mu     sync.Mutex
	log    *logger.Logger
}

func NewRabbitMQ(config *Config, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{config: config, log: log.WithComponent("rabbitmq")}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	retries := r.config.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var err error
	for i := 1; i <= retries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(r.config.URL)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				_ = conn.Close()
				return fmt.Errorf("failed to open channel: %w", chErr)
			}
			if declErr := ch.ExchangeDeclare(r.config.Exchange, "topic", true, false, false, false, nil); declErr != nil {
				_ = ch.Close()
				_ = conn.Close()
				return fmt.Errorf("failed to declare exchange: %w", declErr)
			}
			r.conn, r.ch = conn, ch
			r.log.WithField("exchange", r.config.Exchange).Info("Connected to RabbitMQ")
			return nil
		}

		r.log.WithError(err).WithField("attempt", i).Warn("RabbitMQ connection attempt failed")
		if i < retries {
			time.Sleep(time.Second * time.Duration(math.Pow(2, float64(i))))
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
}

// Publish sends payload as JSON with the given routing key. Channels are not
// safe for concurrent publishing, so calls are serialised.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if r.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PublishTimeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		return ErrClosed
	}

	err = r.ch.PublishWithContext(ctx, r.config.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

func (r *RabbitMQ) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.conn, r.ch = nil, nil
	r.log.Info("RabbitMQ connection closed")
}
