package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"nearme-service/internal/platform/obs"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultExchange = "nearme.events"

// Subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes JSON domain events to a durable topic exchange.
type RabbitPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger

	mu sync.Mutex
	ch channel
}

// DialRabbit connects to url, retrying with growing back-off, and declares exchange.
func DialRabbit(ctx context.Context, url, exchange string, log *zap.Logger) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := connect(ctx, url, log)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %q: %w", exchange, err)
	}

	p := newRabbitPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(ch channel, exchange string, log *zap.Logger) *RabbitPublisher {
	return &RabbitPublisher{ch: ch, exchange: exchange, log: log}
}

func connect(ctx context.Context, url string, log *zap.Logger) (*amqp.Connection, error) {
	var counts int64

	for {
		c, err := amqp.Dial(url)
		if err == nil {
			log.Info("connected to rabbitmq")
			return c, nil
		}

		counts++
		if counts > 5 {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}

		backOff := time.Duration(math.Pow(float64(counts), 2)) * time.Second
		log.Info("rabbitmq not yet ready, backing off", zap.Duration("backoff", backOff), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq: dial: %w", ctx.Err())
		case <-time.After(backOff):
		}
	}
}

// Publish marshals payload as JSON and sends it under routingKey.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: marshal payload: %w", routingKey, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("rabbitmq: publish: publisher closed")
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		obs.EventsPublished.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}

	obs.EventsPublished.WithLabelValues(routingKey, "ok").Inc()
	p.log.Debug("event published", zap.String("routing_key", routingKey), zap.String("message_id", msg.MessageId))
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
