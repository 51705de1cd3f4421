package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "movielog.events"

// AMQPPublisher publishes JSON events to a durable topic exchange. A closed
// connection or channel is re-established on the next Publish.
type AMQPPublisher struct {
	// sem serializes use of the channel; acquiring it honours ctx.
	sem         chan struct{}
	url         string
	dialTimeout time.Duration
	conn        *amqp.Connection
	ch          *amqp.Channel
	exchange    string
	logger      *slog.Logger
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{
		sem:         make(chan struct{}, 1),
		url:         url,
		dialTimeout: 5 * time.Second,
		exchange:    exchange,
		logger:      logger.With("component", "events"),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect (re)opens whatever part of the connection is gone. Callers hold sem.
func (p *AMQPPublisher) connect() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		p.conn, p.ch = conn, nil
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	p.ch = ch
	return nil
}

// Publish sends event with its type as routing key. Messages are persistent.
// It gives up when ctx ends, even if the broker is still holding the write.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("amqp publish %s: %w", event.Type, ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		if err := p.connect(); err != nil {
			done <- err
			return
		}
		done <- p.ch.PublishWithContext(ctx,
			p.exchange,
			event.Type,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    event.OccurredAt,
				Body:         body,
			},
		)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.logger.Warn("close channel", "error", err)
		}
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
