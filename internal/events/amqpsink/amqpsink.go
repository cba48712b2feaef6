// Package amqpsink publishes domain events to a RabbitMQ topic exchange with
// the event type as routing key.
package amqpsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/events"
)

const DefaultExchange = "scheduleit.events"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Sink struct {
	conn     *amqp.Connection
	ch       publisher
	exchange string
	log      *slog.Logger
}

// Dial opens a connection and channel and declares a durable topic exchange.
func Dial(url, exchange string, log *slog.Logger) (*Sink, error) {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	s := newSink(ch, exchange, log)
	s.conn = conn
	return s, nil
}

func newSink(ch publisher, exchange string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		ch:       ch,
		exchange: exchange,
		log:      log.With(slog.String("component", "events.rabbitmq")),
	}
}

func (s *Sink) Publish(ctx context.Context, evts ...domain.Event) error {
	for _, e := range evts {
		env, err := events.Encode(e)
		if err != nil {
			return err
		}
		body, err := json.Marshal(env)
		if err != nil {
			return err
		}

		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		headers := amqp.Table{"event_type": env.EventType}
		for k, v := range carrier {
			headers[k] = v
		}

		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID.String(),
			Type:         env.EventType,
			Timestamp:    env.OccurredAt,
			Headers:      headers,
			Body:         body,
		}
		if err := s.ch.PublishWithContext(ctx, s.exchange, env.EventType, false, false, msg); err != nil {
			return fmt.Errorf("publish %s: %w", env.EventType, err)
		}
		s.log.DebugContext(ctx, "event published",
			slog.String("event_id", env.EventID.String()),
			slog.String("event_type", env.EventType),
		)
	}
	return nil
}

func (s *Sink) Close() error {
	var errs []error
	if s.ch != nil {
		errs = append(errs, s.ch.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

// Ready fails once the broker connection has dropped.
func (s *Sink) Ready(context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}
