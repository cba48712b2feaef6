// Package kafkasink publishes domain events to Kafka, one topic per event
// type, keyed by aggregate id so a single appointment's events stay ordered.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	w           messageWriter
	topicPrefix string
	log         *slog.Logger
}

type Config struct {
	Brokers     []string
	TopicPrefix string
}

func New(cfg Config, log *slog.Logger) *Sink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           5 * time.Second,
	}
	return newSink(w, cfg.TopicPrefix, log)
}

func newSink(w messageWriter, topicPrefix string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		w:           w,
		topicPrefix: strings.TrimSpace(topicPrefix),
		log:         log.With(slog.String("component", "events.kafka")),
	}
}

func (s *Sink) Publish(ctx context.Context, evts ...domain.Event) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, e := range evts {
		env, err := events.Encode(e)
		if err != nil {
			return err
		}
		value, err := json.Marshal(env)
		if err != nil {
			return err
		}
		msg := kafka.Message{
			Topic: s.topicPrefix + env.EventType,
			Key:   []byte(env.AggregateID.String()),
			Value: value,
			Time:  env.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(env.EventID.String())},
				{Key: "event_type", Value: []byte(env.EventType)},
			},
		}
		msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
		msgs = append(msgs, msg)
	}

	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	s.log.DebugContext(ctx, "events published", slog.Int("count", len(msgs)))
	return nil
}

func (s *Sink) Close() error {
	return s.w.Close()
}

// InjectTraceHeaders appends W3C trace context headers using the global
// propagator.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key string, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

// ReadyCheck dials the first broker.
func ReadyCheck(brokers []string) func(context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
}
