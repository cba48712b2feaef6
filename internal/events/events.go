// Package events turns domain events into wire envelopes and hands them to a
// Sink once the producing unit of work has committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scheduleit/backend/internal/domain"
)

type Sink interface {
	Publish(ctx context.Context, evts ...domain.Event) error
}

// Envelope is the JSON shape every sink writes.
type Envelope struct {
	EventID     uuid.UUID       `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

type bookedPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	StartUTC      time.Time `json:"start_utc"`
	EndUTC        time.Time `json:"end_utc"`
}

type canceledPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func Encode(e domain.Event) (Envelope, error) {
	var payload any
	switch ev := e.(type) {
	case domain.AppointmentBooked:
		payload = bookedPayload{
			AppointmentID: ev.AppointmentID,
			CustomerID:    ev.CustomerID,
			StartUTC:      ev.TimeSlot.Start(),
			EndUTC:        ev.TimeSlot.End(),
		}
	case domain.AppointmentCanceled:
		payload = canceledPayload{AppointmentID: ev.AppointmentID}
	default:
		return Envelope{}, fmt.Errorf("unsupported event %T", e)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:     id,
		EventType:   e.EventType(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt().UTC(),
		Payload:     raw,
	}, nil
}

// LogSink writes each envelope as a structured log record.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With(slog.String("component", "events.log"))}
}

func (s *LogSink) Publish(ctx context.Context, evts ...domain.Event) error {
	for _, e := range evts {
		env, err := Encode(e)
		if err != nil {
			return err
		}
		s.log.InfoContext(ctx, "domain event",
			slog.String("event_id", env.EventID.String()),
			slog.String("event_type", env.EventType),
			slog.String("aggregate_id", env.AggregateID.String()),
			slog.Time("occurred_at", env.OccurredAt),
			slog.String("payload", string(env.Payload)),
		)
	}
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, evts ...domain.Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, evts...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
