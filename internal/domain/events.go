package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked   = "appointment.booked"
	EventAppointmentCanceled = "appointment.canceled"
)

// Event is a fact recorded by an aggregate, queued until the aggregate is
// persisted and then handed to an event sink.
type Event interface {
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type AppointmentBooked struct {
	AppointmentID uuid.UUID
	CustomerID    uuid.UUID
	TimeSlot      TimeSlot
	At            time.Time
}

func (e AppointmentBooked) EventType() string      { return EventAppointmentBooked }
func (e AppointmentBooked) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentBooked) OccurredAt() time.Time  { return e.At }

type AppointmentCanceled struct {
	AppointmentID uuid.UUID
	At            time.Time
}

func (e AppointmentCanceled) EventType() string      { return EventAppointmentCanceled }
func (e AppointmentCanceled) AggregateID() uuid.UUID { return e.AppointmentID }
func (e AppointmentCanceled) OccurredAt() time.Time  { return e.At }
