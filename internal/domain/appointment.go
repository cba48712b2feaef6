package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Appointment is the aggregate root for a booked time slot. Its fields are
// only changed through the transition methods below.
type Appointment struct {
	id         uuid.UUID
	customerID uuid.UUID
	slot       TimeSlot
	status     AppointmentStatus
	notes      string

	events []Event
}

// NewAppointment books a new appointment. When id is uuid.Nil a fresh UUIDv7
// is generated. The returned aggregate carries one pending AppointmentBooked
// event.
func NewAppointment(id, customerID uuid.UUID, start, end, now time.Time, notes string) (*Appointment, error) {
	slot, err := NewTimeSlot(start, end, now)
	if err != nil {
		return nil, err
	}

	if id == uuid.Nil {
		id, err = uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate appointment id: %w", err)
		}
	}

	a := &Appointment{
		id:         id,
		customerID: customerID,
		slot:       slot,
		status:     StatusScheduled,
		notes:      strings.TrimSpace(notes),
	}
	a.record(AppointmentBooked{
		AppointmentID: id,
		CustomerID:    customerID,
		TimeSlot:      slot,
		At:            now.UTC(),
	})
	return a, nil
}

// RestoreAppointment rebuilds an aggregate from stored state. No validation is
// applied and no events are recorded.
func RestoreAppointment(id, customerID uuid.UUID, slot TimeSlot, status AppointmentStatus, notes string) *Appointment {
	return &Appointment{
		id:         id,
		customerID: customerID,
		slot:       slot,
		status:     status,
		notes:      notes,
	}
}

func (a *Appointment) ID() uuid.UUID { return a.id }

func (a *Appointment) CustomerID() uuid.UUID { return a.customerID }

func (a *Appointment) TimeSlot() TimeSlot { return a.slot }

func (a *Appointment) Status() AppointmentStatus { return a.status }

func (a *Appointment) Notes() string { return a.notes }

func (a *Appointment) IsActive() bool {
	return a.status == StatusScheduled || a.status == StatusInProgress
}

// IsOverlapping ignores canceled appointments, which no longer hold their slot.
func (a *Appointment) IsOverlapping(start, end time.Time) bool {
	return a.status != StatusCanceled && a.slot.Overlaps(start, end)
}

// Cancel moves a scheduled appointment that has not started yet to Canceled.
func (a *Appointment) Cancel(now time.Time) error {
	if a.status == StatusCanceled {
		return ruleViolation("appointment is already canceled")
	}
	if !a.slot.Start().After(now) {
		return ruleViolation("cannot cancel an appointment that has already started or finished")
	}
	if a.status != StatusScheduled {
		return ruleViolation(fmt.Sprintf("cannot cancel an appointment that is %s", a.status))
	}

	a.status = StatusCanceled
	a.record(AppointmentCanceled{AppointmentID: a.id, At: now.UTC()})
	return nil
}

func (a *Appointment) MarkInProgress() error {
	switch a.status {
	case StatusScheduled:
		a.status = StatusInProgress
		return nil
	case StatusInProgress:
		return ruleViolation("appointment is already in progress")
	case StatusCanceled:
		return ruleViolation("cannot mark a canceled appointment as in progress")
	case StatusCompleted:
		return ruleViolation("cannot mark a completed appointment as in progress")
	default:
		return ruleViolation(fmt.Sprintf("cannot mark a %s appointment as in progress", a.status))
	}
}

func (a *Appointment) MarkCompleted() error {
	switch a.status {
	case StatusScheduled, StatusInProgress:
		a.status = StatusCompleted
		return nil
	case StatusCompleted:
		return ruleViolation("appointment is already marked as completed")
	case StatusCanceled:
		return ruleViolation("cannot mark a canceled appointment as completed")
	default:
		return ruleViolation(fmt.Sprintf("cannot mark a %s appointment as completed", a.status))
	}
}

func (a *Appointment) MarkNoShow() error {
	switch a.status {
	case StatusScheduled:
		a.status = StatusNoShow
		return nil
	case StatusNoShow:
		return ruleViolation("appointment is already marked as no-show")
	case StatusCanceled:
		return ruleViolation("cannot mark a canceled appointment as no-show")
	case StatusCompleted:
		return ruleViolation("cannot mark a completed appointment as no-show")
	default:
		return ruleViolation(fmt.Sprintf("cannot mark a %s appointment as no-show", a.status))
	}
}

// MarkScheduled only accepts re-applying the current Scheduled status.
func (a *Appointment) MarkScheduled() error {
	if a.status == StatusScheduled {
		return nil
	}
	return ruleViolation("cannot revert to Scheduled")
}

// TransitionTo dispatches a requested status to its transition method. now is
// only consulted for cancellation.
func (a *Appointment) TransitionTo(status AppointmentStatus, now time.Time) error {
	switch status {
	case StatusScheduled:
		return a.MarkScheduled()
	case StatusInProgress:
		return a.MarkInProgress()
	case StatusCompleted:
		return a.MarkCompleted()
	case StatusCanceled:
		return a.Cancel(now)
	case StatusNoShow:
		return a.MarkNoShow()
	default:
		return fmt.Errorf("unsupported appointment status %s", status)
	}
}

func (a *Appointment) EnsureCanBeDeleted() error {
	if a.status != StatusScheduled {
		return ruleViolation(fmt.Sprintf("only scheduled appointments can be deleted (status is %s)", a.status))
	}
	return nil
}

func (a *Appointment) PendingEvents() []Event {
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// PullEvents returns the pending events and clears the buffer.
func (a *Appointment) PullEvents() []Event {
	out := a.events
	a.events = nil
	return out
}

func (a *Appointment) record(e Event) {
	a.events = append(a.events, e)
}
