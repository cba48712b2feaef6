package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scheduleit/backend/internal/domain"
)

// CalendarTx is the set of reads and writes available inside one unit of
// work. Lookups by id return ErrNotFound when the row is missing; writes that
// hit the overlap constraint or a unique key return ErrConflict.
type CalendarTx interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	// HasOverlapping ignores canceled appointments.
	HasOverlapping(ctx context.Context, start, end time.Time) (bool, error)
	ListAppointmentsInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error)
	CountAppointments(ctx context.Context) (int, error)
	// CountAppointmentsOnDay counts appointments starting on the UTC calendar
	// day of day.
	CountAppointmentsOnDay(ctx context.Context, day time.Time) (int, error)
	// ListUpcomingToday returns appointments starting at or after now on the
	// same UTC day, earliest first.
	ListUpcomingToday(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error)
	AddAppointment(ctx context.Context, appt *domain.Appointment) error
	UpdateAppointment(ctx context.Context, appt *domain.Appointment) error
	RemoveAppointment(ctx context.Context, id uuid.UUID) error

	GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (domain.Customer, error)
	SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error)
	GetCustomersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error)
	AddCustomer(ctx context.Context, c domain.Customer) error
}

// Repository runs CalendarTx operations either directly or grouped in a
// transaction. Inside fn only tx may be used.
type Repository interface {
	CalendarTx
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx CalendarTx) error) error
}
