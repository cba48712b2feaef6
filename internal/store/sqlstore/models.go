package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"scheduleit/backend/internal/domain"
)

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	CustomerID uuid.UUID `bun:"customer_id,notnull,type:uuid"`
	StartUTC   time.Time `bun:"start_utc,notnull"`
	EndUTC     time.Time `bun:"end_utc,notnull"`
	Status     string    `bun:"status,notnull"`
	Notes      string    `bun:"notes,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (a *appointmentRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func appointmentRowFrom(a *domain.Appointment) appointmentRow {
	slot := a.TimeSlot()
	return appointmentRow{
		ID:         a.ID(),
		CustomerID: a.CustomerID(),
		StartUTC:   slot.Start(),
		EndUTC:     slot.End(),
		Status:     a.Status().String(),
		Notes:      a.Notes(),
	}
}

func (a appointmentRow) toDomain() (*domain.Appointment, error) {
	status, err := domain.ParseStatus(a.Status)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	slot := domain.RestoreTimeSlot(a.StartUTC, a.EndUTC)
	return domain.RestoreAppointment(a.ID, a.CustomerID, slot, status, a.Notes), nil
}

func appointmentsToDomain(rows []appointmentRow) ([]*domain.Appointment, error) {
	out := make([]*domain.Appointment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type customerRow struct {
	bun.BaseModel `bun:"table:customers"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (c *customerRow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

func (c customerRow) toDomain() domain.Customer {
	return domain.Customer{ID: c.ID, Name: c.Name, Email: c.Email}
}

func customersToDomain(rows []customerRow) []domain.Customer {
	out := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

var (
	_ bun.BeforeAppendModelHook = (*appointmentRow)(nil)
	_ bun.BeforeAppendModelHook = (*customerRow)(nil)
)
