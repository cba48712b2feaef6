package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/store"
)

// calendarLockKey names the advisory lock that serializes writers on the
// single global timeline.
const calendarLockKey = "scheduleit:calendar"

type Repo struct {
	calendarTx
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{calendarTx: calendarTx{db: db}, db: db}
}

var _ store.Repository = (*Repo)(nil)

type calendarTx struct {
	db bun.IDB
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, calendarTx{db: tx})
	})
}

// Ping backs the readiness probe.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func lockCalendar(ctx context.Context, tx bun.Tx) error {
	if tx.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", calendarLockKey).Exec(ctx)
	return err
}

func (c calendarTx) GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	var row appointmentRow
	err := c.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	return row.toDomain()
}

// HasOverlapping narrows candidates in SQL and leaves the final decision to
// Appointment.IsOverlapping.
func (c calendarTx) HasOverlapping(ctx context.Context, start, end time.Time) (bool, error) {
	var rows []appointmentRow
	err := c.db.NewSelect().
		Model(&rows).
		Where("status <> ?", domain.StatusCanceled.String()).
		Where("start_utc < ?", end.UTC()).
		Where("end_utc > ?", start.UTC()).
		Scan(ctx)
	if err != nil {
		return false, err
	}
	appts, err := appointmentsToDomain(rows)
	if err != nil {
		return false, err
	}
	for _, a := range appts {
		if a.IsOverlapping(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (c calendarTx) ListAppointmentsInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error) {
	var rows []appointmentRow
	err := c.db.NewSelect().
		Model(&rows).
		Where("start_utc < ?", end.UTC()).
		Where("end_utc > ?", start.UTC()).
		OrderExpr("start_utc ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows)
}

func (c calendarTx) CountAppointments(ctx context.Context) (int, error) {
	return c.db.NewSelect().Model((*appointmentRow)(nil)).Count(ctx)
}

func (c calendarTx) CountAppointmentsOnDay(ctx context.Context, day time.Time) (int, error) {
	dayStart := startOfDay(day)
	return c.db.NewSelect().
		Model((*appointmentRow)(nil)).
		Where("start_utc >= ?", dayStart).
		Where("start_utc < ?", dayStart.Add(24*time.Hour)).
		Count(ctx)
}

func (c calendarTx) ListUpcomingToday(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error) {
	now = now.UTC()
	var rows []appointmentRow
	q := c.db.NewSelect().
		Model(&rows).
		Where("start_utc >= ?", now).
		Where("start_utc < ?", startOfDay(now).Add(24*time.Hour)).
		OrderExpr("start_utc ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows)
}

func (c calendarTx) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	row := appointmentRowFrom(appt)
	_, err := c.db.NewInsert().Model(&row).Exec(ctx)
	return translateError(err)
}

func (c calendarTx) UpdateAppointment(ctx context.Context, appt *domain.Appointment) error {
	row := appointmentRowFrom(appt)
	res, err := c.db.NewUpdate().
		Model(&row).
		Column("status", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return translateError(err)
	}
	return expectAffected(res)
}

func (c calendarTx) RemoveAppointment(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.NewDelete().
		Model((*appointmentRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (c calendarTx) GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	var row customerRow
	err := c.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Customer{}, translateError(err)
	}
	return row.toDomain(), nil
}

func (c calendarTx) GetCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	var row customerRow
	err := c.db.NewSelect().
		Model(&row).
		Where("email = ?", domain.NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Customer{}, translateError(err)
	}
	return row.toDomain(), nil
}

// SearchCustomers matches term as a case-insensitive substring of the name or
// e-mail. An empty term matches everyone.
func (c calendarTx) SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error) {
	var rows []customerRow
	q := c.db.NewSelect().Model(&rows)
	if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where("(lower(name) LIKE ? ESCAPE '!' OR lower(email) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	q = q.OrderExpr("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return customersToDomain(rows), nil
}

func (c calendarTx) GetCustomersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []customerRow
	err := c.db.NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return customersToDomain(rows), nil
}

func (c calendarTx) AddCustomer(ctx context.Context, cust domain.Customer) error {
	row := customerRow{
		ID:    cust.ID,
		Name:  cust.Name,
		Email: domain.NormalizeEmail(cust.Email),
	}
	_, err := c.db.NewInsert().Model(&row).Exec(ctx)
	return translateError(err)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectAffected(res rowsAffected) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
