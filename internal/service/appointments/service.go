package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scheduleit/backend/internal/cache"
	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/events"
	"scheduleit/backend/internal/service"
	"scheduleit/backend/internal/store"
)

const (
	DefaultUpcomingLimit  = 5
	DefaultPublishTimeout = 5 * time.Second
	maxIdempotencyKeyLen  = 256
)

// statsGenerationKey holds a token that every committed write replaces, so
// cached stats computed before the write are never read again.
const statsGenerationKey = "stats:generation"

const (
	msgOverlap         = "time slot overlaps with an existing appointment"
	msgIdempotencyUsed = "idempotency key was already used for a different booking"
)

type Service struct {
	repo           store.Repository
	sink           events.Sink
	stats          cache.Cache
	log            *slog.Logger
	now            func() time.Time
	upcomingLimit  int
	publishTimeout time.Duration
	tracer         trace.Tracer
}

type Option func(*Service)

// WithClock replaces the wall clock. Every workflow reads it once per call.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStatsCache caches TodayStats results per UTC minute.
func WithStatsCache(c cache.Cache) Option {
	return func(s *Service) { s.stats = c }
}

func WithUpcomingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.upcomingLimit = n
		}
	}
}

// WithPublishTimeout bounds how long a workflow waits on the event sink after
// its write has committed.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func NewService(repo store.Repository, sink events.Sink, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		sink:           sink,
		log:            slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		upcomingLimit:  DefaultUpcomingLimit,
		publishTimeout: DefaultPublishTimeout,
		tracer:         otel.Tracer("scheduleit/backend/internal/service/appointments"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.appointments"))
	return s
}

type BookInput struct {
	CustomerID     uuid.UUID
	Start          time.Time
	End            time.Time
	Notes          string
	IdempotencyKey string
}

// Book creates a Scheduled appointment and returns its id. With an
// idempotency key the id is derived from the customer and key, so a replay of
// the same booking returns the original id without publishing again.
func (s *Service) Book(ctx context.Context, in BookInput) (id uuid.UUID, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Book",
		trace.WithAttributes(attribute.String("customer_id", in.CustomerID.String())))
	defer func() { endSpan(span, err) }()

	if in.CustomerID == uuid.Nil {
		return uuid.Nil, service.Validation("customer_id is required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return uuid.Nil, service.Validation("start and end times are required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return uuid.Nil, service.Validation("idempotency key too long")
	}

	now := s.now()
	start, end := in.Start.UTC(), in.End.UTC()

	var requestedID uuid.UUID
	if key != "" {
		requestedID = IdempotentID(in.CustomerID, key)
	}

	var (
		appt     *domain.Appointment
		replayed bool
	)
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		if _, err := tx.GetCustomer(ctx, in.CustomerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return service.NotFound("customer", in.CustomerID.String())
			}
			return fmt.Errorf("load customer: %w", err)
		}

		if requestedID != uuid.Nil {
			existing, err := tx.GetAppointment(ctx, requestedID)
			switch {
			case err == nil:
				if !sameBooking(existing, in.CustomerID, start, end) {
					return service.Validation(msgIdempotencyUsed)
				}
				appt, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("load appointment: %w", err)
			}
		}

		overlapping, err := tx.HasOverlapping(ctx, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlapping {
			return service.Validation(msgOverlap)
		}

		a, err := domain.NewAppointment(requestedID, in.CustomerID, start, end, now, in.Notes)
		if err != nil {
			return err
		}
		if err := tx.AddAppointment(ctx, a); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return service.Validation(msgOverlap)
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		appt = a
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if replayed {
		s.log.InfoContext(ctx, "appointment booking replayed", slog.String("appointment_id", appt.ID().String()))
		return appt.ID(), nil
	}

	s.log.InfoContext(ctx, "appointment booked",
		slog.String("appointment_id", appt.ID().String()),
		slog.String("customer_id", in.CustomerID.String()),
		slog.Time("start_utc", start),
		slog.Time("end_utc", end),
		slog.Duration("duration", appt.TimeSlot().Duration()),
	)
	s.invalidateStats(ctx)
	s.publish(ctx, appt.PullEvents())
	return appt.ID(), nil
}

// IdempotentID is the appointment id a booking with the given key resolves to.
func IdempotentID(customerID uuid.UUID, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("scheduleit:book_appointment:"+customerID.String()+":"+key))
}

func sameBooking(a *domain.Appointment, customerID uuid.UUID, start, end time.Time) bool {
	slot := a.TimeSlot()
	return a.CustomerID() == customerID && slot.Start().Equal(start) && slot.End().Equal(end)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if id == uuid.Nil {
		return nil, service.Validation("appointment id is required")
	}
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, appointmentLoadError(id, err)
	}
	return a, nil
}

// UpdateStatus applies the transition to the requested status and returns the
// resulting status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (_ domain.AppointmentStatus, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.UpdateStatus", trace.WithAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("status", status.String()),
	))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return 0, service.Validation("appointment id is required")
	}
	if !status.Valid() {
		return 0, service.Validationf("unsupported appointment status %s", status)
	}

	appt, err := s.mutate(ctx, id, func(a *domain.Appointment) error {
		return a.TransitionTo(status, s.now())
	})
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "appointment status updated",
		slog.String("appointment_id", id.String()),
		slog.String("status", appt.Status().String()),
	)
	s.publish(ctx, appt.PullEvents())
	return appt.Status(), nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Cancel",
		trace.WithAttributes(attribute.String("appointment_id", id.String())))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return service.Validation("appointment id is required")
	}

	appt, err := s.mutate(ctx, id, func(a *domain.Appointment) error {
		return a.Cancel(s.now())
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "appointment canceled", slog.String("appointment_id", id.String()))
	s.publish(ctx, appt.PullEvents())
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.Delete",
		trace.WithAttributes(attribute.String("appointment_id", id.String())))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return service.Validation("appointment id is required")
	}

	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return appointmentLoadError(id, err)
		}
		if err := a.EnsureCanBeDeleted(); err != nil {
			return err
		}
		if err := tx.RemoveAppointment(ctx, id); err != nil {
			return appointmentLoadError(id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateStats(ctx)

	s.log.InfoContext(ctx, "appointment deleted", slog.String("appointment_id", id.String()))
	return nil
}

// mutate loads the appointment, applies fn and persists the result in one
// transaction. Pending events stay on the returned aggregate.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(a *domain.Appointment) error) (*domain.Appointment, error) {
	var appt *domain.Appointment
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return appointmentLoadError(id, err)
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := tx.UpdateAppointment(ctx, a); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return service.Validation(msgOverlap)
			}
			return appointmentLoadError(id, err)
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return appt, nil
}

// ListInRange returns every appointment intersecting [start, end), any status,
// earliest first.
func (s *Service) ListInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error) {
	start, end = start.UTC(), end.UTC()
	if start.IsZero() || end.IsZero() {
		return nil, service.Validation("start and end times are required")
	}
	if !start.Before(end) {
		return nil, service.Validation("start time must precede end time")
	}
	out, err := s.repo.ListAppointmentsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

type TodayStats struct {
	Total    int                   `json:"total"`
	Today    int                   `json:"today"`
	Upcoming []UpcomingAppointment `json:"upcoming"`
}

type UpcomingAppointment struct {
	ID           uuid.UUID `json:"id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	StartUTC     time.Time `json:"start_utc"`
	EndUTC       time.Time `json:"end_utc"`
	Notes        string    `json:"notes"`
}

// TodayStats summarizes the calendar as of now. A zero now means the service
// clock.
func (s *Service) TodayStats(ctx context.Context, now time.Time) (_ TodayStats, err error) {
	ctx, span := s.tracer.Start(ctx, "appointments.TodayStats")
	defer func() { endSpan(span, err) }()

	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()

	gen, cacheable := s.statsGeneration(ctx)
	key := "stats:today:" + gen + ":" + now.Truncate(time.Minute).Format(time.RFC3339)
	if cacheable {
		if stats, ok := s.cachedStats(ctx, key); ok {
			return stats, nil
		}
	}

	total, err := s.repo.CountAppointments(ctx)
	if err != nil {
		return TodayStats{}, fmt.Errorf("count appointments: %w", err)
	}
	today, err := s.repo.CountAppointmentsOnDay(ctx, now)
	if err != nil {
		return TodayStats{}, fmt.Errorf("count today: %w", err)
	}
	upcoming, err := s.repo.ListUpcomingToday(ctx, now, s.upcomingLimit)
	if err != nil {
		return TodayStats{}, fmt.Errorf("list upcoming: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(upcoming))
	seen := make(map[uuid.UUID]struct{}, len(upcoming))
	for _, a := range upcoming {
		if _, ok := seen[a.CustomerID()]; ok {
			continue
		}
		seen[a.CustomerID()] = struct{}{}
		ids = append(ids, a.CustomerID())
	}
	customers, err := s.repo.GetCustomersByIDs(ctx, ids)
	if err != nil {
		return TodayStats{}, fmt.Errorf("load customers: %w", err)
	}
	names := make(map[uuid.UUID]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}

	stats := TodayStats{Total: total, Today: today, Upcoming: make([]UpcomingAppointment, 0, len(upcoming))}
	for _, a := range upcoming {
		stats.Upcoming = append(stats.Upcoming, UpcomingAppointment{
			ID:           a.ID(),
			CustomerID:   a.CustomerID(),
			CustomerName: names[a.CustomerID()],
			StartUTC:     a.TimeSlot().Start(),
			EndUTC:       a.TimeSlot().End(),
			Notes:        a.Notes(),
		})
	}

	if cacheable {
		s.storeStats(ctx, key, stats)
	}
	return stats, nil
}

// statsGeneration returns the current cache generation. A missing generation
// starts a fresh one; false means the cache is unusable for this call.
func (s *Service) statsGeneration(ctx context.Context) (string, bool) {
	if s.stats == nil {
		return "", false
	}
	raw, err := s.stats.Get(ctx, statsGenerationKey)
	switch {
	case err == nil && len(raw) > 0:
		return string(raw), true
	case err != nil && !errors.Is(err, cache.ErrMiss):
		s.log.WarnContext(ctx, "stats cache read failed", slog.Any("err", err))
		return "", false
	}
	gen := uuid.NewString()
	if err := s.stats.Set(ctx, statsGenerationKey, []byte(gen)); err != nil {
		s.log.WarnContext(ctx, "stats cache write failed", slog.Any("err", err))
		return "", false
	}
	return gen, true
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Set(ctx, statsGenerationKey, []byte(uuid.NewString())); err != nil {
		s.log.WarnContext(ctx, "stats cache invalidation failed", slog.Any("err", err))
	}
}

func (s *Service) cachedStats(ctx context.Context, key string) (TodayStats, bool) {
	raw, err := s.stats.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.WarnContext(ctx, "stats cache read failed", slog.Any("err", err))
		}
		return TodayStats{}, false
	}
	var stats TodayStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.log.WarnContext(ctx, "stats cache entry unreadable", slog.Any("err", err))
		return TodayStats{}, false
	}
	return stats, true
}

func (s *Service) storeStats(ctx context.Context, key string, stats TodayStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.stats.Set(ctx, key, raw); err != nil {
		s.log.WarnContext(ctx, "stats cache write failed", slog.Any("err", err))
	}
}

// publish hands committed events to the sink. The write has already
// succeeded, so the caller's cancellation does not apply, the wait is bounded
// and a sink failure is only logged.
func (s *Service) publish(ctx context.Context, evts []domain.Event) {
	if s.sink == nil || len(evts) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.sink.Publish(ctx, evts...); err != nil {
		s.log.WarnContext(ctx, "event publish failed", slog.Any("err", err), slog.Int("count", len(evts)))
	}
}

// IsOverlap reports whether err rejected a booking because the slot is taken.
func IsOverlap(err error) bool {
	var v *service.ValidationError
	return errors.As(err, &v) && v.Error() == msgOverlap
}

func appointmentLoadError(id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return service.NotFound("appointment", id.String())
	}
	return fmt.Errorf("appointment %s: %w", id, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
