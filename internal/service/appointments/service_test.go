package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"scheduleit/backend/internal/cache"
	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service"
	"scheduleit/backend/internal/store"
	"scheduleit/backend/internal/store/sqlstore"
)

type fakeRepo struct {
	inTransactionFn           func(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error
	getAppointmentFn          func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	hasOverlappingFn          func(ctx context.Context, start, end time.Time) (bool, error)
	listAppointmentsInRangeFn func(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error)
	countAppointmentsFn       func(ctx context.Context) (int, error)
	countAppointmentsOnDayFn  func(ctx context.Context, day time.Time) (int, error)
	listUpcomingTodayFn       func(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error)
	addAppointmentFn          func(ctx context.Context, appt *domain.Appointment) error
	updateAppointmentFn       func(ctx context.Context, appt *domain.Appointment) error
	removeAppointmentFn       func(ctx context.Context, id uuid.UUID) error
	getCustomerFn             func(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	getCustomersByIDsFn       func(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error)
}

func (f *fakeRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	if f.inTransactionFn != nil {
		return f.inTransactionFn(ctx, fn)
	}
	return fn(ctx, f)
}

func (f *fakeRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if f.getAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getAppointmentFn(ctx, id)
}

func (f *fakeRepo) HasOverlapping(ctx context.Context, start, end time.Time) (bool, error) {
	if f.hasOverlappingFn == nil {
		panic("HasOverlapping not configured")
	}
	return f.hasOverlappingFn(ctx, start, end)
}

func (f *fakeRepo) ListAppointmentsInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error) {
	if f.listAppointmentsInRangeFn == nil {
		panic("ListAppointmentsInRange not configured")
	}
	return f.listAppointmentsInRangeFn(ctx, start, end)
}

func (f *fakeRepo) CountAppointments(ctx context.Context) (int, error) {
	if f.countAppointmentsFn == nil {
		panic("CountAppointments not configured")
	}
	return f.countAppointmentsFn(ctx)
}

func (f *fakeRepo) CountAppointmentsOnDay(ctx context.Context, day time.Time) (int, error) {
	if f.countAppointmentsOnDayFn == nil {
		panic("CountAppointmentsOnDay not configured")
	}
	return f.countAppointmentsOnDayFn(ctx, day)
}

func (f *fakeRepo) ListUpcomingToday(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error) {
	if f.listUpcomingTodayFn == nil {
		panic("ListUpcomingToday not configured")
	}
	return f.listUpcomingTodayFn(ctx, now, limit)
}

func (f *fakeRepo) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	if f.addAppointmentFn == nil {
		panic("AddAppointment not configured")
	}
	return f.addAppointmentFn(ctx, appt)
}

func (f *fakeRepo) UpdateAppointment(ctx context.Context, appt *domain.Appointment) error {
	if f.updateAppointmentFn == nil {
		panic("UpdateAppointment not configured")
	}
	return f.updateAppointmentFn(ctx, appt)
}

func (f *fakeRepo) RemoveAppointment(ctx context.Context, id uuid.UUID) error {
	if f.removeAppointmentFn == nil {
		panic("RemoveAppointment not configured")
	}
	return f.removeAppointmentFn(ctx, id)
}

func (f *fakeRepo) GetCustomer(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	if f.getCustomerFn == nil {
		panic("GetCustomer not configured")
	}
	return f.getCustomerFn(ctx, id)
}

func (f *fakeRepo) GetCustomerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	panic("GetCustomerByEmail not used")
}

func (f *fakeRepo) SearchCustomers(ctx context.Context, term string, limit int) ([]domain.Customer, error) {
	panic("SearchCustomers not used")
}

func (f *fakeRepo) GetCustomersByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error) {
	if f.getCustomersByIDsFn == nil {
		panic("GetCustomersByIDs not configured")
	}
	return f.getCustomersByIDsFn(ctx, ids)
}

func (f *fakeRepo) AddCustomer(ctx context.Context, c domain.Customer) error {
	panic("AddCustomer not used")
}

type recordingSink struct {
	events []domain.Event
	err    error
}

func (r *recordingSink) Publish(ctx context.Context, evts ...domain.Event) error {
	r.events = append(r.events, evts...)
	return r.err
}

var (
	testNow      = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	testCustomer = domain.Customer{
		ID:    uuid.MustParse("00000000-0000-0000-0000-0000000000c1"),
		Name:  "Ada Stone",
		Email: "ada@example.com",
	}
)

func newTestService(repo *fakeRepo, sink *recordingSink, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(repo, sink, opts...)
}

func customerFound(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	if id != testCustomer.ID {
		return domain.Customer{}, store.ErrNotFound
	}
	return testCustomer, nil
}

func validBooking() BookInput {
	start := testNow.Add(24 * time.Hour)
	return BookInput{CustomerID: testCustomer.ID, Start: start, End: start.Add(time.Hour), Notes: "checkup"}
}

func scheduledAppointment(t *testing.T, start time.Time) *domain.Appointment {
	t.Helper()
	a, err := domain.NewAppointment(uuid.Nil, testCustomer.ID, start, start.Add(time.Hour), testNow.Add(-time.Hour), "")
	if err != nil {
		t.Fatalf("NewAppointment error: %v", err)
	}
	a.PullEvents()
	return a
}

func TestBook_ValidationBeforeIO(t *testing.T) {
	svc := newTestService(&fakeRepo{
		inTransactionFn: func(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
			panic("no I/O expected")
		},
	}, &recordingSink{})

	tests := []struct {
		name string
		in   BookInput
		want string
	}{
		{name: "missing customer", in: BookInput{Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)}, want: "customer_id is required"},
		{name: "missing times", in: BookInput{CustomerID: testCustomer.ID}, want: "start and end times are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Book(context.Background(), tt.in)
			var vErr *service.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *service.ValidationError", err)
			}
			if vErr.Error() != tt.want {
				t.Fatalf("error = %q, want %q", vErr.Error(), tt.want)
			}
		})
	}
}

func TestBook_UnknownCustomerIsNotFound(t *testing.T) {
	svc := newTestService(&fakeRepo{getCustomerFn: customerFound}, &recordingSink{})

	in := validBooking()
	in.CustomerID = uuid.New()
	_, err := svc.Book(context.Background(), in)
	if !service.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFound", err)
	}
}

func TestBook_OverlapIsValidation(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return true, nil
		},
	}, sink)

	_, err := svc.Book(context.Background(), validBooking())
	if !service.IsValidation(err) || err.Error() != msgOverlap {
		t.Fatalf("error = %v, want overlap validation", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("events = %d, want 0", len(sink.events))
	}
}

func TestBook_OverlapCheckedBeforeSlotRules(t *testing.T) {
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return true, nil
		},
	}, &recordingSink{})

	in := validBooking()
	in.Start = testNow.Add(-time.Hour)
	if _, err := svc.Book(context.Background(), in); !service.IsValidation(err) {
		t.Fatalf("error = %v, want overlap validation", err)
	}
}

func TestBook_SlotRuleViolation(t *testing.T) {
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return false, nil
		},
	}, &recordingSink{})

	in := validBooking()
	in.End = in.Start.Add(10 * time.Minute)
	_, err := svc.Book(context.Background(), in)
	if !domain.IsRuleViolation(err) {
		t.Fatalf("error = %v, want rule violation", err)
	}
	if err.Error() != "appointment must last at least 30 minutes" {
		t.Fatalf("error = %q", err.Error())
	}
}

func TestBook_PersistsOnceAndPublishesBooked(t *testing.T) {
	sink := &recordingSink{}
	var added []*domain.Appointment
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return false, nil
		},
		addAppointmentFn: func(ctx context.Context, appt *domain.Appointment) error {
			added = append(added, appt)
			return nil
		},
	}, sink)

	in := validBooking()
	loc := time.FixedZone("UTC-5", -5*60*60)
	in.Start, in.End = in.Start.In(loc), in.End.In(loc)

	id, err := svc.Book(context.Background(), in)
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("added = %d, want 1", len(added))
	}
	if added[0].ID() != id || added[0].Status() != domain.StatusScheduled {
		t.Fatalf("added appointment = %s/%s, want %s/Scheduled", added[0].ID(), added[0].Status(), id)
	}
	if added[0].TimeSlot().Start().Location() != time.UTC {
		t.Fatalf("slot start not normalized to UTC")
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	booked, ok := sink.events[0].(domain.AppointmentBooked)
	if !ok || booked.AppointmentID != id || !booked.At.Equal(testNow) {
		t.Fatalf("event = %#v", sink.events[0])
	}
}

func TestBook_InsertConflictIsOverlapValidation(t *testing.T) {
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return false, nil
		},
		addAppointmentFn: func(ctx context.Context, appt *domain.Appointment) error {
			return store.ErrConflict
		},
	}, &recordingSink{})

	_, err := svc.Book(context.Background(), validBooking())
	if !service.IsValidation(err) || err.Error() != msgOverlap {
		t.Fatalf("error = %v, want overlap validation", err)
	}
}

func TestBook_SinkFailureDoesNotFailBooking(t *testing.T) {
	svc := newTestService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return false, nil
		},
		addAppointmentFn: func(ctx context.Context, appt *domain.Appointment) error {
			return nil
		},
	}, &recordingSink{err: errors.New("broker down")})

	if _, err := svc.Book(context.Background(), validBooking()); err != nil {
		t.Fatalf("Book error: %v", err)
	}
}

type contextSink struct {
	err         error
	hasDeadline bool
	deadline    time.Time
}

func (c *contextSink) Publish(ctx context.Context, evts ...domain.Event) error {
	c.err = ctx.Err()
	c.deadline, c.hasDeadline = ctx.Deadline()
	return nil
}

func TestBook_PublishIgnoresCallerCancellationButIsBounded(t *testing.T) {
	sink := &contextSink{}
	svc := NewService(&fakeRepo{
		getCustomerFn: customerFound,
		hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
			return false, nil
		},
		addAppointmentFn: func(ctx context.Context, appt *domain.Appointment) error {
			return nil
		},
	}, sink, WithClock(func() time.Time { return testNow }), WithPublishTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := time.Now()
	if _, err := svc.Book(ctx, validBooking()); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if sink.err != nil {
		t.Fatalf("publish context error = %v, want nil", sink.err)
	}
	if !sink.hasDeadline {
		t.Fatalf("publish context has no deadline")
	}
	if limit := before.Add(2*time.Second + time.Second); sink.deadline.After(limit) {
		t.Fatalf("publish deadline = %v, want before %v", sink.deadline, limit)
	}
}

func TestBook_IdempotencyKey(t *testing.T) {
	in := validBooking()
	in.IdempotencyKey = "  k1  "
	wantID := IdempotentID(testCustomer.ID, "k1")

	t.Run("first request uses derived id", func(t *testing.T) {
		sink := &recordingSink{}
		svc := newTestService(&fakeRepo{
			getCustomerFn: customerFound,
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return nil, store.ErrNotFound
			},
			hasOverlappingFn: func(ctx context.Context, start, end time.Time) (bool, error) {
				return false, nil
			},
			addAppointmentFn: func(ctx context.Context, appt *domain.Appointment) error {
				return nil
			},
		}, sink)

		id, err := svc.Book(context.Background(), in)
		if err != nil {
			t.Fatalf("Book error: %v", err)
		}
		if id != wantID {
			t.Fatalf("id = %s, want %s", id, wantID)
		}
		if len(sink.events) != 1 {
			t.Fatalf("events = %d, want 1", len(sink.events))
		}
	})

	t.Run("replay returns same id without events", func(t *testing.T) {
		sink := &recordingSink{}
		existing := domain.RestoreAppointment(wantID, testCustomer.ID, domain.RestoreTimeSlot(in.Start, in.End), domain.StatusScheduled, "checkup")
		svc := newTestService(&fakeRepo{
			getCustomerFn: customerFound,
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return existing, nil
			},
		}, sink)

		id, err := svc.Book(context.Background(), in)
		if err != nil {
			t.Fatalf("Book error: %v", err)
		}
		if id != wantID {
			t.Fatalf("id = %s, want %s", id, wantID)
		}
		if len(sink.events) != 0 {
			t.Fatalf("events = %d, want 0", len(sink.events))
		}
	})

	t.Run("reuse for a different slot is rejected", func(t *testing.T) {
		other := domain.RestoreTimeSlot(in.Start.Add(2*time.Hour), in.End.Add(2*time.Hour))
		existing := domain.RestoreAppointment(wantID, testCustomer.ID, other, domain.StatusScheduled, "")
		svc := newTestService(&fakeRepo{
			getCustomerFn: customerFound,
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return existing, nil
			},
		}, &recordingSink{})

		_, err := svc.Book(context.Background(), in)
		if !service.IsValidation(err) || err.Error() != msgIdempotencyUsed {
			t.Fatalf("error = %v, want idempotency validation", err)
		}
	})

	t.Run("different keys give different ids", func(t *testing.T) {
		if IdempotentID(testCustomer.ID, "k1") == IdempotentID(testCustomer.ID, "k2") {
			t.Fatalf("expected different ids")
		}
		if IdempotentID(testCustomer.ID, "k1") == IdempotentID(uuid.New(), "k1") {
			t.Fatalf("expected ids scoped to the customer")
		}
	})
}

func TestUpdateStatus_RejectsUnsupportedStatusBeforeIO(t *testing.T) {
	svc := newTestService(&fakeRepo{
		inTransactionFn: func(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error) error {
			panic("no I/O expected")
		},
	}, &recordingSink{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), domain.AppointmentStatus(0))
	if !service.IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := newTestService(&fakeRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
			return nil, store.ErrNotFound
		},
	}, &recordingSink{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), domain.StatusCompleted)
	if !service.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFound", err)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	appt := scheduledAppointment(t, testNow.Add(time.Hour))
	var updates []domain.AppointmentStatus
	sink := &recordingSink{}
	svc := newTestService(&fakeRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
			return domain.RestoreAppointment(appt.ID(), appt.CustomerID(), appt.TimeSlot(), appt.Status(), appt.Notes()), nil
		},
		updateAppointmentFn: func(ctx context.Context, a *domain.Appointment) error {
			updates = append(updates, a.Status())
			appt = a
			return nil
		},
	}, sink)
	ctx := context.Background()

	got, err := svc.UpdateStatus(ctx, appt.ID(), domain.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if got != domain.StatusCompleted {
		t.Fatalf("status = %s, want %s", got, domain.StatusCompleted)
	}

	_, err = svc.UpdateStatus(ctx, appt.ID(), domain.StatusInProgress)
	if !domain.IsRuleViolation(err) {
		t.Fatalf("error = %v, want rule violation", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %v, want exactly one", updates)
	}
	if len(sink.events) != 0 {
		t.Fatalf("events = %d, want 0", len(sink.events))
	}
}

func TestUpdateStatus_CanceledPublishesEvent(t *testing.T) {
	appt := scheduledAppointment(t, testNow.Add(time.Hour))
	sink := &recordingSink{}
	svc := newTestService(&fakeRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
			return appt, nil
		},
		updateAppointmentFn: func(ctx context.Context, a *domain.Appointment) error {
			return nil
		},
	}, sink)

	got, err := svc.UpdateStatus(context.Background(), appt.ID(), domain.StatusCanceled)
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if got != domain.StatusCanceled {
		t.Fatalf("status = %s, want %s", got, domain.StatusCanceled)
	}
	if len(sink.events) != 1 || sink.events[0].EventType() != domain.EventAppointmentCanceled {
		t.Fatalf("events = %v", sink.events)
	}
}

func TestCancel(t *testing.T) {
	t.Run("already started", func(t *testing.T) {
		appt := scheduledAppointment(t, testNow.Add(time.Hour))
		clock := testNow.Add(2 * time.Hour)
		svc := NewService(&fakeRepo{
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return appt, nil
			},
		}, &recordingSink{}, WithClock(func() time.Time { return clock }))

		if err := svc.Cancel(context.Background(), appt.ID()); !domain.IsRuleViolation(err) {
			t.Fatalf("error = %v, want rule violation", err)
		}
	})

	t.Run("before start", func(t *testing.T) {
		appt := scheduledAppointment(t, testNow.Add(time.Hour))
		sink := &recordingSink{}
		var saved *domain.Appointment
		svc := newTestService(&fakeRepo{
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return appt, nil
			},
			updateAppointmentFn: func(ctx context.Context, a *domain.Appointment) error {
				saved = a
				return nil
			},
		}, sink)

		if err := svc.Cancel(context.Background(), appt.ID()); err != nil {
			t.Fatalf("Cancel error: %v", err)
		}
		if saved == nil || saved.Status() != domain.StatusCanceled {
			t.Fatalf("saved = %v", saved)
		}
		if len(sink.events) != 1 {
			t.Fatalf("events = %d, want 1", len(sink.events))
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("only scheduled", func(t *testing.T) {
		appt := domain.RestoreAppointment(uuid.New(), testCustomer.ID, domain.RestoreTimeSlot(testNow, testNow.Add(time.Hour)), domain.StatusCompleted, "")
		svc := newTestService(&fakeRepo{
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return appt, nil
			},
		}, &recordingSink{})

		if err := svc.Delete(context.Background(), appt.ID()); !domain.IsRuleViolation(err) {
			t.Fatalf("error = %v, want rule violation", err)
		}
	})

	t.Run("removes scheduled", func(t *testing.T) {
		appt := scheduledAppointment(t, testNow.Add(time.Hour))
		var removed uuid.UUID
		svc := newTestService(&fakeRepo{
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return appt, nil
			},
			removeAppointmentFn: func(ctx context.Context, id uuid.UUID) error {
				removed = id
				return nil
			},
		}, &recordingSink{})

		if err := svc.Delete(context.Background(), appt.ID()); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		if removed != appt.ID() {
			t.Fatalf("removed = %s, want %s", removed, appt.ID())
		}
	})

	t.Run("missing", func(t *testing.T) {
		svc := newTestService(&fakeRepo{
			getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
				return nil, store.ErrNotFound
			},
		}, &recordingSink{})

		if err := svc.Delete(context.Background(), uuid.New()); !service.IsNotFound(err) {
			t.Fatalf("error = %v, want NotFound", err)
		}
	})
}

func TestListInRange_RejectsEmptyRange(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &recordingSink{})
	start := testNow.Add(time.Hour)

	for _, end := range []time.Time{start, start.Add(-time.Minute)} {
		if _, err := svc.ListInRange(context.Background(), start, end); !service.IsValidation(err) {
			t.Fatalf("ListInRange(%s, %s) error = %v, want validation", start, end, err)
		}
	}
}

func TestListInRange_NormalizesToUTC(t *testing.T) {
	var gotStart time.Time
	svc := newTestService(&fakeRepo{
		listAppointmentsInRangeFn: func(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error) {
			gotStart = start
			return nil, nil
		},
	}, &recordingSink{})

	loc := time.FixedZone("UTC+3", 3*60*60)
	start := time.Date(2026, 3, 3, 12, 0, 0, 0, loc)
	if _, err := svc.ListInRange(context.Background(), start, start.Add(time.Hour)); err != nil {
		t.Fatalf("ListInRange error: %v", err)
	}
	if gotStart.Location() != time.UTC || !gotStart.Equal(start) {
		t.Fatalf("start = %v", gotStart)
	}
}

func TestTodayStats_EnrichesAndCaches(t *testing.T) {
	a1 := scheduledAppointment(t, testNow.Add(time.Hour))
	a2 := scheduledAppointment(t, testNow.Add(3*time.Hour))

	var reads int
	var gotLimit int
	repo := &fakeRepo{
		countAppointmentsFn: func(ctx context.Context) (int, error) {
			reads++
			return 12, nil
		},
		countAppointmentsOnDayFn: func(ctx context.Context, day time.Time) (int, error) {
			return 4, nil
		},
		listUpcomingTodayFn: func(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error) {
			gotLimit = limit
			return []*domain.Appointment{a1, a2}, nil
		},
		getCustomersByIDsFn: func(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error) {
			if len(ids) != 1 {
				t.Fatalf("ids = %v, want one distinct customer", ids)
			}
			return []domain.Customer{testCustomer}, nil
		},
	}
	svc := newTestService(repo, &recordingSink{}, WithStatsCache(cache.NewLRU(8, time.Minute)))

	stats, err := svc.TodayStats(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if stats.Total != 12 || stats.Today != 4 {
		t.Fatalf("stats = %+v", stats)
	}
	if gotLimit != DefaultUpcomingLimit {
		t.Fatalf("limit = %d, want %d", gotLimit, DefaultUpcomingLimit)
	}
	if len(stats.Upcoming) != 2 || stats.Upcoming[0].CustomerName != "Ada Stone" || stats.Upcoming[1].ID != a2.ID() {
		t.Fatalf("upcoming = %+v", stats.Upcoming)
	}

	again, err := svc.TodayStats(context.Background(), testNow.Add(20*time.Second))
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if reads != 1 {
		t.Fatalf("repository reads = %d, want 1 (second call cached)", reads)
	}
	if again.Total != 12 || len(again.Upcoming) != 2 {
		t.Fatalf("cached stats = %+v", again)
	}
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("redis down")
}

func (failingCache) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("redis down")
}

func TestTodayStats_CacheFailureFallsBackToStore(t *testing.T) {
	repo := &fakeRepo{
		countAppointmentsFn:      func(ctx context.Context) (int, error) { return 1, nil },
		countAppointmentsOnDayFn: func(ctx context.Context, day time.Time) (int, error) { return 0, nil },
		listUpcomingTodayFn: func(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error) {
			return nil, nil
		},
		getCustomersByIDsFn: func(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, &recordingSink{}, WithStatsCache(failingCache{}), WithUpcomingLimit(3))

	stats, err := svc.TodayStats(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if stats.Total != 1 || len(stats.Upcoming) != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestTodayStats_ReflectsWritesWithinTheSameMinute(t *testing.T) {
	db, err := sqlstore.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlstore.Close(db)
	})
	ctx := context.Background()
	if err := sqlstore.CreateSchema(ctx, db); err != nil {
		t.Fatalf("CreateSchema error: %v", err)
	}
	repo := sqlstore.NewRepo(db)
	if err := repo.AddCustomer(ctx, testCustomer); err != nil {
		t.Fatalf("AddCustomer error: %v", err)
	}

	now := testNow
	svc := NewService(repo, &recordingSink{},
		WithClock(func() time.Time { return now }),
		WithStatsCache(cache.NewLRU(16, time.Minute)),
	)

	stats, err := svc.TodayStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if stats.Total != 0 || stats.Today != 0 || len(stats.Upcoming) != 0 {
		t.Fatalf("initial stats = %+v", stats)
	}

	start := testNow.Add(time.Hour)
	id, err := svc.Book(ctx, BookInput{CustomerID: testCustomer.ID, Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	now = testNow.Add(20 * time.Second)
	stats, err = svc.TodayStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if stats.Total != 1 || stats.Today != 1 || len(stats.Upcoming) != 1 {
		t.Fatalf("stats after booking = %+v, want one appointment", stats)
	}
	if stats.Upcoming[0].ID != id || stats.Upcoming[0].CustomerName != testCustomer.Name {
		t.Fatalf("upcoming = %+v", stats.Upcoming)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	now = testNow.Add(40 * time.Second)
	stats, err = svc.TodayStats(ctx, time.Time{})
	if err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if stats.Total != 0 || stats.Today != 0 || len(stats.Upcoming) != 0 {
		t.Fatalf("stats after delete = %+v, want none", stats)
	}
}

func TestTodayStats_StatusChangeInvalidatesCache(t *testing.T) {
	appt := scheduledAppointment(t, testNow.Add(time.Hour))

	var reads int
	repo := &fakeRepo{
		countAppointmentsFn: func(ctx context.Context) (int, error) {
			reads++
			return 1, nil
		},
		countAppointmentsOnDayFn: func(ctx context.Context, day time.Time) (int, error) { return 1, nil },
		listUpcomingTodayFn: func(ctx context.Context, now time.Time, limit int) ([]*domain.Appointment, error) {
			return nil, nil
		},
		getCustomersByIDsFn: func(ctx context.Context, ids []uuid.UUID) ([]domain.Customer, error) {
			return nil, nil
		},
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
			return appt, nil
		},
		updateAppointmentFn: func(ctx context.Context, a *domain.Appointment) error {
			return nil
		},
	}
	svc := newTestService(repo, &recordingSink{}, WithStatsCache(cache.NewLRU(8, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.TodayStats(ctx, time.Time{}); err != nil {
			t.Fatalf("TodayStats error: %v", err)
		}
	}
	if reads != 1 {
		t.Fatalf("repository reads = %d, want 1", reads)
	}

	if err := svc.Cancel(ctx, appt.ID()); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := svc.TodayStats(ctx, time.Time{}); err != nil {
		t.Fatalf("TodayStats error: %v", err)
	}
	if reads != 2 {
		t.Fatalf("repository reads = %d, want 2 after cancel", reads)
	}
}
