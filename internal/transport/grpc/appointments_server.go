package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service/appointments"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

type appointmentsService interface {
	Book(ctx context.Context, in appointments.BookInput) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	ListInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.AppointmentStatus, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	TodayStats(ctx context.Context, now time.Time) (appointments.TodayStats, error)
}

var _ AppointmentsServiceServer = (*AppointmentsServer)(nil)

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) BookAppointment(ctx context.Context, req *BookAppointmentRequest) (*BookAppointmentResponse, error) {
	log := rpcLogger(ctx, s.log, "BookAppointment")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "customer_id must be a UUID")
	}
	if req.StartUTC == nil || req.EndUTC == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("customer_id", req.CustomerID))
		return nil, status.Error(codes.InvalidArgument, "start_utc and end_utc are required")
	}

	id, err := s.svc.Book(ctx, appointments.BookInput{
		CustomerID:     customerID,
		Start:          *req.StartUTC,
		End:            *req.EndUTC,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, statusError(log, err,
			slog.String("customer_id", req.CustomerID),
			slog.Time("start_utc", *req.StartUTC),
			slog.Time("end_utc", *req.EndUTC),
		)
	}

	return &BookAppointmentResponse{ID: id.String()}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *AppointmentsServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*GetAppointmentResponse, error) {
	log := rpcLogger(ctx, s.log, "GetAppointment")

	id, err := parseID(log, req, func(r *GetAppointmentRequest) string { return r.ID })
	if err != nil {
		return nil, err
	}
	appt, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, statusError(log, err, slog.String("appointment_id", id.String()))
	}
	return &GetAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := rpcLogger(ctx, s.log, "ListAppointments")

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartUTC == nil || req.EndUTC == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"))
		return nil, status.Error(codes.InvalidArgument, "start_utc and end_utc are required")
	}

	appts, err := s.svc.ListInRange(ctx, *req.StartUTC, *req.EndUTC)
	if err != nil {
		return nil, statusError(log, err)
	}

	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, toWireAppointment(a))
	}

	log.Debug(
		"appointments listed",
		slog.Int("count", len(out)),
		slog.Time("start_utc", *req.StartUTC),
		slog.Time("end_utc", *req.EndUTC),
	)

	return &ListAppointmentsResponse{Appointments: out}, nil
}

func (s *AppointmentsServer) UpdateAppointmentStatus(ctx context.Context, req *UpdateAppointmentStatusRequest) (*UpdateAppointmentStatusResponse, error) {
	log := rpcLogger(ctx, s.log, "UpdateAppointmentStatus")

	id, err := parseID(log, req, func(r *UpdateAppointmentStatusRequest) string { return r.ID })
	if err != nil {
		return nil, err
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "unknown_status"), slog.String("status", req.Status))
		return nil, status.Errorf(codes.InvalidArgument, "unsupported appointment status %q", req.Status)
	}

	got, err := s.svc.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, statusError(log, err, slog.String("appointment_id", id.String()), slog.String("status", next.String()))
	}
	return &UpdateAppointmentStatusResponse{ID: id.String(), Status: got.String()}, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*CancelAppointmentResponse, error) {
	log := rpcLogger(ctx, s.log, "CancelAppointment")

	id, err := parseID(log, req, func(r *CancelAppointmentRequest) string { return r.ID })
	if err != nil {
		return nil, err
	}
	if err := s.svc.Cancel(ctx, id); err != nil {
		return nil, statusError(log, err, slog.String("appointment_id", id.String()))
	}
	return &CancelAppointmentResponse{}, nil
}

func (s *AppointmentsServer) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error) {
	log := rpcLogger(ctx, s.log, "DeleteAppointment")

	id, err := parseID(log, req, func(r *DeleteAppointmentRequest) string { return r.ID })
	if err != nil {
		return nil, err
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return nil, statusError(log, err, slog.String("appointment_id", id.String()))
	}
	return &DeleteAppointmentResponse{}, nil
}

func (s *AppointmentsServer) GetTodayStats(ctx context.Context, req *GetTodayStatsRequest) (*GetTodayStatsResponse, error) {
	log := rpcLogger(ctx, s.log, "GetTodayStats")

	var now time.Time
	if req != nil && req.NowUTC != nil {
		now = *req.NowUTC
	}
	stats, err := s.svc.TodayStats(ctx, now)
	if err != nil {
		return nil, statusError(log, err)
	}
	return &GetTodayStatsResponse{Stats: stats}, nil
}

func parseID[Req any](log *slog.Logger, req *Req, field func(*Req) string) (uuid.UUID, error) {
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return uuid.Nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(field(req))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return uuid.Nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}
	return id, nil
}
