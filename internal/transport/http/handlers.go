package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service/appointments"
	"scheduleit/backend/internal/service/customers"
)

type appointmentsService interface {
	Book(ctx context.Context, in appointments.BookInput) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	ListInRange(ctx context.Context, start, end time.Time) ([]*domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.AppointmentStatus, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	TodayStats(ctx context.Context, now time.Time) (appointments.TodayStats, error)
}

type customersService interface {
	Create(ctx context.Context, in customers.CreateInput) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Customer, error)
	Search(ctx context.Context, term string) ([]domain.Customer, error)
}

type appointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
}

func toAppointmentResponse(a *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID(),
		CustomerID: a.CustomerID(),
		StartUTC:   a.TimeSlot().Start(),
		EndUTC:     a.TimeSlot().End(),
		Status:     a.Status().String(),
		Notes:      a.Notes(),
	}
}

type appointmentsHandler struct {
	svc appointmentsService
	log *slog.Logger
}

type bookRequest struct {
	CustomerID uuid.UUID `json:"customer_id" binding:"required"`
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
	Notes      string    `json:"notes"`
}

func (h *appointmentsHandler) book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id, err := h.svc.Book(c.Request.Context(), appointments.BookInput{
		CustomerID:     req.CustomerID,
		Start:          req.StartUTC,
		End:            req.EndUTC,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Location", "/api/appointments/"+id.String())
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *appointmentsHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	appt, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

type rangeQuery struct {
	StartUTC time.Time `form:"startUtc"`
	EndUTC   time.Time `form:"endUtc"`
}

func (h *appointmentsHandler) listInRange(c *gin.Context) {
	var q rangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBadRequest(c, err)
		return
	}

	appts, err := h.svc.ListInRange(c.Request.Context(), q.StartUTC, q.EndUTC)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	c.JSON(http.StatusOK, out)
}

type statsQuery struct {
	NowUTC time.Time `form:"nowUtc"`
}

func (h *appointmentsHandler) todayStats(c *gin.Context) {
	var q statsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBadRequest(c, err)
		return
	}

	stats, err := h.svc.TodayStats(c.Request.Context(), q.NowUTC)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *appointmentsHandler) updateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		respondJSONError(c, http.StatusBadRequest, codeValidation, "unsupported appointment status "+strings.TrimSpace(req.Status))
		return
	}

	got, err := h.svc.UpdateStatus(c.Request.Context(), id, next)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": got.String()})
}

func (h *appointmentsHandler) cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *appointmentsHandler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type customersHandler struct {
	svc customersService
	log *slog.Logger
}

type customerResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type createCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *customersHandler) create(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	id, err := h.svc.Create(c.Request.Context(), customers.CreateInput{Name: req.Name, Email: req.Email})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Header("Location", "/api/customers/"+id.String())
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *customersHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cust, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, customerResponse{ID: cust.ID, Name: cust.Name, Email: cust.Email})
}

func (h *customersHandler) search(c *gin.Context) {
	found, err := h.svc.Search(c.Request.Context(), c.Query("search"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]customerResponse, 0, len(found))
	for _, cust := range found {
		out = append(out, customerResponse{ID: cust.ID, Name: cust.Name, Email: cust.Email})
	}
	c.JSON(http.StatusOK, out)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondJSONError(c, http.StatusBadRequest, codeValidation, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
