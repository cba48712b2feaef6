package grpc

import (
	"time"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service/appointments"
)

type Appointment struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BookAppointmentRequest struct {
	CustomerID string     `json:"customer_id"`
	StartUTC   *time.Time `json:"start_utc,omitempty"`
	EndUTC     *time.Time `json:"end_utc,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type BookAppointmentResponse struct {
	ID string `json:"id"`
}

type GetAppointmentRequest struct {
	ID string `json:"id"`
}

type GetAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	StartUTC *time.Time `json:"start_utc,omitempty"`
	EndUTC   *time.Time `json:"end_utc,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type UpdateAppointmentStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type UpdateAppointmentStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CancelAppointmentRequest struct {
	ID string `json:"id"`
}

type CancelAppointmentResponse struct{}

type DeleteAppointmentRequest struct {
	ID string `json:"id"`
}

type DeleteAppointmentResponse struct{}

type GetTodayStatsRequest struct {
	NowUTC *time.Time `json:"now_utc,omitempty"`
}

type GetTodayStatsResponse struct {
	Stats appointments.TodayStats `json:"stats"`
}

type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateCustomerResponse struct {
	ID string `json:"id"`
}

type GetCustomerRequest struct {
	ID string `json:"id"`
}

type GetCustomerResponse struct {
	Customer Customer `json:"customer"`
}

type SearchCustomersRequest struct {
	Term string `json:"term,omitempty"`
}

type SearchCustomersResponse struct {
	Customers []Customer `json:"customers"`
}

func toWireAppointment(a *domain.Appointment) Appointment {
	return Appointment{
		ID:         a.ID().String(),
		CustomerID: a.CustomerID().String(),
		StartUTC:   a.TimeSlot().Start(),
		EndUTC:     a.TimeSlot().End(),
		Status:     a.Status().String(),
		Notes:      a.Notes(),
	}
}

func toWireCustomer(c domain.Customer) Customer {
	return Customer{ID: c.ID.String(), Name: c.Name, Email: c.Email}
}
