package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/galdino/barber-booking/internal/booking"
)

type CustomerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
	Notes string `json:"notes,omitempty"`
}

type CreateAppointmentRequest struct {
	StaffID   string          `json:"staff_id"`
	ServiceID string          `json:"service_id"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Customer  CustomerPayload `json:"customer"`
}

type TenantResponse struct {
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Address  string    `json:"address,omitempty"`
	City     string    `json:"city,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Timezone string    `json:"timezone"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int       `json:"price_cents"`
}

type StaffServiceResponse struct {
	ServiceID               uuid.UUID `json:"service_id"`
	DurationMinutesOverride *int      `json:"duration_minutes_override,omitempty"`
	PriceCentsOverride      *int      `json:"price_cents_override,omitempty"`
}

type StaffResponse struct {
	ID       uuid.UUID              `json:"id"`
	Name     string                 `json:"name"`
	Bio      string                 `json:"bio,omitempty"`
	Services []StaffServiceResponse `json:"services"`
}

type SlotResponse struct {
	Time      string `json:"time"`
	Datetime  string `json:"datetime"`
	Available bool   `json:"available"`
	Duration  int    `json:"duration"`
	Price     int    `json:"price"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	StaffID    uuid.UUID `json:"staff_id"`
	ServiceID  uuid.UUID `json:"service_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	Notes      string    `json:"notes,omitempty"`
}

type CustomerResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone"`
}

type CreateAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Customer    CustomerResponse    `json:"customer"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toTenantResponse(t *booking.Tenant) TenantResponse {
	return TenantResponse{
		ID:       t.ID,
		Slug:     t.Slug,
		Name:     t.Name,
		Address:  t.Address,
		City:     t.City,
		Phone:    t.Phone,
		Timezone: t.Timezone,
	}
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		TenantID:   a.TenantID,
		StaffID:    a.StaffID,
		ServiceID:  a.ServiceID,
		CustomerID: a.CustomerID,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Status:     string(a.Status),
		Source:     a.Source,
		Notes:      a.Notes,
	}
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		Time:      s.Start.Format("15:04"),
		Datetime:  s.Start.Format(time.RFC3339),
		Available: true,
		Duration:  s.DurationMinutes,
		Price:     s.PriceCents,
	}
}
