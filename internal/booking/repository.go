package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrStaffNotFound       = errors.New("staff member not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken means a confirmed appointment already occupies an
	// overlapping interval for the staff member.
	ErrSlotTaken = errors.New("slot is no longer available")
)

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)

	// Directory lookups, all scoped to a tenant and filtered to active rows.
	GetServiceByID(ctx context.Context, tenantID, serviceID uuid.UUID) (*Service, error)
	GetStaffByID(ctx context.Context, tenantID, staffID uuid.UUID) (*Staff, error)
	ListServices(ctx context.Context, tenantID uuid.UUID) ([]Service, error)
	ListStaff(ctx context.Context, tenantID uuid.UUID) ([]Staff, error)

	// GetStaffService returns the override link for a (staff, service) pair,
	// or (nil, nil) when no link exists.
	GetStaffService(ctx context.Context, staffID, serviceID uuid.UUID) (*StaffService, error)
	ListStaffServices(ctx context.Context, staffID uuid.UUID) ([]StaffService, error)

	ListRulesForDay(ctx context.Context, staffID uuid.UUID, dayOfWeek int) ([]AvailabilityRule, error)

	// ListConfirmedBetween returns confirmed appointments for the staff
	// member whose start time falls in [from, to).
	ListConfirmedBetween(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// ListAppointmentsBetween is the admin view: all statuses, scoped by tenant.
	ListAppointmentsBetween(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)

	// BookAppointment upserts the customer and inserts the appointment in a
	// single transaction, re-checking the overlap rule before commit. Returns
	// ErrSlotTaken when a confirmed appointment already overlaps.
	BookAppointment(ctx context.Context, appt *Appointment, customer CustomerInput) (*Appointment, *Customer, error)

	// CancelStalePending cancels pending appointments created before cutoff
	// and returns the ones it cancelled.
	CancelStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
