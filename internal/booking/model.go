package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusPending   AppointmentStatus = "pending"
	StatusCancelled AppointmentStatus = "cancelled"
)

const SourceOnline = "online"

type Tenant struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	Address   string
	City      string
	Phone     string
	Timezone  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the tenant's IANA timezone, falling back to UTC when the
// stored name is empty or unknown.
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Service struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	Description     string
	DurationMinutes int
	PriceCents      int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Staff struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Bio       string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffService links a staff member to a service they offer, optionally
// overriding the service's default duration and price for that staff member.
type StaffService struct {
	StaffID                 uuid.UUID
	ServiceID               uuid.UUID
	DurationMinutesOverride *int
	PriceCentsOverride      *int
}

// AvailabilityRule is a recurring weekly working window for a staff member.
// Start and end are wall-clock times in the tenant's timezone, "HH:MM".
type AvailabilityRule struct {
	ID        int64
	StaffID   uuid.UUID
	DayOfWeek int // 0=Sunday .. 6=Saturday
	StartTime string
	EndTime   string
	Active    bool
}

type Appointment struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	StaffID    uuid.UUID
	ServiceID  uuid.UUID
	CustomerID uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	Source     string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerInput is the customer data collected by the booking form.
type CustomerInput struct {
	Name  string
	Email string
	Phone string
	Notes string
}

// Slot is a bookable start time for a given staff/service pair. It carries
// the resolved duration and price so callers need not re-resolve overrides.
type Slot struct {
	Start           time.Time
	End             time.Time
	DurationMinutes int
	PriceCents      int
}

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}
