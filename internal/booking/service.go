package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/galdino/barber-booking/internal/config"
	redisclient "github.com/galdino/barber-booking/internal/redis"
)

var (
	// ErrInvalidInput covers malformed or missing booking parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStaffBeingBooked means another booking for the same staff member is
	// in flight and the caller should retry.
	ErrStaffBeingBooked = errors.New("staff member is currently being booked, please retry")
)

// StaffDetail is a staff member together with their service links.
type StaffDetail struct {
	Staff
	Services []StaffService
}

// Scheduler is the booking core: it computes availability and writes
// appointments, re-validating the conflict rule at write time.
type Scheduler struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
}

func NewScheduler(repo Repository, locker redisclient.Locker, cfg config.Config) *Scheduler {
	return &Scheduler{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
	}
}

func (s *Scheduler) GetTenant(ctx context.Context, slug string) (*Tenant, error) {
	tenant, err := s.repo.GetTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	return tenant, nil
}

func (s *Scheduler) ListServices(ctx context.Context, tenantID uuid.UUID) ([]Service, error) {
	services, err := s.repo.ListServices(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

func (s *Scheduler) ListStaff(ctx context.Context, tenantID uuid.UUID) ([]StaffDetail, error) {
	staff, err := s.repo.ListStaff(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	result := make([]StaffDetail, 0, len(staff))
	for _, m := range staff {
		links, err := s.repo.ListStaffServices(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("list staff services: %w", err)
		}
		result = append(result, StaffDetail{Staff: m, Services: links})
	}
	return result, nil
}

// ComputeSlots returns the bookable slots for a staff/service pair on one
// calendar date ("2006-01-02"), interpreted in the tenant's timezone. A day
// without working hours yields an empty list, not an error. The result is
// recomputed fresh on every call; the conflict set can change between calls.
func (s *Scheduler) ComputeSlots(ctx context.Context, tenant *Tenant, staffID, serviceID uuid.UUID, date string) ([]Slot, error) {
	loc := tenant.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	if _, err := s.repo.GetStaffByID(ctx, tenant.ID, staffID); err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}

	svc, err := s.repo.GetServiceByID(ctx, tenant.ID, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	link, err := s.repo.GetStaffService(ctx, staffID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load staff service link: %w", err)
	}
	duration, price := EffectiveDurationPrice(svc, link)

	rules, err := s.repo.ListRulesForDay(ctx, staffID, int(day.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load availability rules: %w", err)
	}
	if len(rules) == 0 {
		return []Slot{}, nil
	}

	nextDay := day.AddDate(0, 0, 1)
	appts, err := s.repo.ListConfirmedBetween(ctx, staffID, day, nextDay)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	busy := make([]Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
	}

	return BuildSlots(day, rules, busy, duration, price), nil
}

// CreateAppointment reserves [startTime, endTime) for the staff member and
// upserts the customer, all in one storage transaction. The overlap rule is
// re-checked at write time regardless of what ComputeSlots returned earlier.
func (s *Scheduler) CreateAppointment(ctx context.Context, tenant *Tenant, staffID, serviceID uuid.UUID, startTime, endTime time.Time, customer CustomerInput) (*Appointment, *Customer, error) {
	if customer.Name == "" {
		return nil, nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if customer.Phone == "" {
		return nil, nil, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	if !startTime.Before(endTime) {
		return nil, nil, fmt.Errorf("%w: start_time must be before end_time", ErrInvalidInput)
	}

	if _, err := s.repo.GetStaffByID(ctx, tenant.ID, staffID); err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load staff: %w", err)
	}

	svc, err := s.repo.GetServiceByID(ctx, tenant.ID, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load service: %w", err)
	}

	link, err := s.repo.GetStaffService(ctx, staffID, serviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load staff service link: %w", err)
	}
	duration, _ := EffectiveDurationPrice(svc, link)

	if !endTime.Equal(startTime.Add(time.Duration(duration) * time.Minute)) {
		return nil, nil, fmt.Errorf("%w: end_time must be start_time plus %d minutes", ErrInvalidInput, duration)
	}

	appt := &Appointment{
		TenantID:  tenant.ID,
		StaffID:   staffID,
		ServiceID: serviceID,
		StartTime: startTime,
		EndTime:   endTime,
		Status:    StatusConfirmed,
		Source:    SourceOnline,
		Notes:     customer.Notes,
	}

	var created *Appointment
	var cust *Customer

	// The Redis lock keeps concurrent attempts for the same staff member off
	// the database; the transaction plus exclusion constraint remain the
	// authoritative guard even if the lock is lost.
	err = s.locker.WithStaffLock(ctx, staffID, func(lockCtx context.Context) error {
		var bookErr error
		created, cust, bookErr = s.repo.BookAppointment(lockCtx, appt, customer)
		return bookErr
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrStaffBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			return nil, nil, ErrSlotTaken
		}
		return nil, nil, err
	}

	return created, cust, nil
}

// ListDayAppointments is the admin view: every appointment for the staff
// member on the given date, regardless of status.
func (s *Scheduler) ListDayAppointments(ctx context.Context, tenant *Tenant, staffID uuid.UUID, date string) ([]Appointment, error) {
	day, err := time.ParseInLocation("2006-01-02", date, tenant.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	if _, err := s.repo.GetStaffByID(ctx, tenant.ID, staffID); err != nil {
		if errors.Is(err, ErrStaffNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}

	appts, err := s.repo.ListAppointmentsBetween(ctx, tenant.ID, staffID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Scheduler) GetAppointment(ctx context.Context, tenant *Tenant, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, tenant.ID, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// CancelStalePending is called by the expiry worker periodically. Pending
// appointments never block slots, so a stale one is just noise to clean up.
func (s *Scheduler) CancelStalePending(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.PendingTTL)
	cancelled, err := s.repo.CancelStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cancel stale pending appointments: %w", err)
	}
	for _, appt := range cancelled {
		log.Printf("cancelled stale pending appointment %s (staff=%s start=%s)",
			appt.ID, appt.StaffID, appt.StartTime.Format(time.RFC3339))
	}
	return nil
}
