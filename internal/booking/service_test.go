package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/galdino/barber-booking/internal/config"
	redisclient "github.com/galdino/barber-booking/internal/redis"
)

// fakeRepo is an in-memory Repository. BookAppointment serializes the
// check-then-insert under a mutex the way the transactional Postgres path
// does, so concurrency tests exercise the real invariant.
type fakeRepo struct {
	mu        sync.Mutex
	tenants   map[string]*Tenant
	services  map[uuid.UUID]*Service
	staff     map[uuid.UUID]*Staff
	links     map[uuid.UUID]map[uuid.UUID]*StaffService
	rules     map[uuid.UUID][]AvailabilityRule
	appts     []Appointment
	customers []Customer
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tenants:  make(map[string]*Tenant),
		services: make(map[uuid.UUID]*Service),
		staff:    make(map[uuid.UUID]*Staff),
		links:    make(map[uuid.UUID]map[uuid.UUID]*StaffService),
		rules:    make(map[uuid.UUID][]AvailabilityRule),
	}
}

func (f *fakeRepo) GetTenantBySlug(_ context.Context, slug string) (*Tenant, error) {
	t, ok := f.tenants[slug]
	if !ok || !t.Active {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

func (f *fakeRepo) GetServiceByID(_ context.Context, tenantID, serviceID uuid.UUID) (*Service, error) {
	s, ok := f.services[serviceID]
	if !ok || s.TenantID != tenantID || !s.Active {
		return nil, ErrServiceNotFound
	}
	return s, nil
}

func (f *fakeRepo) GetStaffByID(_ context.Context, tenantID, staffID uuid.UUID) (*Staff, error) {
	m, ok := f.staff[staffID]
	if !ok || m.TenantID != tenantID || !m.Active {
		return nil, ErrStaffNotFound
	}
	return m, nil
}

func (f *fakeRepo) ListServices(_ context.Context, tenantID uuid.UUID) ([]Service, error) {
	var out []Service
	for _, s := range f.services {
		if s.TenantID == tenantID && s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListStaff(_ context.Context, tenantID uuid.UUID) ([]Staff, error) {
	var out []Staff
	for _, m := range f.staff {
		if m.TenantID == tenantID && m.Active {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetStaffService(_ context.Context, staffID, serviceID uuid.UUID) (*StaffService, error) {
	return f.links[staffID][serviceID], nil
}

func (f *fakeRepo) ListStaffServices(_ context.Context, staffID uuid.UUID) ([]StaffService, error) {
	var out []StaffService
	for _, link := range f.links[staffID] {
		out = append(out, *link)
	}
	return out, nil
}

func (f *fakeRepo) ListRulesForDay(_ context.Context, staffID uuid.UUID, dayOfWeek int) ([]AvailabilityRule, error) {
	var out []AvailabilityRule
	for _, r := range f.rules[staffID] {
		if r.DayOfWeek == dayOfWeek && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListConfirmedBetween(_ context.Context, staffID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.StaffID == staffID && a.Status == StatusConfirmed &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAppointmentsBetween(_ context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for _, a := range f.appts {
		if a.TenantID == tenantID && a.StaffID == staffID &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.ID == id && a.TenantID == tenantID {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) BookAppointment(_ context.Context, appt *Appointment, in CustomerInput) (*Appointment, *Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.appts {
		if a.StaffID == appt.StaffID && a.Status == StatusConfirmed &&
			Overlaps(appt.StartTime, appt.EndTime, a.StartTime, a.EndTime) {
			return nil, nil, ErrSlotTaken
		}
	}

	cust := f.upsertCustomerLocked(appt.TenantID, in)

	created := *appt
	created.ID = uuid.New()
	created.CustomerID = cust.ID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	f.appts = append(f.appts, created)
	return &created, cust, nil
}

func (f *fakeRepo) upsertCustomerLocked(tenantID uuid.UUID, in CustomerInput) *Customer {
	var phoneMatch, emailMatch *Customer
	for i := range f.customers {
		c := &f.customers[i]
		if c.TenantID != tenantID {
			continue
		}
		if c.Phone == in.Phone && phoneMatch == nil {
			phoneMatch = c
		}
		if in.Email != "" && c.Email == in.Email && emailMatch == nil {
			emailMatch = c
		}
	}

	match := phoneMatch
	if match == nil {
		match = emailMatch
	}
	if match != nil {
		match.Name = in.Name
		match.Email = in.Email
		match.Phone = in.Phone
		match.UpdatedAt = time.Now()
		cp := *match
		return &cp
	}

	created := Customer{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
	}
	f.customers = append(f.customers, created)
	return &created
}

func (f *fakeRepo) CancelStalePending(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Appointment
	for i := range f.appts {
		if f.appts[i].Status == StatusPending && f.appts[i].CreatedAt.Before(cutoff) {
			f.appts[i].Status = StatusCancelled
			out = append(out, f.appts[i])
		}
	}
	return out, nil
}

// passLocker runs the critical section inline.
type passLocker struct{}

func (passLocker) WithStaffLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// heldLocker simulates a lock owned by someone else.
type heldLocker struct{}

func (heldLocker) WithStaffLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fixture struct {
	repo      *fakeRepo
	scheduler *Scheduler
	tenant    *Tenant
	staffID   uuid.UUID
	serviceID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	tenant := &Tenant{ID: uuid.New(), Slug: "demo-barbershop", Name: "Demo", Timezone: "UTC", Active: true}
	repo.tenants[tenant.Slug] = tenant

	staffID := uuid.New()
	repo.staff[staffID] = &Staff{ID: staffID, TenantID: tenant.ID, Name: "Marcos", Active: true}

	serviceID := uuid.New()
	repo.services[serviceID] = &Service{
		ID: serviceID, TenantID: tenant.ID, Name: "Haircut",
		DurationMinutes: 30, PriceCents: 4500, Active: true,
	}

	// Works Mondays 09:00-12:00.
	repo.rules[staffID] = []AvailabilityRule{
		{StaffID: staffID, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Active: true},
	}

	return &fixture{
		repo:      repo,
		scheduler: NewScheduler(repo, passLocker{}, config.Config{}),
		tenant:    tenant,
		staffID:   staffID,
		serviceID: serviceID,
	}
}

func TestCreateAppointment_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := at(t, 9, 0)
	appt, cust, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		start, start.Add(30*time.Minute),
		CustomerInput{Name: "Joana Lima", Phone: "+5511999990000", Email: "joana@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if appt.Status != StatusConfirmed {
		t.Errorf("expected confirmed status, got %s", appt.Status)
	}
	if appt.Source != SourceOnline {
		t.Errorf("expected online source, got %s", appt.Source)
	}
	if appt.CustomerID != cust.ID {
		t.Error("appointment must reference the upserted customer")
	}
	if cust.Name != "Joana Lima" {
		t.Errorf("unexpected customer name %q", cust.Name)
	}
}

func TestCreateAppointment_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := at(t, 10, 0)
	if _, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		start, start.Add(30*time.Minute),
		CustomerInput{Name: "First", Phone: "111"}); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Overlapping by 15 minutes.
	second := at(t, 10, 15)
	_, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		second, second.Add(30*time.Minute),
		CustomerInput{Name: "Second", Phone: "222"})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Touching the existing end is allowed.
	third := at(t, 10, 30)
	if _, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		third, third.Add(30*time.Minute),
		CustomerInput{Name: "Third", Phone: "333"}); err != nil {
		t.Fatalf("back-to-back booking must succeed: %v", err)
	}
}

func TestCreateAppointment_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	start := at(t, 11, 0)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, errs[n] = f.scheduler.CreateAppointment(context.Background(),
				f.tenant, f.staffID, f.serviceID,
				start, start.Add(30*time.Minute),
				CustomerInput{Name: "Racer", Phone: "555"})
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(t, 9, 0)

	cases := []struct {
		name     string
		start    time.Time
		end      time.Time
		customer CustomerInput
	}{
		{"missing name", start, start.Add(30 * time.Minute), CustomerInput{Phone: "111"}},
		{"missing phone", start, start.Add(30 * time.Minute), CustomerInput{Name: "X"}},
		{"start after end", start.Add(time.Hour), start, CustomerInput{Name: "X", Phone: "111"}},
		{"start equals end", start, start, CustomerInput{Name: "X", Phone: "111"}},
		{"end not start plus duration", start, start.Add(20 * time.Minute), CustomerInput{Name: "X", Phone: "111"}},
	}

	for _, tc := range cases {
		_, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID, tc.start, tc.end, tc.customer)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestCreateAppointment_UnknownStaffAndService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(t, 9, 0)
	cust := CustomerInput{Name: "X", Phone: "111"}

	_, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, uuid.New(), f.serviceID,
		start, start.Add(30*time.Minute), cust)
	if !errors.Is(err, ErrStaffNotFound) {
		t.Errorf("expected ErrStaffNotFound, got %v", err)
	}

	_, _, err = f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, uuid.New(),
		start, start.Add(30*time.Minute), cust)
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestCreateAppointment_LockHeld(t *testing.T) {
	f := newFixture(t)
	scheduler := NewScheduler(f.repo, heldLocker{}, config.Config{})

	start := at(t, 9, 0)
	_, _, err := scheduler.CreateAppointment(context.Background(), f.tenant, f.staffID, f.serviceID,
		start, start.Add(30*time.Minute), CustomerInput{Name: "X", Phone: "111"})
	if !errors.Is(err, ErrStaffBeingBooked) {
		t.Fatalf("expected ErrStaffBeingBooked, got %v", err)
	}
}

func TestCreateAppointment_CustomerDedupe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byPhone := Customer{ID: uuid.New(), TenantID: f.tenant.ID, Name: "Old Name", Phone: "777", Email: "old@example.com"}
	byEmail := Customer{ID: uuid.New(), TenantID: f.tenant.ID, Name: "Other", Phone: "888", Email: "shared@example.com"}
	f.repo.customers = append(f.repo.customers, byPhone, byEmail)

	// Phone and email match different rows: the phone match must win.
	start := at(t, 9, 0)
	_, cust, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		start, start.Add(30*time.Minute),
		CustomerInput{Name: "New Name", Phone: "777", Email: "shared@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cust.ID != byPhone.ID {
		t.Fatalf("expected phone match to win, got customer %s", cust.ID)
	}
	if cust.Name != "New Name" {
		t.Errorf("expected mutable fields updated, got name %q", cust.Name)
	}
}

func TestComputeSlots_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.scheduler.ComputeSlots(ctx, f.tenant, f.staffID, f.serviceID, "2026-01-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots on an empty Monday, got %d", len(slots))
	}

	// Book 10:00-10:30 and recompute.
	start := at(t, 10, 0)
	if _, _, err := f.scheduler.CreateAppointment(ctx, f.tenant, f.staffID, f.serviceID,
		start, start.Add(30*time.Minute), CustomerInput{Name: "X", Phone: "111"}); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	slots, err = f.scheduler.ComputeSlots(ctx, f.tenant, f.staffID, f.serviceID, "2026-01-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots after booking, got %d", len(slots))
	}
}

func TestComputeSlots_NoRulesIsEmptySuccess(t *testing.T) {
	f := newFixture(t)

	// Sunday Jan 4: no rules configured.
	slots, err := f.scheduler.ComputeSlots(context.Background(), f.tenant, f.staffID, f.serviceID, "2026-01-04")
	if err != nil {
		t.Fatalf("a day without working hours is not an error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slot list, got %v", slots)
	}
}

func TestComputeSlots_OverrideApplies(t *testing.T) {
	f := newFixture(t)

	dur := 45
	price := 6000
	f.repo.links[f.staffID] = map[uuid.UUID]*StaffService{
		f.serviceID: {StaffID: f.staffID, ServiceID: f.serviceID, DurationMinutesOverride: &dur, PriceCentsOverride: &price},
	}

	slots, err := f.scheduler.ComputeSlots(context.Background(), f.tenant, f.staffID, f.serviceID, "2026-01-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// floor((180-45)/15)+1 = 10
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots with 45 min duration, got %d", len(slots))
	}
	for _, s := range slots {
		if s.DurationMinutes != 45 || s.PriceCents != 6000 {
			t.Fatalf("slot must carry the override, got %+v", s)
		}
	}
}

func TestComputeSlots_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.scheduler.ComputeSlots(ctx, f.tenant, f.staffID, f.serviceID, "05/01/2026"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad date: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.scheduler.ComputeSlots(ctx, f.tenant, uuid.New(), f.serviceID, "2026-01-05"); !errors.Is(err, ErrStaffNotFound) {
		t.Errorf("unknown staff: expected ErrStaffNotFound, got %v", err)
	}
	if _, err := f.scheduler.ComputeSlots(ctx, f.tenant, f.staffID, uuid.New(), "2026-01-05"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("unknown service: expected ErrServiceNotFound, got %v", err)
	}
}

func TestCancelStalePending(t *testing.T) {
	f := newFixture(t)
	scheduler := NewScheduler(f.repo, passLocker{}, config.Config{PendingTTL: time.Hour})

	stale := Appointment{
		ID: uuid.New(), TenantID: f.tenant.ID, StaffID: f.staffID, ServiceID: f.serviceID,
		StartTime: at(t, 9, 0), EndTime: at(t, 9, 30),
		Status: StatusPending, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := stale
	fresh.ID = uuid.New()
	fresh.CreatedAt = time.Now()
	f.repo.appts = append(f.repo.appts, stale, fresh)

	if err := scheduler.CancelStalePending(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.repo.appts[0].Status != StatusCancelled {
		t.Error("stale pending appointment should be cancelled")
	}
	if f.repo.appts[1].Status != StatusPending {
		t.Error("fresh pending appointment should be untouched")
	}
}
