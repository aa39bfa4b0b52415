package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is the SQLSTATE raised when an insert collides with the
// appointments_no_overlap constraint.
const exclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.Name,
		&t.Address,
		&t.City,
		&t.Phone,
		&t.Timezone,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.Name,
		&s.Description,
		&s.DurationMinutes,
		&s.PriceCents,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var m Staff
	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.Name,
		&m.Bio,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.StaffID,
		&a.ServiceID,
		&a.CustomerID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Source,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const appointmentColumns = `id, tenant_id, staff_id, service_id, customer_id,
		start_time, end_time, status, source, notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, slug, name, address, city, phone, timezone, active, created_at, updated_at
		FROM tenants
		WHERE slug = $1 AND active
	`, slug)
	return scanTenant(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, tenantID, serviceID uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services
		WHERE id = $1 AND tenant_id = $2 AND active
	`, serviceID, tenantID)
	return scanService(row)
}

func (r *PgRepository) GetStaffByID(ctx context.Context, tenantID, staffID uuid.UUID) (*Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, bio, active, created_at, updated_at
		FROM staff
		WHERE id = $1 AND tenant_id = $2 AND active
	`, staffID, tenantID)
	return scanStaff(row)
}

func (r *PgRepository) ListServices(ctx context.Context, tenantID uuid.UUID) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, duration_minutes, price_cents, active, created_at, updated_at
		FROM services
		WHERE tenant_id = $1 AND active
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListStaff(ctx context.Context, tenantID uuid.UUID) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, bio, active, created_at, updated_at
		FROM staff
		WHERE tenant_id = $1 AND active
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetStaffService(ctx context.Context, staffID, serviceID uuid.UUID) (*StaffService, error) {
	var link StaffService
	err := r.pool.QueryRow(ctx, `
		SELECT staff_id, service_id, duration_minutes_override, price_cents_override
		FROM staff_services
		WHERE staff_id = $1 AND service_id = $2
	`, staffID, serviceID).Scan(
		&link.StaffID,
		&link.ServiceID,
		&link.DurationMinutesOverride,
		&link.PriceCentsOverride,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (r *PgRepository) ListStaffServices(ctx context.Context, staffID uuid.UUID) ([]StaffService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id, service_id, duration_minutes_override, price_cents_override
		FROM staff_services
		WHERE staff_id = $1
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StaffService
	for rows.Next() {
		var link StaffService
		if err := rows.Scan(
			&link.StaffID,
			&link.ServiceID,
			&link.DurationMinutesOverride,
			&link.PriceCentsOverride,
		); err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListRulesForDay(ctx context.Context, staffID uuid.UUID, dayOfWeek int) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, staff_id, day_of_week,
		       to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), active
		FROM availability_rules
		WHERE staff_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_time
	`, staffID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		var rule AvailabilityRule
		if err := rows.Scan(
			&rule.ID,
			&rule.StaffID,
			&rule.DayOfWeek,
			&rule.StartTime,
			&rule.EndTime,
			&rule.Active,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListConfirmedBetween(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1
		  AND status = 'confirmed'
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND staff_id = $2
		  AND start_time >= $3
		  AND start_time < $4
		ORDER BY start_time
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	return scanAppointment(row)
}

func (r *PgRepository) BookAppointment(ctx context.Context, appt *Appointment, customer CustomerInput) (*Appointment, *Customer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cust, err := upsertCustomerTx(ctx, tx, appt.TenantID, customer)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert customer: %w", err)
	}

	// Re-check the overlap rule at write time. The exclusion constraint is
	// the authoritative guard; this check turns the common race into a clean
	// error instead of a constraint violation.
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE staff_id = $1
			  AND status = 'confirmed'
			  AND start_time < $3
			  AND end_time > $2
		)
	`, appt.StaffID, appt.StartTime, appt.EndTime).Scan(&taken)
	if err != nil {
		return nil, nil, fmt.Errorf("check overlap: %w", err)
	}
	if taken {
		return nil, nil, ErrSlotTaken
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, tenant_id, staff_id, service_id, customer_id, start_time, end_time, status, source, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), appt.TenantID, appt.StaffID, appt.ServiceID, cust.ID,
		appt.StartTime, appt.EndTime, appt.Status, appt.Source, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, nil, ErrSlotTaken
		}
		return nil, nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, nil, ErrSlotTaken
		}
		return nil, nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, cust, nil
}

// upsertCustomerTx dedupes per tenant by phone or email. When the phone and
// email legs match different rows, the phone match wins.
func upsertCustomerTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, in CustomerInput) (*Customer, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM customers
		WHERE tenant_id = $1
		  AND (phone = $2 OR ($3 <> '' AND email = $3))
		ORDER BY (phone = $2) DESC, created_at
		LIMIT 1
	`, tenantID, in.Phone, in.Email).Scan(&existingID)

	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if err == nil {
		row := tx.QueryRow(ctx, `
			UPDATE customers
			SET name = $2, email = $3, phone = $4, updated_at = now()
			WHERE id = $1
			RETURNING id, tenant_id, name, email, phone, created_at, updated_at
		`, existingID, in.Name, in.Email, in.Phone)
		return scanCustomer(row)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO customers (id, tenant_id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, tenant_id, name, email, phone, created_at, updated_at
	`, uuid.New(), tenantID, in.Name, in.Email, in.Phone)
	return scanCustomer(row)
}

func (r *PgRepository) CancelStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE status = 'pending'
		  AND created_at < $1
		RETURNING `+appointmentColumns+`
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}
