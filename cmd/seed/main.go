package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galdino/barber-booking/internal/config"
	"github.com/galdino/barber-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	tenantID, err := seedTenant(ctx, pool)
	if err != nil {
		log.Fatalf("seed tenant: %v", err)
	}
	serviceIDs, err := seedServices(ctx, pool, tenantID)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	staffIDs, err := seedStaff(ctx, pool, tenantID, serviceIDs)
	if err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedRules(ctx, pool, staffIDs); err != nil {
		log.Fatalf("seed availability rules: %v", err)
	}
	if err := seedCustomers(ctx, pool, tenantID, 200); err != nil {
		log.Fatalf("seed customers: %v", err)
	}

	log.Println("seed complete")
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	id := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, name, address, city, phone, timezone, active)
		VALUES ($1, 'demo-barbershop', 'Demo Barbershop', $2, $3, $4, 'America/Sao_Paulo', true)
		ON CONFLICT (slug) DO NOTHING
	`, id, gofakeit.Street(), gofakeit.City(), gofakeit.Phone())
	if err != nil {
		return uuid.Nil, err
	}

	// The insert may have been a no-op on re-run, read the id back.
	err = pool.QueryRow(ctx, `SELECT id FROM tenants WHERE slug = 'demo-barbershop'`).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	log.Printf("tenant demo-barbershop id=%s", id)
	return id, nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) ([]uuid.UUID, error) {
	services := []struct {
		name     string
		duration int
		price    int
	}{
		{"Haircut", 30, 4500},
		{"Beard Trim", 20, 3000},
		{"Haircut + Beard", 50, 7000},
		{"Kids Cut", 25, 3500},
	}

	ids := make([]uuid.UUID, 0, len(services))
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, s := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, description, duration_minutes, price_cents, active)
			VALUES ($1, $2, $3, $4, $5, $6, true)
		`, id, tenantID, s.name, gofakeit.Sentence(8), s.duration, s.price)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("%d services seeded", len(ids))
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, serviceIDs []uuid.UUID) ([]uuid.UUID, error) {
	const count = 4

	ids := make([]uuid.UUID, 0, count)
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO staff (id, tenant_id, name, bio, active)
			VALUES ($1, $2, $3, $4, true)
		`, id, tenantID, gofakeit.Name(), gofakeit.Sentence(12))
		if err != nil {
			return nil, err
		}

		// Every staff member offers every service; senior staff carry a
		// longer duration and a higher price on the first one.
		for j, serviceID := range serviceIDs {
			var durOverride, priceOverride *int
			if i == 0 && j == 0 {
				d := 45
				p := 6000
				durOverride, priceOverride = &d, &p
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO staff_services (staff_id, service_id, duration_minutes_override, price_cents_override)
				VALUES ($1, $2, $3, $4)
			`, id, serviceID, durOverride, priceOverride)
			if err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("%d staff seeded", len(ids))
	return ids, nil
}

func seedRules(ctx context.Context, pool *pgxpool.Pool, staffIDs []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Tuesday through Saturday, split around lunch.
	for _, staffID := range staffIDs {
		for dow := 2; dow <= 6; dow++ {
			for _, window := range [][2]string{{"09:00", "12:00"}, {"13:00", "18:00"}} {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_rules (staff_id, day_of_week, start_time, end_time, active)
					VALUES ($1, $2, $3, $4, true)
				`, staffID, dow, window[0], window[1])
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("availability rules seeded")
	return nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO customers (id, tenant_id, name, email, phone)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), tenantID, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("%d customers seeded", count)
	return nil
}
