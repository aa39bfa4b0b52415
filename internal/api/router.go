package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/tenants/{slug}", func(r chi.Router) {
		r.Get("/", getTenantHandler(cfg.Service))
		r.Get("/services", listServicesHandler(cfg.Service))
		r.Get("/staff", listStaffHandler(cfg.Service))
		r.Get("/availability", availabilityHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	})

	return r
}
