package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/galdino/barber-booking/internal/booking"
)

// BookingService is what the handlers need from the scheduler.
type BookingService interface {
	GetTenant(ctx context.Context, slug string) (*booking.Tenant, error)
	ListServices(ctx context.Context, tenantID uuid.UUID) ([]booking.Service, error)
	ListStaff(ctx context.Context, tenantID uuid.UUID) ([]booking.StaffDetail, error)
	ComputeSlots(ctx context.Context, tenant *booking.Tenant, staffID, serviceID uuid.UUID, date string) ([]booking.Slot, error)
	CreateAppointment(ctx context.Context, tenant *booking.Tenant, staffID, serviceID uuid.UUID, startTime, endTime time.Time, customer booking.CustomerInput) (*booking.Appointment, *booking.Customer, error)
	ListDayAppointments(ctx context.Context, tenant *booking.Tenant, staffID uuid.UUID, date string) ([]booking.Appointment, error)
	GetAppointment(ctx context.Context, tenant *booking.Tenant, id uuid.UUID) (*booking.Appointment, error)
}

func resolveTenant(w http.ResponseWriter, r *http.Request, svc BookingService) (*booking.Tenant, bool) {
	slug := chi.URLParam(r, "slug")
	tenant, err := svc.GetTenant(r.Context(), slug)
	if err != nil {
		writeBookingError(w, err)
		return nil, false
	}
	return tenant, true
}

func getTenantHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenant": toTenantResponse(tenant)})
	}
}

func listServicesHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		services, err := svc.ListServices(r.Context(), tenant.ID)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := make([]ServiceResponse, 0, len(services))
		for _, s := range services {
			resp = append(resp, ServiceResponse{
				ID:              s.ID,
				Name:            s.Name,
				Description:     s.Description,
				DurationMinutes: s.DurationMinutes,
				PriceCents:      s.PriceCents,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": resp})
	}
}

func listStaffHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		staff, err := svc.ListStaff(r.Context(), tenant.ID)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := make([]StaffResponse, 0, len(staff))
		for _, m := range staff {
			links := make([]StaffServiceResponse, 0, len(m.Services))
			for _, link := range m.Services {
				links = append(links, StaffServiceResponse{
					ServiceID:               link.ServiceID,
					DurationMinutesOverride: link.DurationMinutesOverride,
					PriceCentsOverride:      link.PriceCentsOverride,
				})
			}
			resp = append(resp, StaffResponse{
				ID:       m.ID,
				Name:     m.Name,
				Bio:      m.Bio,
				Services: links,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"staff": resp})
	}
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		q := r.URL.Query()
		staffParam := q.Get("staff_id")
		serviceParam := q.Get("service_id")
		date := q.Get("date")
		if staffParam == "" || serviceParam == "" || date == "" {
			writeError(w, http.StatusBadRequest, "missing_parameters",
				"staff_id, service_id and date are required")
			return
		}

		staffID, err := uuid.Parse(staffParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(serviceParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}

		slots, err := svc.ComputeSlots(r.Context(), tenant, staffID, serviceID, date)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": resp})
	}
}

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeError(w, http.StatusBadRequest, "missing_times",
				"start_time and end_time are required ISO-8601 instants")
			return
		}

		appt, cust, err := svc.CreateAppointment(r.Context(), tenant, staffID, serviceID,
			req.StartTime, req.EndTime, booking.CustomerInput{
				Name:  req.Customer.Name,
				Email: req.Customer.Email,
				Phone: req.Customer.Phone,
				Notes: req.Customer.Notes,
			})
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			Appointment: toAppointmentResponse(appt),
			Customer: CustomerResponse{
				ID:    cust.ID,
				Name:  cust.Name,
				Email: cust.Email,
				Phone: cust.Phone,
			},
		})
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		q := r.URL.Query()
		staffParam := q.Get("staff_id")
		date := q.Get("date")
		if staffParam == "" || date == "" {
			writeError(w, http.StatusBadRequest, "missing_parameters", "staff_id and date are required")
			return
		}
		staffID, err := uuid.Parse(staffParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}

		appts, err := svc.ListDayAppointments(r.Context(), tenant, staffID, date)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": resp})
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := resolveTenant(w, r, svc)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), tenant, id)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointment": toAppointmentResponse(appt)})
	}
}
