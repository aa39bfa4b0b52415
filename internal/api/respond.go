package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/galdino/barber-booking/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeBookingError maps domain sentinel errors to HTTP responses.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "tenant_not_found", err.Error())
	case errors.Is(err, booking.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "staff_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "the slot is no longer available, refresh availability")
	case errors.Is(err, booking.ErrStaffBeingBooked):
		writeError(w, http.StatusConflict, "staff_being_booked", "another booking is in flight, please retry shortly")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
