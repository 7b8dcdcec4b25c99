package wire

import (
	"transport-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(r chi.Router, bookingHandler *adaptor.BookingHandler, log *zap.Logger) {
	// POST /api/bookings - idempotent intake
	r.Post("/bookings", bookingHandler.CreateBooking)

	r.Get("/bookings/{id}", bookingHandler.GetBooking)
	r.Get("/bookings/{id}/history", bookingHandler.ListHistory)

	// Role rules per edge are enforced by the service.
	r.Post("/bookings/{id}/transitions", bookingHandler.Transition)
}
