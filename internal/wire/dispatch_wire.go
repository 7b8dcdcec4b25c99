package wire

import (
	"transport-booking/internal/adaptor"
	"transport-booking/internal/data/entity"
	"transport-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireDispatch(r chi.Router, dispatchHandler *adaptor.DispatchHandler, log *zap.Logger) {
	r.Post("/bookings/{id}/offers", dispatchHandler.Offer)
	r.Get("/bookings/{id}/assignment", dispatchHandler.GetAssignment)

	r.Route("/assignments/{id}", func(r chi.Router) {
		r.Get("/activity", dispatchHandler.ListActivity)

		// Driver actions, ownership is checked against the assignment.
		r.Post("/accept", dispatchHandler.Accept)
		r.Post("/decline", dispatchHandler.Decline)
		r.Post("/start", dispatchHandler.Start)
		r.Post("/complete", dispatchHandler.Complete)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(log, entity.RoleDriver, entity.RoleDispatcher, entity.RoleAdmin))

		r.Put("/drivers/{id}/availability", dispatchHandler.SetAvailability)
	})
}
