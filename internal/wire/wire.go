// internal/wire/wire.go
package wire

import (
	"net/http"

	"transport-booking/internal/adaptor"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the HTTP surface
type App struct {
	Router *chi.Mux
}

// Wiring builds handlers and routes on top of the use case layer
func Wiring(service *usecase.Service, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router: setupRouter(handler, logger),
	}
}

func setupRouter(handler *adaptor.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Tenant(logger))
		r.Use(middleware.Actor(logger))

		wireBooking(r, handler.Booking, logger)
		wireDispatch(r, handler.Dispatch, logger)
		wireOutbox(r, handler.Outbox, logger)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
