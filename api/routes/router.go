package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockroomhq/stockroom-backend/api/controllers"
	"github.com/stockroomhq/stockroom-backend/api/middleware"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	pkgredis "github.com/stockroomhq/stockroom-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Idempotency is optional;
// when the store is nil the mutation routes run without replay protection.
type Deps struct {
	Logger           *logger.Logger
	Health           *controllers.HealthController
	Inventory        *controllers.InventoryController
	Reservations     *controllers.ReservationsController
	IdempotencyStore pkgredis.IdempotencyStore
}

func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", deps.Inventory.ListLowStock)
			r.Get("/{itemID}/availability", deps.Inventory.GetAvailability)
		})

		r.Group(func(r chi.Router) {
			if deps.IdempotencyStore != nil {
				r.Use(middleware.Idempotency(deps.IdempotencyStore, deps.Logger))
			}

			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", deps.Reservations.Create)
				r.Get("/{reservationID}", deps.Reservations.Get)
				r.Post("/{reservationID}/confirm", deps.Reservations.Confirm)
				r.Post("/{reservationID}/release", deps.Reservations.Release)
			})

			r.Route("/admin/inventory", func(r chi.Router) {
				r.Post("/", deps.Inventory.CreateItem)
				r.Post("/{itemID}/adjust", deps.Inventory.AdjustStock)
			})
		})
	})

	return r
}
