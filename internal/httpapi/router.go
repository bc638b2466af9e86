// Package httpapi serves the HTTP surface: the websocket upgrade, the
// anonymous tracking read path, driver queries and operational endpoints.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/presence"
	"deliveryTracking/internal/tracking"
	"deliveryTracking/models"
)

// DriverStore is the read side the driver endpoints query.
type DriverStore interface {
	ListLocationHistory(ctx context.Context, driverID string, limit int) ([]*models.LocationHistoryEntry, error)
	ListDeliveriesByDriver(ctx context.Context, driverID string, statuses ...models.DeliveryStatus) ([]*models.Delivery, error)
}

// Check is one named readiness probe.
type Check func(ctx context.Context) error

type Deps struct {
	Tracking *tracking.Service
	WS       http.Handler
	Verifier auth.Verifier
	Nearby   presence.Index
	Drivers  DriverStore
	Checks   map[string]Check
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handlers{deps: d}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		recoverer(d.Logger),
		requestLogger(d.Logger),
	)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}

	r.Route("/api/tracking", func(r chi.Router) {
		r.Get("/deliveries/{deliveryId}", h.trackDelivery)
		r.Get("/orders/{orderId}", h.trackOrder)
	})

	r.Route("/api/drivers", func(r chi.Router) {
		r.Use(authenticate(d.Verifier))
		r.With(requireAdmin).Get("/nearby", h.nearbyDrivers)
		r.With(requireRole(auth.RoleAdmin, auth.RoleDriver)).Get("/{driverId}/locations", h.driverLocations)
		r.With(requireRole(auth.RoleAdmin, auth.RoleDriver)).Get("/{driverId}/deliveries", h.driverDeliveries)
	})
	return r
}
