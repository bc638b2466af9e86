package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/tracking"
	"deliveryTracking/models"
)

const (
	defaultNearbyRadiusKm = 5.0
	maxNearbyRadiusKm     = 100.0
	defaultNearbyLimit    = 20
	checkTimeout          = 2 * time.Second
)

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(h.deps.Checks))
	for name, check := range h.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			h.deps.Logger.Warn(h.deps.Logger.WithField(r.Context(), "check", name), "health check failed", err)
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}
	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.deps.Tracking != nil {
		body["connections"] = h.deps.Tracking.Rooms().Connections()
	}
	writeJSON(w, status, body)
}

func (h *handlers) trackDelivery(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, tracking.Lookup{DeliveryID: chi.URLParam(r, "deliveryId")})
}

func (h *handlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, tracking.Lookup{OrderID: chi.URLParam(r, "orderId")})
}

func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request, l tracking.Lookup) {
	view, err := h.deps.Tracking.Snapshot(r.Context(), l)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) nearbyDrivers(w http.ResponseWriter, r *http.Request) {
	if h.deps.Nearby == nil {
		writeError(r.Context(), h.deps.Logger, w, apperr.New(apperr.CodeDependency, "driver index not configured"))
		return
	}
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil || !models.ValidCoordinates(lat, lng) {
		writeError(r.Context(), h.deps.Logger, w, apperr.New(apperr.CodeValidation, "lat and lng must be valid coordinates"))
		return
	}
	radius := defaultNearbyRadiusKm
	if v := q.Get("radiusKm"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > maxNearbyRadiusKm {
			writeError(r.Context(), h.deps.Logger, w, apperr.Newf(apperr.CodeValidation, "radiusKm must be in (0, %.0f]", maxNearbyRadiusKm))
			return
		}
		radius = parsed
	}
	limit, err := parseLimit(q.Get("limit"), defaultNearbyLimit)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, err)
		return
	}

	found, err := h.deps.Nearby.Nearby(r.Context(), models.NewGeoPoint(lat, lng), radius, limit)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, apperr.Wrap(apperr.CodeDependency, err, "nearby driver lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": found})
}

func (h *handlers) driverLocations(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.ownDriver(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, err)
		return
	}
	entries, err := h.deps.Drivers.ListLocationHistory(r.Context(), driverID, limit)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, apperr.Wrap(apperr.CodeInternal, err, "failed to load location history"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": entries})
}

func (h *handlers) driverDeliveries(w http.ResponseWriter, r *http.Request) {
	driverID, ok := h.ownDriver(w, r)
	if !ok {
		return
	}
	var statuses []models.DeliveryStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := models.DeliveryStatus(strings.TrimSpace(s))
			if !st.Valid() {
				writeError(r.Context(), h.deps.Logger, w, apperr.Newf(apperr.CodeValidation, "unknown status %q", s))
				return
			}
			statuses = append(statuses, st)
		}
	}
	list, err := h.deps.Drivers.ListDeliveriesByDriver(r.Context(), driverID, statuses...)
	if err != nil {
		writeError(r.Context(), h.deps.Logger, w, apperr.Wrap(apperr.CodeInternal, err, "failed to load deliveries"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": list})
}

// ownDriver resolves {driverId}; drivers may only read their own records.
func (h *handlers) ownDriver(w http.ResponseWriter, r *http.Request) (string, bool) {
	driverID := strings.TrimSpace(chi.URLParam(r, "driverId"))
	p, _ := auth.FromContext(r.Context())
	if p.Is(auth.RoleDriver) && p.SubjectID != driverID {
		writeError(r.Context(), h.deps.Logger, w, apperr.New(apperr.CodeAuthorization, "drivers may only read their own records"))
		return "", false
	}
	if h.deps.Drivers == nil {
		writeError(r.Context(), h.deps.Logger, w, apperr.New(apperr.CodeDependency, "driver store not configured"))
		return "", false
	}
	return driverID, true
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.New(apperr.CodeValidation, "limit must be a positive integer")
	}
	return n, nil
}
