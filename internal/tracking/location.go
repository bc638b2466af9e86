package tracking

import (
	"context"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/eta"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/models"
)

// LocationIngester applies driver position pushes.
type LocationIngester struct {
	deps  *Deps
	locks *keyedMutex
}

// Handle records the driver's position and, when the push names a delivery
// assigned to that driver, updates the delivery and fans the position out.
// An unknown delivery is a silent no-op beyond presence and history.
func (h *LocationIngester) Handle(ctx context.Context, conn *Connection, req protocol.LocationUpdateRequest) error {
	if err := auth.RequireRole(conn.Principal, auth.RoleDriver); err != nil {
		return err
	}
	if req.Latitude == nil || req.Longitude == nil || !models.ValidCoordinates(*req.Latitude, *req.Longitude) {
		return apperr.New(apperr.CodeValidation, "latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	driverID := conn.Principal.SubjectID
	point := req.Point()
	now := h.deps.Clock.Now()

	if err := h.deps.Store.UpsertDriverLocation(ctx, driverID, point, now); err != nil {
		return internalError(err, "failed to update driver location")
	}
	if h.deps.GeoIndex != nil {
		if err := h.deps.GeoIndex.UpdateDriver(ctx, driverID, point); err != nil {
			h.deps.Logger.Warn(ctx, "driver geo mirror update failed", err)
		}
	}

	entry := &models.LocationHistoryEntry{DriverID: driverID, Coordinates: point, Timestamp: now}
	if req.DeliveryID != "" {
		id := req.DeliveryID
		entry.DeliveryID = &id
	}
	if err := h.deps.Store.AppendLocationHistory(ctx, entry); err != nil {
		h.deps.Logger.Warn(ctx, "location history append failed", err)
	}

	if req.DeliveryID == "" {
		return nil
	}
	updated, err := h.applyToDelivery(ctx, driverID, req.DeliveryID, point)
	if err != nil || updated == nil {
		return err
	}

	payload := protocol.LocationBroadcast{
		DeliveryID:       updated.delivery.ID,
		Location:         protocol.CoordinatesOf(point),
		Timestamp:        now,
		Status:           updated.delivery.Status,
		EstimatedArrival: updated.estimate,
	}
	broadcast(h.deps, protocol.Location(payload),
		rooms.DeliveryRoom(updated.delivery.ID), rooms.CustomerRoom(updated.delivery.Customer.ID))
	payload.OrderID = updated.delivery.OrderID
	broadcast(h.deps, protocol.TrackingUpdate(payload), rooms.CustomerRoom(updated.delivery.Customer.ID))
	return nil
}

type locationResult struct {
	delivery *models.Delivery
	estimate eta.Estimate
}

// applyToDelivery runs the read-modify-write under the delivery's lock.
// A nil result with nil error means there is nothing to broadcast.
func (h *LocationIngester) applyToDelivery(ctx context.Context, driverID, deliveryID string, point models.GeoPoint) (*locationResult, error) {
	unlock := h.locks.Lock(deliveryID)
	defer unlock()

	d, err := h.deps.Store.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		return nil, internalError(err, "failed to load delivery")
	}
	if d == nil {
		h.deps.Logger.Debug(ctx, "location push for unknown delivery ignored")
		return nil, nil
	}
	if !d.AssignedTo(driverID) {
		return nil, apperr.New(apperr.CodeAuthorization, "not the assigned driver for this delivery")
	}

	now := h.deps.Clock.Now()
	next := d.Clone()
	next.LastLocationUpdate = &models.LocationStamp{Coordinates: point.Coordinates, Timestamp: now}
	est := h.deps.Estimator.Estimate(next, point)
	if est.Degraded() {
		h.deps.Logger.Debug(ctx, "eta unavailable for location push")
	} else if next.Status.Active() {
		next.CurrentETA = est.EstimatedMinutes
	}
	next.UpdatedAt = now
	if err := h.deps.Store.SaveDelivery(ctx, next); err != nil {
		return nil, internalError(err, "failed to save delivery")
	}
	return &locationResult{delivery: next, estimate: est}, nil
}
