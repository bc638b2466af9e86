package tracking

import (
	"context"
	"math"
	"time"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/events"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/models"
)

// DefaultCancellationReason is stored when a driver cancels without notes.
const DefaultCancellationReason = "Cancelled by delivery personnel"

const publishTimeout = 3 * time.Second

// driverTransitions lists the edges a driver may take. Assignment itself is
// made by dispatch, never through this path.
var driverTransitions = map[models.DeliveryStatus][]models.DeliveryStatus{
	models.DeliveryStatusAssigned:  {models.DeliveryStatusPickedUp, models.DeliveryStatusCancelled},
	models.DeliveryStatusPickedUp:  {models.DeliveryStatusInTransit, models.DeliveryStatusCancelled},
	models.DeliveryStatusInTransit: {models.DeliveryStatusDelivered, models.DeliveryStatusCancelled},
}

// CanTransition reports whether a driver may move a delivery from -> to.
func CanTransition(from, to models.DeliveryStatus) bool {
	for _, next := range driverTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusTransitioner applies driver-initiated status changes.
type StatusTransitioner struct {
	deps  *Deps
	locks *keyedMutex
}

func (h *StatusTransitioner) Handle(ctx context.Context, conn *Connection, req protocol.StatusUpdateRequest) error {
	if err := auth.RequireRole(conn.Principal, auth.RoleDriver); err != nil {
		return err
	}
	target := models.DeliveryStatus(req.Status)
	if !target.Valid() {
		return apperr.Newf(apperr.CodeValidation, "unknown status %q", req.Status)
	}

	d, err := h.apply(ctx, conn.Principal.SubjectID, req.DeliveryID, target, req.Notes)
	if err != nil {
		return err
	}

	at := h.deps.Clock.Now()
	if ts := statusTimestamp(d); ts != nil {
		at = *ts
	}
	broadcast(h.deps, protocol.Status(protocol.StatusBroadcast{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		Status:     d.Status,
		Timestamp:  at,
	}), rooms.DeliveryRoom(d.ID), rooms.CustomerRoom(d.Customer.ID), rooms.RestaurantRoom(d.Restaurant.ID))

	h.publish(ctx, d, at)
	return nil
}

func (h *StatusTransitioner) apply(ctx context.Context, driverID, deliveryID string, target models.DeliveryStatus, notes *string) (*models.Delivery, error) {
	unlock := h.locks.Lock(deliveryID)
	defer unlock()

	d, err := h.deps.Store.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		return nil, internalError(err, "failed to load delivery")
	}
	if d == nil {
		return nil, apperr.New(apperr.CodeNotFound, "delivery not found")
	}
	if !d.AssignedTo(driverID) {
		return nil, apperr.New(apperr.CodeAuthorization, "not the assigned driver for this delivery")
	}
	if !CanTransition(d.Status, target) {
		return nil, apperr.Newf(apperr.CodeStateConflict, "cannot change status from %s to %s", d.Status, target)
	}

	now := h.deps.Clock.Now()
	next := d.Clone()
	next.Status = target
	next.UpdatedAt = now
	if notes != nil && *notes != "" {
		n := *notes
		next.Notes = &n
	}
	releaseDriver := false
	switch target {
	case models.DeliveryStatusPickedUp:
		next.PickedUpAt = &now
	case models.DeliveryStatusDelivered:
		next.DeliveredAt = &now
		if next.AssignedAt != nil {
			minutes := int(math.Round(now.Sub(*next.AssignedAt).Minutes()))
			next.ActualDeliveryTime = &minutes
		}
		releaseDriver = true
	case models.DeliveryStatusCancelled:
		next.CancelledAt = &now
		reason := DefaultCancellationReason
		if notes != nil && *notes != "" {
			reason = *notes
		}
		next.CancellationReason = &reason
		releaseDriver = true
	}

	if err := h.deps.Store.SaveDelivery(ctx, next); err != nil {
		return nil, internalError(err, "failed to save delivery")
	}
	if releaseDriver {
		h.releaseDriver(ctx, driverID)
	}
	return next, nil
}

// releaseDriver marks the driver available again. The delivery is already
// persisted, so failures here are logged rather than returned.
func (h *StatusTransitioner) releaseDriver(ctx context.Context, driverID string) {
	if err := h.deps.Store.SetDriverAvailability(ctx, driverID, true); err != nil {
		h.deps.Logger.Error(ctx, "failed to reset driver availability", err)
	}
}

func (h *StatusTransitioner) publish(ctx context.Context, d *models.Delivery, at time.Time) {
	if h.deps.Events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.deps.Events.StatusChanged(pctx, events.StatusChangedFrom(d, at)); err != nil {
		h.deps.Logger.Warn(ctx, "status change event not published", err)
	}
}

// statusTimestamp is the entry time of d's current status, when it has one.
func statusTimestamp(d *models.Delivery) *time.Time {
	switch d.Status {
	case models.DeliveryStatusAssigned:
		return d.AssignedAt
	case models.DeliveryStatusPickedUp:
		return d.PickedUpAt
	case models.DeliveryStatusDelivered:
		return d.DeliveredAt
	case models.DeliveryStatusCancelled:
		return d.CancelledAt
	}
	return nil
}
