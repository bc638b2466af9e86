package tracking

import (
	"context"
	"strings"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/models"
)

// SubscriptionManager joins and leaves delivery tracking rooms.
type SubscriptionManager struct {
	deps *Deps
}

// CanTrack reports whether p may follow d over the socket protocol.
func CanTrack(p *auth.Principal, d *models.Delivery) bool {
	if p.IsAnonymous() || d == nil {
		return false
	}
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return p.SubjectID == d.Customer.ID
	case auth.RoleRestaurant:
		return p.SubjectID == d.Restaurant.ID
	case auth.RoleDriver:
		return d.AssignedTo(p.SubjectID)
	}
	return false
}

// Subscribe authorizes conn against the delivery, joins its room and sends
// the current state to conn alone.
func (m *SubscriptionManager) Subscribe(ctx context.Context, conn *Connection, deliveryID string) error {
	if conn.Principal.IsAnonymous() {
		return apperr.New(apperr.CodeAuthorization, "authentication required to track deliveries")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return apperr.New(apperr.CodeValidation, "deliveryId is required")
	}
	d, err := m.deps.Store.FindDeliveryByID(ctx, deliveryID)
	if err != nil {
		return internalError(err, "failed to load delivery")
	}
	if d == nil {
		return apperr.New(apperr.CodeNotFound, "delivery not found")
	}
	if !CanTrack(conn.Principal, d) {
		return apperr.New(apperr.CodeAuthorization, "not authorized to track this delivery")
	}

	m.deps.Rooms.Join(conn.client, rooms.DeliveryRoom(d.ID))
	m.deps.Rooms.Send(conn.client, m.snapshot(ctx, d))
	return nil
}

// Unsubscribe leaves the delivery's room. It is idempotent and needs no authorization.
func (m *SubscriptionManager) Unsubscribe(conn *Connection, deliveryID string) {
	m.deps.Rooms.Leave(conn.client, rooms.DeliveryRoom(strings.TrimSpace(deliveryID)))
}

// snapshot is a location_update when the assigned driver has a known
// position, a status-only delivery_status_update otherwise.
func (m *SubscriptionManager) snapshot(ctx context.Context, d *models.Delivery) protocol.Outbound {
	if d.DriverID != nil && *d.DriverID != "" {
		p, err := m.deps.Store.FindDriverByUserID(ctx, *d.DriverID)
		if err != nil {
			m.deps.Logger.Warn(ctx, "driver lookup for snapshot failed", err)
		}
		if p != nil && p.CurrentLocation != nil {
			ts := m.deps.Clock.Now()
			if p.LastLocationUpdateTime != nil {
				ts = *p.LastLocationUpdateTime
			}
			return protocol.Location(protocol.LocationBroadcast{
				DeliveryID:       d.ID,
				Location:         protocol.CoordinatesOf(*p.CurrentLocation),
				Timestamp:        ts,
				Status:           d.Status,
				EstimatedArrival: m.deps.Estimator.Estimate(d, *p.CurrentLocation),
			})
		}
	}
	return protocol.Status(protocol.StatusBroadcast{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		Status:     d.Status,
		Timestamp:  d.UpdatedAt,
	})
}
