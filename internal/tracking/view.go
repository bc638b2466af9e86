package tracking

import (
	"context"
	"strings"
	"time"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/eta"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/models"
)

// Lookup selects a delivery by its own id or by the order it fulfils.
type Lookup struct {
	DeliveryID string
	OrderID    string
}

// PartyView is the public projection of a restaurant or customer.
type PartyView struct {
	Name     string               `json:"name,omitempty"`
	Address  string               `json:"address,omitempty"`
	Location protocol.Coordinates `json:"location"`
}

// TrackingView is the read model shared by socket snapshots and the
// unauthenticated HTTP read path. It never carries contact details.
type TrackingView struct {
	DeliveryID         string                `json:"deliveryId"`
	OrderID            string                `json:"orderId"`
	Status             models.DeliveryStatus `json:"status"`
	Restaurant         PartyView             `json:"restaurant"`
	Destination        PartyView             `json:"destination"`
	DriverAssigned     bool                  `json:"driverAssigned"`
	DriverLocation     *protocol.Coordinates `json:"driverLocation"`
	LastLocationUpdate *time.Time            `json:"lastLocationUpdate"`
	CurrentETA         *int                  `json:"currentETA"`
	EstimatedArrival   eta.Estimate          `json:"estimatedArrival"`
	AssignedAt         *time.Time            `json:"assignedAt,omitempty"`
	PickedUpAt         *time.Time            `json:"pickedUpAt,omitempty"`
	DeliveredAt        *time.Time            `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time            `json:"cancelledAt,omitempty"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// Snapshot projects the delivery and its driver's last known position.
func (s *Service) Snapshot(ctx context.Context, l Lookup) (*TrackingView, error) {
	var (
		d   *models.Delivery
		err error
	)
	switch {
	case strings.TrimSpace(l.DeliveryID) != "":
		d, err = s.deps.Store.FindDeliveryByID(ctx, strings.TrimSpace(l.DeliveryID))
	case strings.TrimSpace(l.OrderID) != "":
		d, err = s.deps.Store.FindDeliveryByOrderID(ctx, strings.TrimSpace(l.OrderID))
	default:
		return nil, apperr.New(apperr.CodeValidation, "delivery id or order id is required")
	}
	if err != nil {
		return nil, internalError(err, "failed to load delivery")
	}
	if d == nil {
		return nil, apperr.New(apperr.CodeNotFound, "delivery not found")
	}

	v := &TrackingView{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		Status:     d.Status,
		Restaurant: PartyView{
			Name:     d.Restaurant.Name,
			Address:  d.Restaurant.Address,
			Location: protocol.CoordinatesOf(d.Restaurant.Location),
		},
		Destination:    PartyView{Location: protocol.CoordinatesOf(d.Customer.Location)},
		DriverAssigned: d.DriverID != nil && *d.DriverID != "",
		CurrentETA:     d.CurrentETA,
		AssignedAt:     d.AssignedAt,
		PickedUpAt:     d.PickedUpAt,
		DeliveredAt:    d.DeliveredAt,
		CancelledAt:    d.CancelledAt,
		UpdatedAt:      d.UpdatedAt,
	}

	loc, at := s.lastKnownLocation(ctx, d)
	if loc == nil {
		return v, nil
	}
	c := protocol.CoordinatesOf(*loc)
	v.DriverLocation = &c
	v.LastLocationUpdate = at
	if !d.Status.Terminal() {
		v.EstimatedArrival = s.deps.Estimator.Estimate(d, *loc)
	}
	return v, nil
}

// lastKnownLocation prefers the live driver presence and falls back to the
// position last applied to the delivery.
func (s *Service) lastKnownLocation(ctx context.Context, d *models.Delivery) (*models.GeoPoint, *time.Time) {
	if d.DriverID != nil && *d.DriverID != "" && !d.Status.Terminal() {
		p, err := s.deps.Store.FindDriverByUserID(ctx, *d.DriverID)
		if err != nil {
			s.deps.Logger.Warn(ctx, "driver lookup for tracking view failed", err)
		} else if p != nil && p.CurrentLocation != nil {
			return p.CurrentLocation, p.LastLocationUpdateTime
		}
	}
	if d.LastLocationUpdate != nil {
		p := models.GeoPoint{Type: "Point", Coordinates: d.LastLocationUpdate.Coordinates}
		at := d.LastLocationUpdate.Timestamp
		return &p, &at
	}
	return nil, nil
}
