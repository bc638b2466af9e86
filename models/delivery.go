package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryStatus represents the lifecycle state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusAssigned, DeliveryStatusPickedUp,
		DeliveryStatusInTransit, DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Active reports whether the driver is carrying the order (ETA is tracked).
func (s DeliveryStatus) Active() bool {
	return s == DeliveryStatusPickedUp || s == DeliveryStatusInTransit
}

// LocationStamp is the last known driver position for a delivery.
type LocationStamp struct {
	Coordinates [2]float64 `json:"coordinates"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Party is one side of the handoff (restaurant or customer).
type Party struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Location GeoPoint `json:"location"`
	Phone    string   `json:"phone,omitempty"`
}

// Delivery is one physical handoff of an order from restaurant to customer.
// DriverID is nil until dispatch assigns a driver.
type Delivery struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"orderId"`
	Restaurant Party          `json:"restaurant"`
	Customer   Party          `json:"customer"`
	DriverID   *string        `json:"driverId,omitempty"`
	Status     DeliveryStatus `json:"status"`

	DistanceKm       float64         `json:"distance"`
	EstimatedMinutes int             `json:"estimatedDeliveryTime"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee"`
	DriverEarnings   decimal.Decimal `json:"driverEarnings"`

	CurrentETA         *int           `json:"currentETA,omitempty"`
	LastLocationUpdate *LocationStamp `json:"lastLocationUpdate,omitempty"`
	AssignedAt         *time.Time     `json:"assignedAt,omitempty"`
	PickedUpAt         *time.Time     `json:"pickedUpAt,omitempty"`
	DeliveredAt        *time.Time     `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	ActualDeliveryTime *int           `json:"actualDeliveryTime,omitempty"`
	CancellationReason *string        `json:"cancellationReason,omitempty"`
	Notes              *string        `json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssignedTo reports whether driverID is the delivery's driver.
func (d *Delivery) AssignedTo(driverID string) bool {
	return d != nil && d.DriverID != nil && *d.DriverID != "" && *d.DriverID == driverID
}

// Clone returns a copy safe to mutate without touching d.
func (d *Delivery) Clone() *Delivery {
	if d == nil {
		return nil
	}
	c := *d
	c.DriverID = clonePtr(d.DriverID)
	c.CurrentETA = clonePtr(d.CurrentETA)
	c.AssignedAt = clonePtr(d.AssignedAt)
	c.PickedUpAt = clonePtr(d.PickedUpAt)
	c.DeliveredAt = clonePtr(d.DeliveredAt)
	c.CancelledAt = clonePtr(d.CancelledAt)
	c.ActualDeliveryTime = clonePtr(d.ActualDeliveryTime)
	c.CancellationReason = clonePtr(d.CancellationReason)
	c.Notes = clonePtr(d.Notes)
	if d.LastLocationUpdate != nil {
		l := *d.LastLocationUpdate
		c.LastLocationUpdate = &l
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
