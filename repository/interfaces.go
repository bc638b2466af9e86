package repository

import (
	"context"
	"time"

	"deliveryTracking/models"
)

// Store is the durable state the tracking core reads and writes.
// Finders return (nil, nil) when the record does not exist.
type Store interface {
	FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error)
	FindDeliveryByOrderID(ctx context.Context, orderID string) (*models.Delivery, error)
	SaveDelivery(ctx context.Context, d *models.Delivery) error

	FindDriverByUserID(ctx context.Context, userID string) (*models.DriverPresence, error)
	SetDriverAvailability(ctx context.Context, userID string, available bool) error
	UpsertDriverLocation(ctx context.Context, userID string, loc models.GeoPoint, at time.Time) error
	ListLocatedDrivers(ctx context.Context, onlyAvailable bool) ([]*models.DriverPresence, error)

	AppendLocationHistory(ctx context.Context, e *models.LocationHistoryEntry) error
}

// DeliveryRepositoryI defines operations on Delivery entities.
type DeliveryRepositoryI interface {
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error)
	FindDeliveryByOrderID(ctx context.Context, orderID string) (*models.Delivery, error)
	SaveDelivery(ctx context.Context, d *models.Delivery) error
	ListDeliveriesByDriver(ctx context.Context, driverID string, statuses ...models.DeliveryStatus) ([]*models.Delivery, error)
}

// DriverRepositoryI defines operations on DriverPresence entities.
type DriverRepositoryI interface {
	CreateDriver(ctx context.Context, p *models.DriverPresence) error
	FindDriverByUserID(ctx context.Context, userID string) (*models.DriverPresence, error)
	SetDriverAvailability(ctx context.Context, userID string, available bool) error
	UpsertDriverLocation(ctx context.Context, userID string, loc models.GeoPoint, at time.Time) error
	ListLocatedDrivers(ctx context.Context, onlyAvailable bool) ([]*models.DriverPresence, error)
}

// LocationHistoryRepositoryI defines the append-only position log.
type LocationHistoryRepositoryI interface {
	AppendLocationHistory(ctx context.Context, e *models.LocationHistoryEntry) error
	ListLocationHistory(ctx context.Context, driverID string, limit int) ([]*models.LocationHistoryEntry, error)
}
