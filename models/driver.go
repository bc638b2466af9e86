package models

import "time"

// DriverPresence is the live record of a delivery driver.
// CurrentLocation is only written by that driver's own connection.
type DriverPresence struct {
	UserID                 string     `json:"userId"`
	Name                   string     `json:"name"`
	CurrentLocation        *GeoPoint  `json:"currentLocation,omitempty"`
	IsAvailable            bool       `json:"isAvailable"`
	LastLocationUpdateTime *time.Time `json:"lastLocationUpdateTime,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// LocationHistoryEntry is an append-only position sample.
// DeliveryID is nil for pings sent between deliveries.
type LocationHistoryEntry struct {
	ID          string    `json:"id"`
	DriverID    string    `json:"driverId"`
	DeliveryID  *string   `json:"deliveryId,omitempty"`
	Coordinates GeoPoint  `json:"coordinates"`
	Timestamp   time.Time `json:"timestamp"`
}
