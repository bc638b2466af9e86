// Package protocol defines the closed set of real-time events exchanged with
// tracking clients and their payload shapes.
package protocol

import (
	"encoding/json"
	"time"

	"deliveryTracking/internal/eta"
	"deliveryTracking/models"
)

// Event names on the wire.
const (
	EventLocationUpdate         = "location_update"
	EventDeliveryStatusUpdate   = "delivery_status_update"
	EventTrackDelivery          = "track_delivery"
	EventStopTracking           = "stop_tracking"
	EventDeliveryTrackingUpdate = "delivery_tracking_update"
	EventError                  = "error"
)

// Envelope wraps every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server->client message ready for encoding.
type Outbound struct {
	Event string
	Data  any
}

// MarshalJSON renders the message as an Envelope.
func (o Outbound) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(o.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: o.Event, Data: data})
}

// LocationUpdateRequest is a driver position push.
type LocationUpdateRequest struct {
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	DeliveryID string   `json:"deliveryId,omitempty" validate:"omitempty,max=128"`
}

// Point returns the pushed coordinates. Only valid after Decode succeeded.
func (r LocationUpdateRequest) Point() models.GeoPoint {
	return models.NewGeoPoint(*r.Latitude, *r.Longitude)
}

// StatusUpdateRequest is a driver-initiated status change.
type StatusUpdateRequest struct {
	DeliveryID string  `json:"deliveryId" validate:"required,max=128"`
	Status     string  `json:"status" validate:"required,oneof=pending assigned picked_up in_transit delivered cancelled"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// TrackRequest names the delivery for track_delivery and stop_tracking.
type TrackRequest struct {
	DeliveryID string `json:"deliveryId" validate:"required,max=128"`
}

// Coordinates is the latitude/longitude pair sent to subscribers.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func CoordinatesOf(p models.GeoPoint) Coordinates {
	return Coordinates{Latitude: p.Lat(), Longitude: p.Lng()}
}

// LocationBroadcast is the payload of location_update and delivery_tracking_update.
// OrderID is only populated for the customer-room variant.
type LocationBroadcast struct {
	DeliveryID       string                `json:"deliveryId"`
	OrderID          string                `json:"orderId,omitempty"`
	Location         Coordinates           `json:"location"`
	Timestamp        time.Time             `json:"timestamp"`
	Status           models.DeliveryStatus `json:"status"`
	EstimatedArrival eta.Estimate          `json:"estimatedArrival"`
}

// StatusBroadcast is the payload of delivery_status_update.
type StatusBroadcast struct {
	DeliveryID string                `json:"deliveryId"`
	OrderID    string                `json:"orderId"`
	Status     models.DeliveryStatus `json:"status"`
	Timestamp  time.Time             `json:"timestamp"`
}

// ErrorPayload is sent only to the connection whose request failed.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func Location(p LocationBroadcast) Outbound {
	return Outbound{Event: EventLocationUpdate, Data: p}
}

func TrackingUpdate(p LocationBroadcast) Outbound {
	return Outbound{Event: EventDeliveryTrackingUpdate, Data: p}
}

func Status(p StatusBroadcast) Outbound {
	return Outbound{Event: EventDeliveryStatusUpdate, Data: p}
}

func Error(code, message string) Outbound {
	return Outbound{Event: EventError, Data: ErrorPayload{Message: message, Code: code}}
}
