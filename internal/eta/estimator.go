package eta

import (
	"math"
	"time"

	"deliveryTracking/internal/clock"
	"deliveryTracking/internal/geo"
	"deliveryTracking/models"
)

// DefaultAverageSpeedKmh is a tuning constant, not a measured speed.
const DefaultAverageSpeedKmh = 20.0

// Estimate is the ETA projection sent to subscribers. A degraded estimate has
// every field nil.
type Estimate struct {
	EstimatedMinutes     *int       `json:"estimatedMinutes"`
	EstimatedArrivalTime *time.Time `json:"estimatedArrivalTime"`
	RemainingDistance    *float64   `json:"remainingDistance"`
}

// Degraded reports whether the estimate carries no data.
func (e Estimate) Degraded() bool {
	return e.EstimatedMinutes == nil
}

type Estimator struct {
	speedKmh float64
	clock    clock.Clock
}

func New(speedKmh float64, clk clock.Clock) *Estimator {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		speedKmh = DefaultAverageSpeedKmh
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Estimator{speedKmh: speedKmh, clock: clk}
}

// Destination is the restaurant while the driver is still inbound to pickup,
// the customer otherwise.
func Destination(d *models.Delivery) models.GeoPoint {
	if d.Status == models.DeliveryStatusAssigned {
		return d.Restaurant.Location
	}
	return d.Customer.Location
}

// Estimate never fails: invalid input yields a degraded (all-nil) Estimate.
func (e *Estimator) Estimate(d *models.Delivery, current models.GeoPoint) Estimate {
	if d == nil || !current.Valid() {
		return Estimate{}
	}
	dest := Destination(d)
	if !dest.Valid() {
		return Estimate{}
	}
	km := geo.HaversineKm(current.Lat(), current.Lng(), dest.Lat(), dest.Lng())
	if math.IsNaN(km) || math.IsInf(km, 0) {
		return Estimate{}
	}
	// Minutes derive from the displayed distance so the two fields stay consistent.
	remaining := math.Round(km*10) / 10
	minutes := int(math.Ceil(remaining / e.speedKmh * 60))
	arrival := e.clock.Now().Add(time.Duration(minutes) * time.Minute)
	return Estimate{
		EstimatedMinutes:     &minutes,
		EstimatedArrivalTime: &arrival,
		RemainingDistance:    &remaining,
	}
}
