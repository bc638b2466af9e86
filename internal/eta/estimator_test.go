package eta

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliveryTracking/internal/clock"
	"deliveryTracking/models"
)

func delivery(status models.DeliveryStatus) *models.Delivery {
	return &models.Delivery{
		ID:         "Del1",
		Status:     status,
		Restaurant: models.Party{ID: "R1", Location: models.NewGeoPoint(0, -0.18)},
		Customer:   models.Party{ID: "C1", Location: models.NewGeoPoint(0, 0.18)},
	}
}

func TestEstimate_InTransitTwentyKmEast(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	est := New(DefaultAverageSpeedKmh, clock.NewFakeClock(now))

	got := est.Estimate(delivery(models.DeliveryStatusInTransit), models.NewGeoPoint(0, 0))

	require.False(t, got.Degraded())
	assert.InDelta(t, 20.0, *got.RemainingDistance, 1e-9)
	assert.Equal(t, 60, *got.EstimatedMinutes)
	assert.Equal(t, now.Add(60*time.Minute), *got.EstimatedArrivalTime)
}

func TestEstimate_AssignedHeadsToRestaurant(t *testing.T) {
	est := New(DefaultAverageSpeedKmh, clock.NewFakeClock(time.Now()))
	d := delivery(models.DeliveryStatusAssigned)
	d.Restaurant.Location = models.NewGeoPoint(0, 0.09)

	got := est.Estimate(d, models.NewGeoPoint(0, 0))

	require.False(t, got.Degraded())
	assert.InDelta(t, 10.0, *got.RemainingDistance, 1e-9)
	assert.Equal(t, 30, *got.EstimatedMinutes)
}

func TestEstimate_AtDestination(t *testing.T) {
	est := New(DefaultAverageSpeedKmh, nil)
	got := est.Estimate(delivery(models.DeliveryStatusPickedUp), models.NewGeoPoint(0, 0.18))
	require.False(t, got.Degraded())
	assert.Equal(t, 0, *got.EstimatedMinutes)
	assert.Equal(t, 0.0, *got.RemainingDistance)
}

func TestEstimate_DegradesOnInvalidInput(t *testing.T) {
	est := New(DefaultAverageSpeedKmh, nil)

	assert.True(t, est.Estimate(nil, models.NewGeoPoint(0, 0)).Degraded())
	assert.True(t, est.Estimate(delivery(models.DeliveryStatusInTransit), models.NewGeoPoint(math.NaN(), 0)).Degraded())

	bad := delivery(models.DeliveryStatusInTransit)
	bad.Customer.Location = models.NewGeoPoint(91, 0)
	got := est.Estimate(bad, models.NewGeoPoint(0, 0))
	assert.Nil(t, got.EstimatedMinutes)
	assert.Nil(t, got.EstimatedArrivalTime)
	assert.Nil(t, got.RemainingDistance)
}

func TestEstimate_IdenticalInputsAreIdempotent(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	est := New(DefaultAverageSpeedKmh, clk)
	d := delivery(models.DeliveryStatusInTransit)

	a := est.Estimate(d, models.NewGeoPoint(0.01, 0.02))
	b := est.Estimate(d, models.NewGeoPoint(0.01, 0.02))
	assert.Equal(t, a, b)
}

func TestNew_FallsBackToDefaultSpeed(t *testing.T) {
	est := New(0, nil)
	assert.Equal(t, DefaultAverageSpeedKmh, est.speedKmh)
}
