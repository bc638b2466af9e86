// Package presence answers "which drivers are near here" from the latest
// accepted driver positions.
package presence

import (
	"context"
	"sort"

	"deliveryTracking/internal/geo"
	"deliveryTracking/models"
)

// NearbyDriver is one search hit, nearest first.
type NearbyDriver struct {
	DriverID   string          `json:"driverId"`
	DistanceKm float64         `json:"distanceKm"`
	Location   models.GeoPoint `json:"location"`
}

// Index mirrors driver positions for proximity search.
type Index interface {
	UpdateDriver(ctx context.Context, driverID string, p models.GeoPoint) error
	Nearby(ctx context.Context, center models.GeoPoint, radiusKm float64, limit int) ([]NearbyDriver, error)
}

// DriverLister is the store query StoreIndex scans.
type DriverLister interface {
	ListLocatedDrivers(ctx context.Context, onlyAvailable bool) ([]*models.DriverPresence, error)
}

// StoreIndex searches the durable store directly. Positions are already
// persisted by location ingest, so UpdateDriver does nothing.
type StoreIndex struct {
	drivers DriverLister
}

func NewStoreIndex(drivers DriverLister) *StoreIndex {
	return &StoreIndex{drivers: drivers}
}

func (s *StoreIndex) UpdateDriver(context.Context, string, models.GeoPoint) error { return nil }

func (s *StoreIndex) Nearby(ctx context.Context, center models.GeoPoint, radiusKm float64, limit int) ([]NearbyDriver, error) {
	list, err := s.drivers.ListLocatedDrivers(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyDriver, 0, len(list))
	for _, d := range list {
		if d.CurrentLocation == nil {
			continue
		}
		km := geo.HaversineKm(center.Lat(), center.Lng(), d.CurrentLocation.Lat(), d.CurrentLocation.Lng())
		if km > radiusKm {
			continue
		}
		out = append(out, NearbyDriver{DriverID: d.UserID, DistanceKm: km, Location: *d.CurrentLocation})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
