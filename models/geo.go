package models

import "math"

// GeoPoint is a GeoJSON-style point. Coordinates are stored longitude first.
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a point from latitude/longitude.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }
func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }

// Valid reports whether the point is inside the WGS84 range, bounds inclusive.
func (p GeoPoint) Valid() bool {
	return ValidCoordinates(p.Lat(), p.Lng())
}

// ValidCoordinates checks lat in [-90, 90] and lng in [-180, 180].
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
