package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deliveryTracking/models"
)

// LocationHistoryRepository is the append-only log of driver positions.
type LocationHistoryRepository struct {
	db *sql.DB
}

func NewLocationHistoryRepository(db *sql.DB) *LocationHistoryRepository {
	return &LocationHistoryRepository{db: db}
}

// AppendLocationHistory inserts e, assigning an ID when empty.
func (r *LocationHistoryRepository) AppendLocationHistory(ctx context.Context, e *models.LocationHistoryEntry) error {
	if e == nil {
		return errors.New("location history entry is nil")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO location_history (id, driver_id, delivery_id, lng, lat, recorded_at) VALUES (?,?,?,?,?,?)`,
		e.ID, e.DriverID, nullString(e.DeliveryID), e.Coordinates.Lng(), e.Coordinates.Lat(), formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("append location history for %s: %w", e.DriverID, err)
	}
	return nil
}

// ListLocationHistory returns the driver's most recent samples, newest first.
func (r *LocationHistoryRepository) ListLocationHistory(ctx context.Context, driverID string, limit int) ([]*models.LocationHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT id, driver_id, delivery_id, lng, lat, recorded_at FROM location_history WHERE driver_id = ? ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.LocationHistoryEntry
	for rows.Next() {
		var (
			e          models.LocationHistoryEntry
			deliveryID sql.NullString
			lng, lat   float64
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.DriverID, &deliveryID, &lng, &lat, &recordedAt); err != nil {
			return nil, err
		}
		e.DeliveryID = stringPtr(deliveryID)
		e.Coordinates = models.NewGeoPoint(lat, lng)
		if e.Timestamp, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
