package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deliveryTracking/models"
)

type DriverRepository struct {
	db *sql.DB
}

func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{db: db}
}

const driverColumns = `user_id, name, lat, lng, is_available, last_location_update_time, created_at`

// CreateDriver inserts a driver presence record at onboarding.
func (r *DriverRepository) CreateDriver(ctx context.Context, p *models.DriverPresence) error {
	if p == nil {
		return errors.New("driver is nil")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var lat, lng any
	if p.CurrentLocation != nil {
		lat, lng = p.CurrentLocation.Lat(), p.CurrentLocation.Lng()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO drivers (`+driverColumns+`) VALUES (?,?,?,?,?,?,?)`,
		p.UserID, p.Name, lat, lng, boolInt(p.IsAvailable), nullTime(p.LastLocationUpdateTime), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert driver %s: %w", p.UserID, err)
	}
	return nil
}

func (r *DriverRepository) FindDriverByUserID(ctx context.Context, userID string) (*models.DriverPresence, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	p, err := scanDriver(r.db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = ?`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SetDriverAvailability flips only the availability flag, leaving the
// position columns to UpsertDriverLocation.
func (r *DriverRepository) SetDriverAvailability(ctx context.Context, userID string, available bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET is_available = ? WHERE user_id = ?`, boolInt(available), userID)
	if err != nil {
		return fmt.Errorf("update driver %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update driver %s: %w", userID, sql.ErrNoRows)
	}
	return nil
}

// UpsertDriverLocation records the driver's latest position, creating the
// presence row when the driver has never been seen.
func (r *DriverRepository) UpsertDriverLocation(ctx context.Context, userID string, loc models.GeoPoint, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ts := formatTime(at)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO drivers (user_id, lat, lng, last_location_update_time, created_at) VALUES (?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng,
  last_location_update_time = excluded.last_location_update_time`,
		userID, loc.Lat(), loc.Lng(), ts, ts)
	if err != nil {
		return fmt.Errorf("upsert driver location %s: %w", userID, err)
	}
	return nil
}

// ListLocatedDrivers returns every driver with a known position.
func (r *DriverRepository) ListLocatedDrivers(ctx context.Context, onlyAvailable bool) ([]*models.DriverPresence, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE lat IS NOT NULL AND lng IS NOT NULL`
	if onlyAvailable {
		query += ` AND is_available = 1`
	}
	query += ` ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.DriverPresence
	for rows.Next() {
		p, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDriver(row rowScanner) (*models.DriverPresence, error) {
	var (
		p          models.DriverPresence
		lat, lng   sql.NullFloat64
		available  int
		lastUpdate sql.NullString
		createdAt  string
	)
	if err := row.Scan(&p.UserID, &p.Name, &lat, &lng, &available, &lastUpdate, &createdAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		loc := models.NewGeoPoint(lat.Float64, lng.Float64)
		p.CurrentLocation = &loc
	}
	p.IsAvailable = available != 0
	var err error
	if p.LastLocationUpdateTime, err = parseNullTime(lastUpdate); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
