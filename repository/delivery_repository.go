package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"deliveryTracking/models"
)

// DeliveryRepository persists Delivery records.
type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `id, order_id,
 restaurant_id, restaurant_name, restaurant_address, restaurant_lat, restaurant_lng,
 customer_id, customer_name, customer_address, customer_lat, customer_lng, customer_phone,
 driver_id, status, distance_km, estimated_minutes, delivery_fee, driver_earnings,
 current_eta, last_location_lng, last_location_lat, last_location_at,
 assigned_at, picked_up_at, delivered_at, cancelled_at,
 actual_delivery_time, cancellation_reason, notes, created_at, updated_at`

// CreateDelivery inserts a new delivery. Status defaults to 'pending' if empty.
func (r *DeliveryRepository) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	if d == nil {
		return errors.New("delivery is nil")
	}
	if d.Status == "" {
		d.Status = models.DeliveryStatusPending
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var lastLng, lastLat, lastAt any
	if d.LastLocationUpdate != nil {
		lastLng = d.LastLocationUpdate.Coordinates[0]
		lastLat = d.LastLocationUpdate.Coordinates[1]
		lastAt = formatTime(d.LastLocationUpdate.Timestamp)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO deliveries (`+deliveryColumns+`)
VALUES (?,?, ?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?,?)`,
		d.ID, d.OrderID,
		d.Restaurant.ID, d.Restaurant.Name, d.Restaurant.Address, d.Restaurant.Location.Lat(), d.Restaurant.Location.Lng(),
		d.Customer.ID, d.Customer.Name, d.Customer.Address, d.Customer.Location.Lat(), d.Customer.Location.Lng(), d.Customer.Phone,
		nullString(d.DriverID), string(d.Status), d.DistanceKm, d.EstimatedMinutes, d.DeliveryFee.String(), d.DriverEarnings.String(),
		nullInt(d.CurrentETA), lastLng, lastLat, lastAt,
		nullTime(d.AssignedAt), nullTime(d.PickedUpAt), nullTime(d.DeliveredAt), nullTime(d.CancelledAt),
		nullInt(d.ActualDeliveryTime), nullString(d.CancellationReason), nullString(d.Notes),
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

// FindDeliveryByID fetches a delivery by its ID.
func (r *DeliveryRepository) FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error) {
	return r.findOne(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
}

// FindDeliveryByOrderID fetches the delivery linked to an order.
func (r *DeliveryRepository) FindDeliveryByOrderID(ctx context.Context, orderID string) (*models.Delivery, error) {
	return r.findOne(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = ?`, orderID)
}

func (r *DeliveryRepository) findOne(ctx context.Context, query string, arg any) (*models.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// SaveDelivery writes the mutable tracking fields of d. Identity, parties and
// economic fields are left as created.
func (r *DeliveryRepository) SaveDelivery(ctx context.Context, d *models.Delivery) error {
	if d == nil {
		return errors.New("delivery is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var lastLng, lastLat, lastAt any
	if d.LastLocationUpdate != nil {
		lastLng = d.LastLocationUpdate.Coordinates[0]
		lastLat = d.LastLocationUpdate.Coordinates[1]
		lastAt = formatTime(d.LastLocationUpdate.Timestamp)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE deliveries SET
  driver_id = ?, status = ?, current_eta = ?,
  last_location_lng = ?, last_location_lat = ?, last_location_at = ?,
  assigned_at = ?, picked_up_at = ?, delivered_at = ?, cancelled_at = ?,
  actual_delivery_time = ?, cancellation_reason = ?, notes = ?, updated_at = ?
WHERE id = ?`,
		nullString(d.DriverID), string(d.Status), nullInt(d.CurrentETA),
		lastLng, lastLat, lastAt,
		nullTime(d.AssignedAt), nullTime(d.PickedUpAt), nullTime(d.DeliveredAt), nullTime(d.CancelledAt),
		nullInt(d.ActualDeliveryTime), nullString(d.CancellationReason), nullString(d.Notes), formatTime(d.UpdatedAt),
		d.ID)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update delivery %s: %w", d.ID, sql.ErrNoRows)
	}
	return nil
}

// ListDeliveriesByDriver returns the driver's deliveries, newest first,
// optionally filtered by status.
func (r *DeliveryRepository) ListDeliveriesByDriver(ctx context.Context, driverID string, statuses ...models.DeliveryStatus) ([]*models.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE driver_id = ?`
	args := []any{driverID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var (
		d                                           models.Delivery
		status, fee, earnings, createdAt, updatedAt string
		rLat, rLng, cLat, cLng                      float64
		driverID, cancelReason, notes               sql.NullString
		lastAt, assignedAt, pickedUpAt              sql.NullString
		deliveredAt, cancelledAt                    sql.NullString
		currentETA, actualTime                      sql.NullInt64
		lastLng, lastLat                            sql.NullFloat64
	)
	err := row.Scan(&d.ID, &d.OrderID,
		&d.Restaurant.ID, &d.Restaurant.Name, &d.Restaurant.Address, &rLat, &rLng,
		&d.Customer.ID, &d.Customer.Name, &d.Customer.Address, &cLat, &cLng, &d.Customer.Phone,
		&driverID, &status, &d.DistanceKm, &d.EstimatedMinutes, &fee, &earnings,
		&currentETA, &lastLng, &lastLat, &lastAt,
		&assignedAt, &pickedUpAt, &deliveredAt, &cancelledAt,
		&actualTime, &cancelReason, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.Restaurant.Location = models.NewGeoPoint(rLat, rLng)
	d.Customer.Location = models.NewGeoPoint(cLat, cLng)
	d.DriverID = stringPtr(driverID)
	d.Status = models.DeliveryStatus(status)
	d.CurrentETA = intPtr(currentETA)
	d.ActualDeliveryTime = intPtr(actualTime)
	d.CancellationReason = stringPtr(cancelReason)
	d.Notes = stringPtr(notes)

	if d.DeliveryFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("delivery %s fee: %w", d.ID, err)
	}
	if d.DriverEarnings, err = decimal.NewFromString(earnings); err != nil {
		return nil, fmt.Errorf("delivery %s earnings: %w", d.ID, err)
	}
	if lastLng.Valid && lastLat.Valid {
		at, err := parseNullTime(lastAt)
		if err != nil {
			return nil, err
		}
		stamp := &models.LocationStamp{Coordinates: [2]float64{lastLng.Float64, lastLat.Float64}}
		if at != nil {
			stamp.Timestamp = *at
		}
		d.LastLocationUpdate = stamp
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{assignedAt, &d.AssignedAt},
		{pickedUpAt, &d.PickedUpAt},
		{deliveredAt, &d.DeliveredAt},
		{cancelledAt, &d.CancelledAt},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return nil, fmt.Errorf("delivery %s timestamps: %w", d.ID, err)
		}
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
