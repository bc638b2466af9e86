package repository

import (
	"database/sql"
	"time"
)

// SQLStore bundles the SQLite repositories behind the Store interface.
type SQLStore struct {
	*DeliveryRepository
	*DriverRepository
	*LocationHistoryRepository
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		DeliveryRepository:        NewDeliveryRepository(db),
		DriverRepository:          NewDriverRepository(db),
		LocationHistoryRepository: NewLocationHistoryRepository(db),
	}
}

const queryTimeout = 3 * time.Second

// Timestamps are stored as RFC3339Nano text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

var (
	_ DeliveryRepositoryI        = (*DeliveryRepository)(nil)
	_ DriverRepositoryI          = (*DriverRepository)(nil)
	_ LocationHistoryRepositoryI = (*LocationHistoryRepository)(nil)
)
