package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/metadata"

	"deliveryTracking/internal/db"
	"deliveryTracking/models"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The DB is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// Shared cache keeps every pooled connection on the same database.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWT returns a signed HS256 token with the claims the verifier reads.
func GenerateJWT(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return sign(t, secret, claims)
}

// GenerateExpiredJWT returns a token whose exp is in the past.
func GenerateExpiredJWT(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}
	return sign(t, secret, claims)
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// OutgoingBearer is CtxWithBearer for client-side calls.
func OutgoingBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// Store is the subset of the repository the seed helpers need.
type Store interface {
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	CreateDriver(ctx context.Context, p *models.DriverPresence) error
}

// NewDelivery builds an assigned delivery with the restaurant at (0,-0.18)
// and the customer at (0,0.18).
func NewDelivery(id, orderID, customerID, restaurantID, driverID string, assignedAt time.Time) *models.Delivery {
	d := &models.Delivery{
		ID:      id,
		OrderID: orderID,
		Restaurant: models.Party{
			ID: restaurantID, Name: "Restaurant " + restaurantID, Address: "1 Kitchen St",
			Location: models.NewGeoPoint(0, -0.18),
		},
		Customer: models.Party{
			ID: customerID, Name: "Customer " + customerID, Address: "9 Home Rd",
			Location: models.NewGeoPoint(0, 0.18), Phone: "+100000000",
		},
		Status:           models.DeliveryStatusPending,
		DistanceKm:       40,
		EstimatedMinutes: 120,
		DeliveryFee:      decimal.RequireFromString("4.99"),
		DriverEarnings:   decimal.RequireFromString("3.50"),
		CreatedAt:        assignedAt,
		UpdatedAt:        assignedAt,
	}
	if driverID != "" {
		d.DriverID = &driverID
		d.Status = models.DeliveryStatusAssigned
		at := assignedAt
		d.AssignedAt = &at
	}
	return d
}

// SeedDelivery inserts d and fails the test on error.
func SeedDelivery(t *testing.T, s Store, d *models.Delivery) *models.Delivery {
	t.Helper()
	if err := s.CreateDelivery(context.Background(), d); err != nil {
		t.Fatalf("seed delivery %s: %v", d.ID, err)
	}
	return d
}

// SeedDriver inserts a driver presence record, unavailable when busy is true.
func SeedDriver(t *testing.T, s Store, userID string, busy bool) *models.DriverPresence {
	t.Helper()
	p := &models.DriverPresence{
		UserID:      userID,
		Name:        "Driver " + userID,
		IsAvailable: !busy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.CreateDriver(context.Background(), p); err != nil {
		t.Fatalf("seed driver %s: %v", userID, err)
	}
	return p
}
