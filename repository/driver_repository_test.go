package repository

import (
	"context"
	"testing"
	"time"

	"deliveryTracking/internal/testutil"
	"deliveryTracking/models"
)

func TestDriverRepository_UpsertLocation(t *testing.T) {
	store := NewSQLStore(testutil.OpenInMemoryDB(t, "driverrepo"))
	ctx := context.Background()
	testutil.SeedDriver(t, store, "D1", true)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpsertDriverLocation(ctx, "D1", models.NewGeoPoint(1.0, 2.0), at); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p, err := store.FindDriverByUserID(ctx, "D1")
	if err != nil || p == nil {
		t.Fatalf("find: %v %+v", err, p)
	}
	if p.CurrentLocation == nil || p.CurrentLocation.Lat() != 1.0 || p.CurrentLocation.Lng() != 2.0 {
		t.Fatalf("location: %+v", p.CurrentLocation)
	}
	if p.LastLocationUpdateTime == nil || !p.LastLocationUpdateTime.Equal(at) {
		t.Fatalf("last update: %v", p.LastLocationUpdateTime)
	}
	if p.IsAvailable || p.Name != "Driver D1" {
		t.Fatalf("upsert must not touch availability or name: %+v", p)
	}
}

func TestDriverRepository_UpsertCreatesUnknownDriver(t *testing.T) {
	store := NewSQLStore(testutil.OpenInMemoryDB(t, "driverrepo_new"))
	ctx := context.Background()
	if err := store.UpsertDriverLocation(ctx, "D9", models.NewGeoPoint(-90, 180), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	p, _ := store.FindDriverByUserID(ctx, "D9")
	if p == nil || !p.IsAvailable || p.CurrentLocation == nil {
		t.Fatalf("expected new available driver with location, got %+v", p)
	}
}

func TestDriverRepository_SaveAndList(t *testing.T) {
	store := NewSQLStore(testutil.OpenInMemoryDB(t, "driverrepo_list"))
	ctx := context.Background()
	p := testutil.SeedDriver(t, store, "D1", true)
	testutil.SeedDriver(t, store, "D2", false)

	if err := store.UpsertDriverLocation(ctx, "D2", models.NewGeoPoint(0, 0), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := store.ListLocatedDrivers(ctx, false)
	if err != nil || len(list) != 1 || list[0].UserID != "D2" {
		t.Fatalf("only located drivers expected: %v %+v", err, list)
	}

	if err := store.UpsertDriverLocation(ctx, p.UserID, models.NewGeoPoint(0.1, 0.1), time.Now()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	avail, err := store.ListLocatedDrivers(ctx, true)
	if err != nil || len(avail) != 1 || avail[0].UserID != "D2" {
		t.Fatalf("busy driver must be filtered: %v %+v", err, avail)
	}

	if err := store.SetDriverAvailability(ctx, p.UserID, true); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	got, _ := store.FindDriverByUserID(ctx, "D1")
	if !got.IsAvailable {
		t.Fatalf("availability not saved")
	}
	if got.CurrentLocation == nil || got.CurrentLocation.Lat() != 0.1 {
		t.Fatalf("availability update must keep the position: %+v", got.CurrentLocation)
	}
}

func TestDriverRepository_NotFound(t *testing.T) {
	store := NewSQLStore(testutil.OpenInMemoryDB(t, "driverrepo_nf"))
	p, err := store.FindDriverByUserID(context.Background(), "ghost")
	if err != nil || p != nil {
		t.Fatalf("expected nil,nil got %+v %v", p, err)
	}
	if err := store.SetDriverAvailability(context.Background(), "ghost", true); err == nil {
		t.Fatalf("expected error saving unknown driver")
	}
}
