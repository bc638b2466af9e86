package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/models"
)

func TestSubscribe_Authorization(t *testing.T) {
	cases := []struct {
		subject string
		role    auth.Role
		allowed bool
	}{
		{"C1", auth.RoleCustomer, true},
		{"C2", auth.RoleCustomer, false},
		{"R1", auth.RoleRestaurant, true},
		{"R2", auth.RoleRestaurant, false},
		{"D1", auth.RoleDriver, true},
		{"D2", auth.RoleDriver, false},
		{"A1", auth.RoleAdmin, true},
		{"", auth.RoleAnonymous, false},
	}
	for _, c := range cases {
		t.Run(string(c.role)+"_"+c.subject, func(t *testing.T) {
			h := newHarness(t)
			conn := h.connect(c.subject, c.role)

			h.send(conn, protocol.EventTrackDelivery, "Del1")

			msgs := drain(conn)
			require.Len(t, msgs, 1)
			joined := h.svc.Rooms().In(conn.client, rooms.DeliveryRoom("Del1"))
			if c.allowed {
				assert.NotEqual(t, protocol.EventError, msgs[0].Event)
				assert.True(t, joined)
			} else {
				assert.Equal(t, []string{string(apperr.CodeAuthorization)}, errorCodes(msgs))
				assert.False(t, joined)
			}
		})
	}
}

func TestSubscribe_UnknownDelivery(t *testing.T) {
	h := newHarness(t)
	conn := h.connect("A1", auth.RoleAdmin)

	h.send(conn, protocol.EventTrackDelivery, "nope")

	assert.Equal(t, []string{string(apperr.CodeNotFound)}, errorCodes(drain(conn)))
	assert.Equal(t, 0, h.svc.Rooms().Members(rooms.DeliveryRoom("nope")))
}

func TestSubscribe_StatusSnapshotWithoutDriverLocation(t *testing.T) {
	h := newHarness(t)
	conn := h.connect("C1", auth.RoleCustomer)

	h.send(conn, protocol.EventTrackDelivery, "Del1")

	msgs := drain(conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.EventDeliveryStatusUpdate, msgs[0].Event)
	assert.Equal(t, protocol.StatusBroadcast{
		DeliveryID: "Del1",
		OrderID:    "O1",
		Status:     models.DeliveryStatusAssigned,
		Timestamp:  assignedAt,
	}, msgs[0].Data)
}

func TestSubscribe_LocationSnapshotGoesToRequesterOnly(t *testing.T) {
	h := newHarness(t)
	driver := h.connect("D1", auth.RoleDriver)
	existing := h.connect("A1", auth.RoleAdmin)
	h.send(existing, protocol.EventTrackDelivery, "Del1")
	h.pushLocation(driver, 0, -0.09, "")
	drain(existing)

	late := h.connect("R1", auth.RoleRestaurant)
	h.send(late, protocol.EventTrackDelivery, "Del1")

	msgs := drain(late)
	require.Len(t, msgs, 1)
	assert.Equal(t, protocol.EventLocationUpdate, msgs[0].Event)
	snap := msgs[0].Data.(protocol.LocationBroadcast)
	assert.Equal(t, protocol.Coordinates{Latitude: 0, Longitude: -0.09}, snap.Location)
	require.False(t, snap.EstimatedArrival.Degraded())
	assert.Equal(t, 30, *snap.EstimatedArrival.EstimatedMinutes)
	assert.Empty(t, drain(existing))
}

func TestStopTracking_LeavesRoomIdempotently(t *testing.T) {
	h := newHarness(t)
	driver := h.connect("D1", auth.RoleDriver)
	tracker := h.connect("A1", auth.RoleAdmin)
	h.send(tracker, protocol.EventTrackDelivery, "Del1")
	drain(tracker)

	h.send(tracker, protocol.EventStopTracking, "Del1")
	h.send(tracker, protocol.EventStopTracking, "Del1")
	h.send(tracker, protocol.EventStopTracking, "never-joined")
	h.pushLocation(driver, 1, 1, "Del1")

	assert.Empty(t, drain(tracker))
}

func TestDisconnect_ReleasesTrackingRooms(t *testing.T) {
	h := newHarness(t)
	conn := h.connect("C1", auth.RoleCustomer)
	h.send(conn, protocol.EventTrackDelivery, "Del1")
	require.Equal(t, 1, h.svc.Rooms().Members(rooms.DeliveryRoom("Del1")))

	h.svc.Disconnect(h.ctx, conn)
	h.svc.Disconnect(h.ctx, conn)

	assert.Equal(t, 0, h.svc.Rooms().Members(rooms.DeliveryRoom("Del1")))
	assert.Equal(t, 0, h.svc.Rooms().Members(rooms.CustomerRoom("C1")))
	select {
	case <-conn.Done():
	default:
		t.Fatalf("connection not closed")
	}
}
