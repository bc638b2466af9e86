package rooms

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliveryTracking/internal/protocol"
)

func msg(event string) protocol.Outbound {
	return protocol.Outbound{Event: event, Data: map[string]string{"k": "v"}}
}

func TestBroadcast_OnlyRoomMembersReceive(t *testing.T) {
	r := NewRegistry()
	a, b, c := r.Register("a"), r.Register("b"), r.Register("c")
	require.True(t, r.Join(a, DeliveryRoom("Del1")))
	require.True(t, r.Join(b, DeliveryRoom("Del1")))
	require.True(t, r.Join(c, DeliveryRoom("Del2")))

	n := r.Broadcast(DeliveryRoom("Del1"), msg(protocol.EventLocationUpdate))
	assert.Equal(t, 2, n)

	for _, cl := range []*Client{a, b} {
		select {
		case got := <-cl.Messages():
			assert.Equal(t, protocol.EventLocationUpdate, got.Event)
		default:
			t.Fatalf("client %s received nothing", cl.ID())
		}
	}
	assert.Len(t, c.Messages(), 0)
}

func TestJoinLeave_Idempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Register("a")
	r.Join(a, "room")
	r.Join(a, "room")
	assert.Equal(t, 1, r.Members("room"))
	assert.True(t, r.In(a, "room"))

	r.Leave(a, "room")
	r.Leave(a, "room")
	assert.Equal(t, 0, r.Members("room"))
	assert.False(t, r.In(a, "room"))
	assert.Equal(t, 0, r.Broadcast("room", msg("x")))
}

func TestUnregister_ReleasesMembership(t *testing.T) {
	r := NewRegistry()
	a := r.Register("a")
	r.Join(a, DeliveryRoom("Del1"))
	r.Join(a, CustomerRoom("C1"))

	r.Unregister(a)
	r.Unregister(a)

	assert.Equal(t, 0, r.Members(DeliveryRoom("Del1")))
	assert.Equal(t, 0, r.Members(CustomerRoom("C1")))
	assert.Equal(t, 0, r.Connections())
	select {
	case <-a.Done():
	default:
		t.Fatalf("done not closed")
	}
	assert.False(t, r.Send(a, msg("x")))
	assert.False(t, r.Join(a, "late"), "unregistered client must not rejoin")
}

func TestSend_FullQueueDrops(t *testing.T) {
	var dropped []string
	r := NewRegistry(WithClientBuffer(1), WithDropHandler(func(id, event string) {
		dropped = append(dropped, id+":"+event)
	}))
	a := r.Register("a")
	assert.True(t, r.Send(a, msg("first")))
	assert.False(t, r.Send(a, msg("second")))
	assert.Equal(t, []string{"a:second"}, dropped)
	assert.Equal(t, "first", (<-a.Messages()).Event)
}

func TestRegister_SameIDReturnsExisting(t *testing.T) {
	r := NewRegistry()
	assert.Same(t, r.Register("a"), r.Register("a"))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(WithClientBuffer(1024))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := r.Register(string(rune('a' + i)))
			r.Join(c, "shared")
			r.Broadcast("shared", msg("tick"))
			if i%2 == 0 {
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, r.Members("shared"))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "delivery_Del1", DeliveryRoom("Del1"))
	assert.Equal(t, "customer_C1", CustomerRoom("C1"))
	assert.Equal(t, "restaurant_R1", RestaurantRoom("R1"))
	assert.Equal(t, "driver_D1", DriverRoom("D1"))
}

func TestBroadcastRooms_Deduplicates(t *testing.T) {
	r := NewRegistry()
	customer, restaurant, other := r.Register("cust"), r.Register("rest"), r.Register("other")
	r.Join(customer, DeliveryRoom("Del1"))
	r.Join(customer, CustomerRoom("C1"))
	r.Join(restaurant, RestaurantRoom("R1"))
	r.Join(other, CustomerRoom("C2"))

	n := r.BroadcastRooms([]string{DeliveryRoom("Del1"), CustomerRoom("C1"), RestaurantRoom("R1")}, msg(protocol.EventDeliveryStatusUpdate))
	assert.Equal(t, 2, n)
	assert.Len(t, customer.Messages(), 1)
	assert.Len(t, restaurant.Messages(), 1)
	assert.Len(t, other.Messages(), 0)
}
