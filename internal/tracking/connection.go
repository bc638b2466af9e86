package tracking

import (
	"sync"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
)

// Connection is one authenticated (or anonymous) real-time client.
type Connection struct {
	ID        string
	Transport string
	Principal *auth.Principal
	client    *rooms.Client
	closeOnce sync.Once
}

// Messages is the queue the transport drains and writes to the peer.
func (c *Connection) Messages() <-chan protocol.Outbound { return c.client.Messages() }

// Done is closed when the connection has been disconnected.
func (c *Connection) Done() <-chan struct{} { return c.client.Done() }

// personalRoom is the room a principal joins on connect, "" for anonymous.
func personalRoom(p *auth.Principal) string {
	if p.IsAnonymous() || p.SubjectID == "" {
		return ""
	}
	switch p.Role {
	case auth.RoleCustomer:
		return rooms.CustomerRoom(p.SubjectID)
	case auth.RoleRestaurant:
		return rooms.RestaurantRoom(p.SubjectID)
	case auth.RoleDriver:
		return rooms.DriverRoom(p.SubjectID)
	case auth.RoleAdmin:
		return rooms.AdminRoom
	}
	return ""
}
