package rooms

import (
	"strings"
	"sync"

	"deliveryTracking/internal/protocol"
)

const DefaultClientBuffer = 32

// AdminRoom is shared by every admin connection.
const AdminRoom = "admins"

func DeliveryRoom(deliveryID string) string {
	return "delivery_" + deliveryID
}

func CustomerRoom(customerID string) string {
	return "customer_" + customerID
}

func RestaurantRoom(restaurantID string) string {
	return "restaurant_" + restaurantID
}

func DriverRoom(driverID string) string {
	return "driver_" + driverID
}

// DropFunc is told about every message discarded because a client queue was full.
type DropFunc func(clientID string, event string)

// Client is one registered connection. Its queue is never closed; readers
// select on Done to learn the client left.
type Client struct {
	id    string
	send  chan protocol.Outbound
	done  chan struct{}
	once  sync.Once
	rooms map[string]struct{} // guarded by Registry.mu
}

func (c *Client) ID() string { return c.id }

// Messages is the outbound queue drained by the transport writer.
func (c *Client) Messages() <-chan protocol.Outbound { return c.send }

// Done is closed once the client is unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

// Registry maps room names to member clients. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	buffer  int
	onDrop  DropFunc
}

type Option func(*Registry)

func WithClientBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

func WithDropHandler(fn DropFunc) Option {
	return func(r *Registry) { r.onDrop = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		buffer:  DefaultClientBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connection. Registering an id twice returns the existing client.
func (r *Registry) Register(id string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c
	}
	c := &Client{
		id:    id,
		send:  make(chan protocol.Outbound, r.buffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
	r.clients[id] = c
	return c
}

// Unregister drops the client from every room and closes Done.
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	for room := range c.rooms {
		r.removeLocked(c, room)
	}
	if cur, ok := r.clients[c.id]; ok && cur == c {
		delete(r.clients, c.id)
	}
	r.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// Join adds c to room. Joining a room twice is a no-op.
func (r *Registry) Join(c *Client, room string) bool {
	room = strings.TrimSpace(room)
	if c == nil || room == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[c.id]; !ok || cur != c {
		return false
	}
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
	return true
}

// Leave removes c from room; leaving a room c is not in is a no-op.
func (r *Registry) Leave(c *Client, room string) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.removeLocked(c, strings.TrimSpace(room))
	r.mu.Unlock()
}

func (r *Registry) removeLocked(c *Client, room string) {
	delete(c.rooms, room)
	members := r.rooms[room]
	if members == nil {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// In reports whether c is a member of room.
func (r *Registry) In(c *Client, room string) bool {
	if c == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

func (r *Registry) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues msg for every member of room and returns how many accepted it.
func (r *Registry) Broadcast(room string, msg protocol.Outbound) int {
	r.mu.RLock()
	members := make([]*Client, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if r.Send(c, msg) {
			delivered++
		}
	}
	return delivered
}

// BroadcastRooms queues msg once for every client in any of rooms, so a
// client in several of them is not sent duplicates.
func (r *Registry) BroadcastRooms(rooms []string, msg protocol.Outbound) int {
	r.mu.RLock()
	seen := make(map[string]*Client)
	for _, room := range rooms {
		for id, c := range r.rooms[room] {
			seen[id] = c
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range seen {
		if r.Send(c, msg) {
			delivered++
		}
	}
	return delivered
}

// Send queues msg for c without blocking. A full queue drops the message.
func (r *Registry) Send(c *Client, msg protocol.Outbound) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		if r.onDrop != nil {
			r.onDrop(c.id, msg.Event)
		}
		return false
	}
}
