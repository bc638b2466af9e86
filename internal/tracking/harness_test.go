package tracking

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/clock"
	"deliveryTracking/internal/eta"
	"deliveryTracking/internal/events"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/internal/testutil"
	"deliveryTracking/models"
	"deliveryTracking/repository"
)

const testSecret = "tracking-test-secret"

var assignedAt = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.StatusChanged
}

func (r *recordingEmitter) StatusChanged(_ context.Context, ev events.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEmitter) all() []events.StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.StatusChanged(nil), r.events...)
}

type recordingGeo struct {
	mu      sync.Mutex
	updates map[string]models.GeoPoint
}

func (g *recordingGeo) UpdateDriver(_ context.Context, driverID string, p models.GeoPoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates[driverID] = p
	return nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	svc    *Service
	store  *repository.SQLStore
	clock  *clock.FakeClock
	events *recordingEmitter
	geo    *recordingGeo
}

// newHarness seeds driver D1 (busy) assigned to delivery Del1 for customer C1
// and restaurant R1, plus a second driver D2 and delivery Del2 for C2/R2.
func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store := repository.NewSQLStore(testutil.OpenInMemoryDB(t, name))
	clk := clock.NewFakeClock(assignedAt)
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		clock:  clk,
		events: &recordingEmitter{},
		geo:    &recordingGeo{updates: map[string]models.GeoPoint{}},
	}
	svc, err := New(Deps{
		Store:     store,
		Rooms:     rooms.NewRegistry(rooms.WithClientBuffer(64)),
		Verifier:  auth.NewJWTVerifier(testSecret, ""),
		Estimator: eta.New(eta.DefaultAverageSpeedKmh, clk),
		Clock:     clk,
		Events:    h.events,
		GeoIndex:  h.geo,
	})
	require.NoError(t, err)
	h.svc = svc

	testutil.SeedDriver(t, store, "D1", true)
	testutil.SeedDriver(t, store, "D2", true)
	testutil.SeedDelivery(t, store, testutil.NewDelivery("Del1", "O1", "C1", "R1", "D1", assignedAt))
	testutil.SeedDelivery(t, store, testutil.NewDelivery("Del2", "O2", "C2", "R2", "D2", assignedAt))
	return h
}

func (h *harness) connect(subject string, role auth.Role) *Connection {
	h.t.Helper()
	token := ""
	if role != auth.RoleAnonymous {
		token = testutil.GenerateJWT(h.t, testSecret, subject, string(role))
	}
	conn, err := h.svc.Connect(h.ctx, "test", token)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { h.svc.Disconnect(h.ctx, conn) })
	return conn
}

func (h *harness) send(conn *Connection, event string, data any) {
	h.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	frame, err := json.Marshal(protocol.Envelope{Event: event, Data: raw})
	require.NoError(h.t, err)
	h.svc.Dispatch(h.ctx, conn, frame)
}

func (h *harness) pushLocation(conn *Connection, lat, lng float64, deliveryID string) {
	h.t.Helper()
	body := map[string]any{"latitude": lat, "longitude": lng}
	if deliveryID != "" {
		body["deliveryId"] = deliveryID
	}
	h.send(conn, protocol.EventLocationUpdate, body)
}

func (h *harness) setStatus(conn *Connection, deliveryID string, status models.DeliveryStatus, notes ...string) {
	h.t.Helper()
	body := map[string]any{"deliveryId": deliveryID, "status": string(status)}
	if len(notes) > 0 {
		body["notes"] = notes[0]
	}
	h.send(conn, protocol.EventDeliveryStatusUpdate, body)
}

func (h *harness) delivery(id string) *models.Delivery {
	h.t.Helper()
	d, err := h.store.FindDeliveryByID(h.ctx, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, d)
	return d
}

func (h *harness) driver(id string) *models.DriverPresence {
	h.t.Helper()
	p, err := h.store.FindDriverByUserID(h.ctx, id)
	require.NoError(h.t, err)
	require.NotNil(h.t, p)
	return p
}

// drain returns every message queued for conn without blocking.
func drain(conn *Connection) []protocol.Outbound {
	var out []protocol.Outbound
	for {
		select {
		case m := <-conn.Messages():
			out = append(out, m)
		default:
			return out
		}
	}
}

func only(msgs []protocol.Outbound, event string) []protocol.Outbound {
	var out []protocol.Outbound
	for _, m := range msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func errorCodes(msgs []protocol.Outbound) []string {
	var codes []string
	for _, m := range only(msgs, protocol.EventError) {
		codes = append(codes, m.Data.(protocol.ErrorPayload).Code)
	}
	return codes
}
