package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/clock"
	"deliveryTracking/internal/eta"
	"deliveryTracking/internal/events"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/metrics"
	"deliveryTracking/internal/protocol"
	"deliveryTracking/internal/rooms"
	"deliveryTracking/models"
	"deliveryTracking/repository"
)

// EventEmitter receives domain events after state is persisted.
type EventEmitter interface {
	StatusChanged(ctx context.Context, ev events.StatusChanged) error
}

// GeoIndex mirrors accepted driver positions.
type GeoIndex interface {
	UpdateDriver(ctx context.Context, driverID string, p models.GeoPoint) error
}

// Deps are the collaborators a Service is built from. Events and GeoIndex are optional.
type Deps struct {
	Store     repository.Store
	Rooms     *rooms.Registry
	Verifier  auth.Verifier
	Estimator *eta.Estimator
	Clock     clock.Clock
	Logger    *logger.Logger
	Metrics   *metrics.TrackingMetrics
	Events    EventEmitter
	GeoIndex  GeoIndex
}

// Service is the real-time tracking surface consumed by every transport.
type Service struct {
	deps          Deps
	locks         *keyedMutex
	location      *LocationIngester
	status        *StatusTransitioner
	subscriptions *SubscriptionManager
}

func New(d Deps) (*Service, error) {
	if d.Store == nil {
		return nil, errors.New("tracking: store is required")
	}
	if d.Verifier == nil {
		return nil, errors.New("tracking: verifier is required")
	}
	if d.Rooms == nil {
		d.Rooms = rooms.NewRegistry()
	}
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Estimator == nil {
		d.Estimator = eta.New(eta.DefaultAverageSpeedKmh, d.Clock)
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	s := &Service{deps: d, locks: newKeyedMutex()}
	s.location = &LocationIngester{deps: &s.deps, locks: s.locks}
	s.status = &StatusTransitioner{deps: &s.deps, locks: s.locks}
	s.subscriptions = &SubscriptionManager{deps: &s.deps}
	return s, nil
}

func (s *Service) Rooms() *rooms.Registry { return s.deps.Rooms }

// Connect authenticates a new connection and joins its personal room.
// A missing token yields an anonymous connection; an invalid one is refused.
func (s *Service) Connect(ctx context.Context, transport, token string) (*Connection, error) {
	p, err := auth.Authenticate(s.deps.Verifier, token)
	if err != nil {
		s.deps.Metrics.IncError(string(apperr.CodeAuthentication))
		s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "transport", transport), "connection refused", err)
		if apperr.As(err) == nil {
			err = apperr.Wrap(apperr.CodeAuthentication, err, "invalid credential")
		}
		return nil, err
	}
	return s.Attach(ctx, transport, p), nil
}

// Attach registers a connection for a principal a transport has already
// authenticated, e.g. through a gRPC interceptor.
func (s *Service) Attach(ctx context.Context, transport string, p *auth.Principal) *Connection {
	if p == nil {
		p = auth.Anonymous()
	}
	conn := &Connection{
		ID:        uuid.NewString(),
		Transport: transport,
		Principal: p,
	}
	conn.client = s.deps.Rooms.Register(conn.ID)
	if room := personalRoom(p); room != "" {
		s.deps.Rooms.Join(conn.client, room)
	}
	s.deps.Metrics.ConnectionOpened(transport)
	s.deps.Logger.Info(s.logContext(ctx, conn), "connection established")
	return conn
}

// Disconnect releases every room the connection joined. Safe to call twice.
func (s *Service) Disconnect(ctx context.Context, conn *Connection) {
	if conn == nil {
		return
	}
	conn.closeOnce.Do(func() {
		s.deps.Rooms.Unregister(conn.client)
		s.deps.Metrics.ConnectionClosed(conn.Transport)
		s.deps.Logger.Info(s.logContext(ctx, conn), "connection closed")
	})
}

// Dispatch decodes one raw client frame and handles it.
func (s *Service) Dispatch(ctx context.Context, conn *Connection, raw []byte) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		s.fail(s.logContext(ctx, conn), conn, err)
		return
	}
	s.Handle(ctx, conn, env)
}

// Handle routes a decoded envelope. Failures are reported to conn alone and
// never close the connection.
func (s *Service) Handle(ctx context.Context, conn *Connection, env protocol.Envelope) {
	start := time.Now()
	ctx = s.deps.Logger.WithEvent(s.logContext(ctx, conn), env.Event)
	err := s.route(ctx, conn, env)
	s.deps.Metrics.ObserveEvent(env.Event, time.Since(start))
	if err != nil {
		s.fail(ctx, conn, err)
	}
}

func (s *Service) route(ctx context.Context, conn *Connection, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventLocationUpdate:
		if err := auth.RequireRole(conn.Principal, auth.RoleDriver); err != nil {
			return err
		}
		req, err := protocol.DecodeLocationUpdate(env.Data)
		if err != nil {
			return err
		}
		return s.location.Handle(s.withDelivery(ctx, req.DeliveryID), conn, req)
	case protocol.EventDeliveryStatusUpdate:
		if err := auth.RequireRole(conn.Principal, auth.RoleDriver); err != nil {
			return err
		}
		req, err := protocol.DecodeStatusUpdate(env.Data)
		if err != nil {
			return err
		}
		return s.status.Handle(s.withDelivery(ctx, req.DeliveryID), conn, req)
	case protocol.EventTrackDelivery:
		req, err := protocol.DecodeTrack(env.Data)
		if err != nil {
			return err
		}
		return s.subscriptions.Subscribe(s.withDelivery(ctx, req.DeliveryID), conn, req.DeliveryID)
	case protocol.EventStopTracking:
		req, err := protocol.DecodeTrack(env.Data)
		if err != nil {
			return err
		}
		s.subscriptions.Unsubscribe(conn, req.DeliveryID)
		return nil
	default:
		return apperr.Newf(apperr.CodeValidation, "unknown event %q", env.Event)
	}
}

// LocationUpdate, StatusUpdate, Subscribe and Unsubscribe are the typed entry
// points behind Handle, for transports that decode payloads themselves.
func (s *Service) LocationUpdate(ctx context.Context, conn *Connection, req protocol.LocationUpdateRequest) error {
	return s.location.Handle(s.withDelivery(s.logContext(ctx, conn), req.DeliveryID), conn, req)
}

func (s *Service) StatusUpdate(ctx context.Context, conn *Connection, req protocol.StatusUpdateRequest) error {
	return s.status.Handle(s.withDelivery(s.logContext(ctx, conn), req.DeliveryID), conn, req)
}

func (s *Service) Subscribe(ctx context.Context, conn *Connection, deliveryID string) error {
	return s.subscriptions.Subscribe(s.withDelivery(s.logContext(ctx, conn), deliveryID), conn, deliveryID)
}

func (s *Service) Unsubscribe(conn *Connection, deliveryID string) {
	s.subscriptions.Unsubscribe(conn, deliveryID)
}

func (s *Service) fail(ctx context.Context, conn *Connection, err error) {
	code := apperr.CodeOf(err)
	s.deps.Metrics.IncError(string(code))
	if code == apperr.CodeInternal || code == apperr.CodeDependency {
		s.deps.Logger.Error(ctx, "event handling failed", err)
	} else {
		s.deps.Logger.Warn(ctx, "event rejected", err)
	}
	s.deps.Rooms.Send(conn.client, protocol.Error(string(code), apperr.PublicMessage(err)))
}

func (s *Service) logContext(ctx context.Context, conn *Connection) context.Context {
	ctx = s.deps.Logger.WithConnection(ctx, conn.ID)
	return s.deps.Logger.WithPrincipal(ctx, conn.Principal.SubjectID, string(conn.Principal.Role))
}

func (s *Service) withDelivery(ctx context.Context, deliveryID string) context.Context {
	if deliveryID == "" {
		return ctx
	}
	return s.deps.Logger.WithDelivery(ctx, deliveryID)
}

// broadcast fans msg out to rooms and records how many clients accepted it.
func broadcast(d *Deps, msg protocol.Outbound, roomNames ...string) int {
	var n int
	if len(roomNames) == 1 {
		n = d.Rooms.Broadcast(roomNames[0], msg)
	} else {
		n = d.Rooms.BroadcastRooms(roomNames, msg)
	}
	d.Metrics.AddBroadcast(msg.Event, n)
	return n
}

func internalError(err error, msg string) error {
	return apperr.Wrap(apperr.CodeInternal, err, msg)
}
