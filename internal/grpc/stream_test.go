package grpcserver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/testutil"
	"deliveryTracking/internal/tracking"
	"deliveryTracking/repository"
)

const secret = "grpc-test-secret"

func newClient(t *testing.T) *grpc.ClientConn {
	t.Helper()
	store := repository.NewSQLStore(testutil.OpenInMemoryDB(t, strings.ReplaceAll(t.Name(), "/", "_")))
	testutil.SeedDriver(t, store, "D1", true)
	testutil.SeedDelivery(t, store, testutil.NewDelivery("Del1", "O1", "C1", "R1", "D1", time.Now().UTC()))

	verifier := auth.NewJWTVerifier(secret, "")
	svc, err := tracking.New(tracking.Deps{Store: store, Verifier: verifier})
	if err != nil {
		t.Fatalf("tracking.New: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, verifier, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func openStream(t *testing.T, cc *grpc.ClientConn, token string) grpc.ClientStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	if token != "" {
		ctx = testutil.OutgoingBearer(ctx, token)
	}
	cs, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return cs
}

func sendEvent(t *testing.T, cs grpc.ClientStream, event string, data any) {
	t.Helper()
	msg, err := structpb.NewStruct(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if err := cs.SendMsg(msg); err != nil {
		t.Fatalf("SendMsg: %v", err)
	}
}

func recvEvent(t *testing.T, cs grpc.ClientStream) (string, map[string]any) {
	t.Helper()
	out := &structpb.Struct{}
	if err := cs.RecvMsg(out); err != nil {
		t.Fatalf("RecvMsg: %v", err)
	}
	m := out.AsMap()
	data, _ := m["data"].(map[string]any)
	return m["event"].(string), data
}

func TestStream_TrackDeliveryReturnsSnapshot(t *testing.T) {
	cc := newClient(t)
	cs := openStream(t, cc, testutil.GenerateJWT(t, secret, "C1", "customer"))

	sendEvent(t, cs, "track_delivery", "Del1")

	event, data := recvEvent(t, cs)
	if event != "delivery_status_update" {
		t.Fatalf("event=%q want delivery_status_update", event)
	}
	if data["deliveryId"] != "Del1" || data["status"] != "assigned" {
		t.Fatalf("unexpected snapshot: %v", data)
	}
}

func TestStream_DriverPushReachesTracker(t *testing.T) {
	cc := newClient(t)
	tracker := openStream(t, cc, testutil.GenerateJWT(t, secret, "R1", "restaurant"))
	driver := openStream(t, cc, testutil.GenerateJWT(t, secret, "D1", "delivery"))

	sendEvent(t, tracker, "track_delivery", map[string]any{"deliveryId": "Del1"})
	recvEvent(t, tracker)

	sendEvent(t, driver, "location_update", map[string]any{"latitude": 0.0, "longitude": -0.09, "deliveryId": "Del1"})

	event, data := recvEvent(t, tracker)
	if event != "location_update" {
		t.Fatalf("event=%q want location_update", event)
	}
	eta, _ := data["estimatedArrival"].(map[string]any)
	if eta["estimatedMinutes"] != float64(30) {
		t.Fatalf("estimatedArrival=%v want 30 minutes", eta)
	}
}

func TestStream_AnonymousCannotTrack(t *testing.T) {
	cc := newClient(t)
	cs := openStream(t, cc, "")

	sendEvent(t, cs, "track_delivery", "Del1")

	event, data := recvEvent(t, cs)
	if event != "error" || data["code"] != "AUTHORIZATION_DENIED" {
		t.Fatalf("got %q %v, want AUTHORIZATION_DENIED error", event, data)
	}
}

func TestStream_InvalidTokenRejected(t *testing.T) {
	cc := newClient(t)
	cs := openStream(t, cc, "not-a-jwt")

	err := cs.RecvMsg(&structpb.Struct{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code=%v want=%v", status.Code(err), codes.Unauthenticated)
	}
}

func TestHealthCheckNeedsNoCredential(t *testing.T) {
	cc := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status=%v", resp.GetStatus())
	}
}
