package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/tracking"
)

// Transport labels websocket connections in logs and metrics.
const Transport = "websocket"

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 25 * time.Second
	defaultMaxMessage   = 8192
)

type Options struct {
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = defaultMaxMessage
	}
	return o
}

// Handler upgrades HTTP requests to tracking sockets. Each text frame is one
// {"event": ..., "data": ...} envelope in either direction.
type Handler struct {
	svc      *tracking.Service
	log      *logger.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(svc *tracking.Service, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		svc:  svc,
		log:  log,
		opts: opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Credentials travel in the token, never in cookies.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// TokenFromRequest reads the credential from the "token" query parameter or
// a bearer Authorization header. Browsers cannot set headers on upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok, nil
	}
	return auth.ParseBearer(r.Header.Get("Authorization"))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := TokenFromRequest(r)
	if err == nil {
		var conn *tracking.Connection
		conn, err = h.svc.Connect(ctx, Transport, token)
		if err == nil {
			h.serve(ctx, w, r, conn)
			return
		}
	}
	if apperr.As(err) == nil {
		err = apperr.Wrap(apperr.CodeAuthentication, err, "invalid credential")
	}
	http.Error(w, apperr.PublicMessage(err), apperr.MetadataFor(apperr.CodeOf(err)).HTTPStatus)
}

func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, conn *tracking.Connection) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.log.Warn(ctx, "websocket upgrade failed", err)
		h.svc.Disconnect(ctx, conn)
		return
	}
	go h.writePump(ctx, sock, conn)
	h.readPump(ctx, sock, conn)
}

// readPump owns all reads. Returning disconnects conn, which stops writePump.
func (h *Handler) readPump(ctx context.Context, sock *websocket.Conn, conn *tracking.Connection) {
	defer func() {
		h.svc.Disconnect(ctx, conn)
		_ = sock.Close()
	}()

	pongWait := 2 * h.opts.PingInterval
	sock.SetReadLimit(h.opts.MaxMessageBytes)
	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Warn(ctx, "websocket read failed", err)
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		_ = sock.SetReadDeadline(time.Now().Add(pongWait))
		h.svc.Dispatch(ctx, conn, data)
	}
}

// writePump owns all data writes to the socket.
func (h *Handler) writePump(ctx context.Context, sock *websocket.Conn, conn *tracking.Connection) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = sock.Close()
	}()

	for {
		select {
		case msg := <-conn.Messages():
			_ = sock.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := sock.WriteJSON(msg); err != nil {
				h.log.Warn(ctx, "websocket write failed", err)
				return
			}
		case <-ticker.C:
			_ = sock.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.Done():
			_ = sock.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.opts.WriteTimeout))
			return
		}
	}
}
