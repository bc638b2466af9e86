package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/tracking"
)

const (
	ServiceName = "tracking.v1.TrackingService"
	// StreamMethod is the full method name of the bidirectional event stream.
	StreamMethod = "/" + ServiceName + "/Stream"
	// Transport labels gRPC stream connections in logs and metrics.
	Transport = "grpc"
)

// TrackingServiceServer carries the socket protocol over a gRPC stream. Every
// message is a google.protobuf.Struct shaped {"event": ..., "data": ...}.
type TrackingServiceServer interface {
	Stream(grpc.ServerStream) error
}

// ServiceDesc is registered by hand; the messages are well-known types so no
// generated stubs are needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackingServiceServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Stream",
		Handler:       streamHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "tracking/v1/tracking.proto",
}

func RegisterTrackingServiceServer(s grpc.ServiceRegistrar, srv TrackingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TrackingServiceServer).Stream(stream)
}

type StreamServer struct {
	Tracking *tracking.Service
	Logger   *logger.Logger
}

func (s *StreamServer) Stream(stream grpc.ServerStream) error {
	ctx := stream.Context()
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return toStatus(err)
	}
	conn := s.Tracking.Attach(ctx, Transport, p)
	defer s.Tracking.Disconnect(ctx, conn)

	recvErr := make(chan error, 1)
	go func() { recvErr <- s.recv(ctx, stream, conn) }()

	for {
		select {
		case msg := <-conn.Messages():
			out, err := toStruct(msg)
			if err != nil {
				s.logger().Error(ctx, "encode stream message", err)
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case err := <-recvErr:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// recv feeds client messages to the tracking service until the client
// half-closes or the stream breaks.
func (s *StreamServer) recv(ctx context.Context, stream grpc.ServerStream, conn *tracking.Connection) error {
	for {
		in := &structpb.Struct{}
		if err := stream.RecvMsg(in); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		raw, err := protojson.Marshal(in)
		if err != nil {
			s.logger().Warn(ctx, "decode stream message", err)
			continue
		}
		s.Tracking.Dispatch(ctx, conn, raw)
	}
}

func (s *StreamServer) logger() *logger.Logger {
	if s.Logger == nil {
		return logger.Nop()
	}
	return s.Logger
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// toStatus maps an application error onto its gRPC status.
func toStatus(err error) error {
	return status.Error(apperr.MetadataFor(apperr.CodeOf(err)).GRPCCode, apperr.PublicMessage(err))
}
