// Package admin exposes session administration over gRPC. Messages are
// protobuf well-known wrapper types, so no generated code is needed.
package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "ratewise.admin.SessionAdmin"

const (
	methodCountSessions  = "CountSessions"
	methodRevokeSessions = "RevokeSessions"
	methodSuspendUser    = "SuspendUser"
	methodActivateUser   = "ActivateUser"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// SessionAdminServer takes user ids as StringValue.
type SessionAdminServer interface {
	CountSessions(ctx context.Context, userID *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	RevokeSessions(ctx context.Context, userID *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	SuspendUser(ctx context.Context, userID *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	ActivateUser(ctx context.Context, userID *wrapperspb.StringValue) (*emptypb.Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCountSessions, Handler: unary(methodCountSessions, SessionAdminServer.CountSessions)},
		{MethodName: methodRevokeSessions, Handler: unary(methodRevokeSessions, SessionAdminServer.RevokeSessions)},
		{MethodName: methodSuspendUser, Handler: unary(methodSuspendUser, SessionAdminServer.SuspendUser)},
		{MethodName: methodActivateUser, Handler: unary(methodActivateUser, SessionAdminServer.ActivateUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ratewise/admin.proto",
}

func RegisterSessionAdminServer(s grpc.ServiceRegistrar, srv SessionAdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to grpc.MethodHandler.
func unary[Resp proto.Message](
	name string,
	call func(SessionAdminServer, context.Context, *wrapperspb.StringValue) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SessionAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(name),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SessionAdminServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}
