package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The admin service speaks protobuf well-known types only, so both sides share
// this descriptor instead of generated stubs.
const ServiceName = "chatrelay.admin.v1.RelayAdmin"

const (
	StatusFullMethodName    = "/" + ServiceName + "/Status"
	ListUsersFullMethodName = "/" + ServiceName + "/ListUsers"
	KickFullMethodName      = "/" + ServiceName + "/Kick"
	AnnounceFullMethodName  = "/" + ServiceName + "/Announce"
	StartFullMethodName     = "/" + ServiceName + "/Start"
	StopFullMethodName      = "/" + ServiceName + "/Stop"
	JournalFullMethodName   = "/" + ServiceName + "/Journal"
)

type RelayAdminServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListUsers(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Kick(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Announce(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Start(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	Stop(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Journal(context.Context, *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

var RelayAdmin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unaryHandler(StatusFullMethodName, RelayAdminServer.Status)},
		{MethodName: "ListUsers", Handler: unaryHandler(ListUsersFullMethodName, RelayAdminServer.ListUsers)},
		{MethodName: "Kick", Handler: unaryHandler(KickFullMethodName, RelayAdminServer.Kick)},
		{MethodName: "Announce", Handler: unaryHandler(AnnounceFullMethodName, RelayAdminServer.Announce)},
		{MethodName: "Start", Handler: unaryHandler(StartFullMethodName, RelayAdminServer.Start)},
		{MethodName: "Stop", Handler: unaryHandler(StopFullMethodName, RelayAdminServer.Stop)},
		{MethodName: "Journal", Handler: unaryHandler(JournalFullMethodName, RelayAdminServer.Journal)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chatrelay/admin/v1/admin.proto",
}

func RegisterRelayAdminServer(s grpc.ServiceRegistrar, srv RelayAdminServer) {
	s.RegisterService(&RelayAdmin_ServiceDesc, srv)
}

// unaryHandler decodes the request, then runs call through the interceptor chain.
func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(RelayAdminServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayAdminServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
