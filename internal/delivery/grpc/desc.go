package grpc

import (
	"context"

	pkgGrpc "github.com/vogiaan1904/pelotond/pkg/grpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// WorldServiceServer is the admin surface of the relay. Messages are the
// well-known protobuf types so no generated code is needed.
type WorldServiceServer interface {
	GetWorldCounts(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListOnline(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	Kick(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
}

func RegisterWorldServiceServer(s grpc.ServiceRegistrar, srv WorldServiceServer) {
	s.RegisterService(&worldServiceDesc, srv)
}

var worldServiceDesc = grpc.ServiceDesc{
	ServiceName: pkgGrpc.WorldServiceName,
	HandlerType: (*WorldServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetWorldCounts", Handler: getWorldCountsHandler},
		{MethodName: "ListOnline", Handler: listOnlineHandler},
		{MethodName: "Kick", Handler: kickHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pelotond/relay/v1/world.proto",
}

func getWorldCountsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).GetWorldCounts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pkgGrpc.GetWorldCountsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorldServiceServer).GetWorldCounts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listOnlineHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).ListOnline(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pkgGrpc.ListOnlineMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorldServiceServer).ListOnline(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func kickHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorldServiceServer).Kick(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pkgGrpc.KickMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WorldServiceServer).Kick(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}
