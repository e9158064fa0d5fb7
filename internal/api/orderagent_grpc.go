package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// OrderAgentServiceName is the fully-qualified gRPC service name.
const OrderAgentServiceName = "orderagent.v1.OrderAgent"

const (
	methodRunQuery      = "/" + OrderAgentServiceName + "/RunQuery"
	methodGetModelStats = "/" + OrderAgentServiceName + "/GetModelStats"
	methodListRuns      = "/" + OrderAgentServiceName + "/ListRuns"
)

// OrderAgentServer is the server API for the OrderAgent service. Payloads are
// google.protobuf.Struct documents shaped like the HTTP JSON bodies.
type OrderAgentServer interface {
	RunQuery(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetModelStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedOrderAgentServer can be embedded for forward compatibility.
type UnimplementedOrderAgentServer struct{}

func (UnimplementedOrderAgentServer) RunQuery(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method RunQuery not implemented")
}

func (UnimplementedOrderAgentServer) GetModelStats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetModelStats not implemented")
}

func (UnimplementedOrderAgentServer) ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRuns not implemented")
}

// RegisterOrderAgentServer registers srv on s.
func RegisterOrderAgentServer(s grpc.ServiceRegistrar, srv OrderAgentServer) {
	s.RegisterService(&OrderAgentServiceDesc, srv)
}

// OrderAgentServiceDesc describes the OrderAgent service for grpc.Server.
var OrderAgentServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderAgentServiceName,
	HandlerType: (*OrderAgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunQuery", Handler: runQueryHandler},
		{MethodName: "GetModelStats", Handler: getModelStatsHandler},
		{MethodName: "ListRuns", Handler: listRunsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderagent/v1/orderagent.proto",
}

func runQueryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderAgentServer).RunQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRunQuery}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderAgentServer).RunQuery(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getModelStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderAgentServer).GetModelStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetModelStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderAgentServer).GetModelStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderAgentServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListRuns}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderAgentServer).ListRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderAgentClient is the client API for the OrderAgent service.
type OrderAgentClient interface {
	RunQuery(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetModelStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type orderAgentClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderAgentClient wraps a connection.
func NewOrderAgentClient(cc grpc.ClientConnInterface) OrderAgentClient {
	return &orderAgentClient{cc: cc}
}

func (c *orderAgentClient) RunQuery(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRunQuery, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderAgentClient) GetModelStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetModelStats, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderAgentClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListRuns, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
