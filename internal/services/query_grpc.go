package services

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// QueryServiceName is the fully qualified gRPC service name
const QueryServiceName = "wolfcreek.v1.QueryService"

// QueryServer is the gRPC surface of the query service. Responses are JSON
// documents carried as structpb.Struct.
type QueryServer interface {
	ListCycles(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.Struct, error)
	GetCycle(ctx context.Context, cycleID *wrapperspb.StringValue) (*structpb.Struct, error)
	RecentCaptures(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.Struct, error)
	ListRoutes(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error)
}

// QueryServiceDesc registers a QueryServer with a grpc.ServiceRegistrar
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: QueryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListCycles",
			Handler: unaryHandler("ListCycles", func(s QueryServer, ctx context.Context, in *wrapperspb.Int32Value) (*structpb.Struct, error) {
				return s.ListCycles(ctx, in)
			}),
		},
		{
			MethodName: "GetCycle",
			Handler: unaryHandler("GetCycle", func(s QueryServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.GetCycle(ctx, in)
			}),
		},
		{
			MethodName: "RecentCaptures",
			Handler: unaryHandler("RecentCaptures", func(s QueryServer, ctx context.Context, in *wrapperspb.Int32Value) (*structpb.Struct, error) {
				return s.RecentCaptures(ctx, in)
			}),
		},
		{
			MethodName: "ListRoutes",
			Handler: unaryHandler("ListRoutes", func(s QueryServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.ListRoutes(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wolfcreek/v1/query.proto",
}

// unaryHandler adapts a typed call into a grpc.MethodHandler
func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}](method string, call func(QueryServer, context.Context, PReq) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + QueryServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(QueryServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ListCycles implements QueryServer
func (q *QueryService) ListCycles(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.Struct, error) {
	cycles, err := q.Cycles(ctx, int(limit.GetValue()))
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"cycles": cycles, "count": len(cycles)})
}

// GetCycle implements QueryServer
func (q *QueryService) GetCycle(ctx context.Context, cycleID *wrapperspb.StringValue) (*structpb.Struct, error) {
	if cycleID.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "cycle id is required")
	}
	d, err := q.Dashboard(ctx, cycleID.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(d)
}

// RecentCaptures implements QueryServer
func (q *QueryService) RecentCaptures(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.Struct, error) {
	captures, err := q.Recent(ctx, int(limit.GetValue()))
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"captures": captures, "count": len(captures)})
}

// ListRoutes implements QueryServer
func (q *QueryService) ListRoutes(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	routes, err := q.Routes(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"routes": routes})
}

// toStruct converts a JSON-encodable value into a structpb.Struct
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

func grpcError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
