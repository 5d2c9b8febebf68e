package api

import (
	"context"

	"google.golang.org/grpc"
)

func listActiveAgentsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ListActiveAgentsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).listActiveAgents(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListActiveAgents"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).listActiveAgents(ctx, req.(*ListActiveAgentsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getAgentStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(GetAgentStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).getAgentStatus(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetAgentStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).getAgentStatus(ctx, req.(*GetAgentStatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func publishEnvelopeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PublishEnvelopeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).publishEnvelope(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PublishEnvelope"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).publishEnvelope(ctx, req.(*PublishEnvelopeRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func healthHandlerRPC(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(HealthRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).health(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Health"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListActiveAgents", Handler: listActiveAgentsHandler},
		{MethodName: "GetAgentStatus", Handler: getAgentStatusHandler},
		{MethodName: "PublishEnvelope", Handler: publishEnvelopeHandler},
		{MethodName: "Health", Handler: healthHandlerRPC},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gagents/admin.proto",
}
