package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor rejects any RPC other than a List*/Get*/Health call.
// Wired onto a restricted listener (e.g. a Unix socket for local inspection
// tooling) so that PublishEnvelope, which mutates agent state, is only
// reachable over the mTLS TCP listener.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"write operations not allowed on this listener - use the mTLS TCP listener for PublishEnvelope",
			)
		}
		return handler(ctx, req)
	}
}

func isReadOnlyMethod(method string) bool {
	parts := strings.Split(method, "/")
	if len(parts) < 2 {
		return false
	}
	methodName := parts[len(parts)-1]

	readOnlyPrefixes := []string{"List", "Get"}
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(methodName, prefix) {
			return true
		}
	}

	readOnlyMethods := []string{"Health"}
	for _, allowed := range readOnlyMethods {
		if methodName == allowed {
			return true
		}
	}

	return false
}
