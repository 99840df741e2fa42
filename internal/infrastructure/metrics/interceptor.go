package metrics

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor records every unary gRPC call under its status code.
// Calls ending in a server-side code count as errors, like 5xx responses do
// in HTTPMiddleware.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		duration := time.Since(start).Seconds()
		collector.RecordCall("grpc "+info.FullMethod, duration, serverFault(code))
		if exporter != nil {
			service, method := splitFullMethod(info.FullMethod)
			exporter.RecordGRPCRequest(service, method, code.String(), duration)
		}
		return resp, err
	}
}

func serverFault(code codes.Code) bool {
	switch code {
	case codes.Unknown, codes.Internal, codes.Unavailable, codes.DataLoss,
		codes.DeadlineExceeded, codes.Unimplemented:
		return true
	}
	return false
}

// splitFullMethod splits "/pkg.Service/Method" into its service and method
func splitFullMethod(fullMethod string) (string, string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "unknown", name
}
