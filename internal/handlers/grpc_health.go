package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DatabaseService is the gRPC health service name reporting database status
const DatabaseService = "relcalc.database"

// HealthReporter keeps the gRPC health service in sync with the database
type HealthReporter struct {
	checker HealthChecker
	server  *health.Server
	logger  *zap.Logger
	timeout time.Duration
}

// NewHealthReporter creates a new HealthReporter
func NewHealthReporter(checker HealthChecker, logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthReporter{
		checker: checker,
		server:  health.NewServer(),
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Register adds the health service to a gRPC server
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Server returns the underlying health server
func (h *HealthReporter) Server() *health.Server {
	return h.server
}

// Refresh checks the database and updates the reported status
func (h *HealthReporter) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.checker.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(DatabaseService, status)
	return status
}

// Shutdown marks every service as not serving
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
