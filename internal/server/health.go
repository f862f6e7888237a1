package server

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService exposes the standard gRPC health protocol for the process.
// The overall status starts NOT_SERVING and follows the Lifecycle through
// SetServing.
type HealthService struct {
	addr   string
	logger *zap.Logger
	health *health.Server
	grpc   *grpc.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHealthService creates a health service that will listen on addr.
//
// Precondition: addr must be a valid "host:port"; logger must be non-nil.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthService{
		addr:   addr,
		logger: logger,
		health: hs,
		grpc:   gs,
	}
}

// SetServing implements StatusReporter.
func (h *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Addr returns the bound listener address, or the configured address before Start.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.addr
}

// Listen binds the listener without serving. Start calls it when needed.
func (h *HealthService) Listen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.listener = ln
	return nil
}

// Start serves health checks and blocks until Stop is called.
func (h *HealthService) Start() error {
	if err := h.Listen(); err != nil {
		return err
	}
	h.mu.Lock()
	ln := h.listener
	h.mu.Unlock()

	h.logger.Info("health service listening", zap.String("addr", ln.Addr().String()))
	if err := h.grpc.Serve(ln); err != nil {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

// Stop marks the process NOT_SERVING and drains the gRPC server.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
