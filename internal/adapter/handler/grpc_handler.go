package handler

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/port"
)

// HealthServer reports SERVING only while every backing store answers a ping.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	stores map[string]port.Pinger
	log    logrus.FieldLogger
}

func NewHealthServer(stores map[string]port.Pinger, log logrus.FieldLogger) *HealthServer {
	return &HealthServer{
		stores: stores,
		log:    log.WithField("component", "grpc-health"),
	}
}

func (h *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		if _, ok := h.stores[req.GetService()]; !ok {
			return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
		}
	}

	for name, store := range h.stores {
		if req.GetService() != "" && name != req.GetService() {
			continue
		}
		if err := store.Ping(ctx); err != nil {
			h.log.WithField("store", name).WithError(err).Warn("health ping failed")
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
