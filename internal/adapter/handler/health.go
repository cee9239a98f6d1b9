package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is a dependency the service cannot run without.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Check struct {
	Name   string
	Pinger Pinger
}

// HealthReporter publishes dependency health on the standard gRPC health
// service. Each check is reported under its own name; the empty service
// name is SERVING only while every check passes.
type HealthReporter struct {
	server  *health.Server
	checks  []Check
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthReporter(server *health.Server, timeout time.Duration, l *slog.Logger, checks ...Check) *HealthReporter {
	if l == nil {
		l = slog.Default()
	}
	return &HealthReporter{
		server:  server,
		checks:  checks,
		timeout: timeout,
		logger:  l.With(slog.String("component", "health")),
	}
}

// CheckOnce pings every dependency and updates the health status. It
// reports whether all of them answered.
func (h *HealthReporter) CheckOnce(ctx context.Context) bool {
	healthy := true
	for _, c := range h.checks {
		status := healthpb.HealthCheckResponse_SERVING

		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.Pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("dependency unhealthy",
				slog.String("check", c.Name),
				slog.String("error", err.Error()))
		}
		h.server.SetServingStatus(c.Name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", overall)
	return healthy
}

// Run checks on every tick until ctx is done.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CheckOnce(ctx)
		}
	}
}
