package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func status(t *testing.T, srv *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter_AllHealthy(t *testing.T) {
	srv := health.NewServer()
	ok := pingerFunc(func(ctx context.Context) error { return nil })
	reporter := NewHealthReporter(srv, time.Second, nil,
		Check{Name: "mysql", Pinger: ok},
		Check{Name: "redis", Pinger: ok},
	)

	assert.True(t, reporter.CheckOnce(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, srv, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, srv, "mysql"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, srv, "redis"))
}

func TestHealthReporter_OneDown(t *testing.T) {
	srv := health.NewServer()
	reporter := NewHealthReporter(srv, time.Second, nil,
		Check{Name: "mysql", Pinger: pingerFunc(func(ctx context.Context) error { return nil })},
		Check{Name: "redis", Pinger: pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })},
	)

	assert.False(t, reporter.CheckOnce(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, srv, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, srv, "mysql"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, srv, "redis"))
}

func TestHealthReporter_PingTimeout(t *testing.T) {
	srv := health.NewServer()
	slow := pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	reporter := NewHealthReporter(srv, 10*time.Millisecond, nil, Check{Name: "mysql", Pinger: slow})

	assert.False(t, reporter.CheckOnce(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, srv, "mysql"))
}

func TestHealthReporter_RunStopsWithContext(t *testing.T) {
	srv := health.NewServer()
	calls := make(chan struct{}, 16)
	reporter := NewHealthReporter(srv, time.Second, nil, Check{Name: "mysql", Pinger: pingerFunc(func(ctx context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reporter.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	<-calls
	<-calls
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}
