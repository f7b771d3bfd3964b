package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthInitialInterval = 200 * time.Millisecond
	healthMaxInterval     = time.Second
	healthCallTimeout     = time.Second
)

// NotServingError reports the last status a reachable health service
// returned.
type NotServingError struct {
	Status grpc_health_v1.HealthCheckResponse_ServingStatus
}

func (e *NotServingError) Error() string {
	return "health status " + e.Status.String()
}

// WaitForHealth polls the health service with exponential backoff until it
// reports SERVING for service or ctx ends.
func WaitForHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logf func(string, ...any)) error {
	if conn == nil {
		return errors.New("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := grpc_health_v1.NewHealthClient(conn)
	var lastErr error
	check := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, healthCallTimeout)
		defer cancel()
		err := checkOnce(callCtx, client, service)
		if err != nil && ctx.Err() == nil {
			lastErr = err
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = healthInitialInterval
	policy.MaxInterval = healthMaxInterval
	notify := func(err error, next time.Duration) {
		if logf != nil {
			logf("waiting for gRPC health: %v (retry in %s)", err, next)
		}
	}

	if _, err := backoff.Retry(ctx, check, backoff.WithBackOff(policy), backoff.WithNotify(notify)); err != nil {
		if lastErr != nil && !errors.Is(err, lastErr) {
			err = fmt.Errorf("%w (last check: %w)", err, lastErr)
		}
		return fmt.Errorf("wait for gRPC health: %w", err)
	}
	if logf != nil {
		logf("gRPC health check is SERVING")
	}
	return nil
}

func checkOnce(ctx context.Context, client grpc_health_v1.HealthClient, service string) error {
	response, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if status := response.GetStatus(); status != grpc_health_v1.HealthCheckResponse_SERVING {
		return &NotServingError{Status: status}
	}
	return nil
}
