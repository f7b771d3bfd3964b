// Package grpc dials internal gRPC services and holds the connection back
// until the remote health service reports SERVING.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialFunc creates a client connection. gogrpc.NewClient satisfies it.
type DialFunc func(addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// Stage describes where a dial attempt failed.
type Stage string

const (
	// StageConnect indicates the client connection could not be created.
	StageConnect Stage = "connect"
	// StageHealth indicates the remote never reported SERVING.
	StageHealth Stage = "health"
)

// DialError wraps dial and health check failures with the failing stage.
type DialError struct {
	Addr  string
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	if e.Addr == "" {
		return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gRPC %s error for %s: %v", e.Stage, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Target describes one health-checked service endpoint.
type Target struct {
	Addr string
	// HealthService is the name checked with the health service. Empty
	// checks the server as a whole.
	HealthService string
	// Timeout bounds the whole dial including the health wait.
	Timeout time.Duration
	// Dial overrides gogrpc.NewClient.
	Dial DialFunc
	Logf func(string, ...any)
}

// ClientOptions returns the dial options internal clients share: plaintext
// transport and OTel stats so outbound calls carry trace context whenever a
// TracerProvider is registered.
func ClientOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial connects to target and waits for it to report SERVING. The
// connection is closed when the health wait fails. With no opts,
// ClientOptions is used.
func Dial(ctx context.Context, target Target, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	addr := strings.TrimSpace(target.Addr)
	if addr == "" {
		return nil, &DialError{Stage: StageConnect, Err: errors.New("address is required")}
	}
	dial := target.Dial
	if dial == nil {
		dial = gogrpc.NewClient
	}
	if len(opts) == 0 {
		opts = ClientOptions()
	}

	if target.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, target.Timeout)
		defer cancel()
	}

	conn, err := dial(addr, opts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: StageConnect, Err: err}
	}
	if err := WaitForHealth(ctx, conn, target.HealthService, target.Logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: StageHealth, Err: err}
	}
	return conn, nil
}
