package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	platformgrpc "github.com/louisbranch/statehouse/internal/platform/grpc"
	"github.com/louisbranch/statehouse/internal/platform/timeouts"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client fetches fresh snapshots from the snapshot service.
type Client struct {
	conn    grpc.ClientConnInterface
	locale  string
	timeout time.Duration
	fetches atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLocale sends locale with every request so error details come back
// localized.
func WithLocale(locale string) ClientOption {
	return func(c *Client) {
		c.locale = strings.TrimSpace(locale)
	}
}

// WithRequestTimeout bounds each fetch. Zero disables the bound.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient wraps conn.
func NewClient(conn grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{conn: conn, timeout: timeouts.GRPCRequest}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the snapshot service at addr and waits until it reports
// SERVING.
func Dial(ctx context.Context, addr string, logf func(string, ...any), opts ...ClientOption) (*Client, *grpc.ClientConn, error) {
	conn, err := platformgrpc.Dial(ctx, platformgrpc.Target{
		Addr:          addr,
		HealthService: ServiceName,
		Timeout:       timeouts.GRPCDial,
		Logf:          logf,
	})
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn, opts...), conn, nil
}

// Fetches returns how many fetches the client has issued.
func (c *Client) Fetches() int64 {
	return c.fetches.Load()
}

// Fetch returns the current payload for key.
func (c *Client) Fetch(ctx context.Context, key string) (hydration.Payload, error) {
	if c == nil || c.conn == nil {
		return hydration.Payload{}, fmt.Errorf("snapshot client is not configured")
	}
	c.fetches.Add(1)

	req, err := structpb.NewStruct(map[string]any{"key": key})
	if err != nil {
		return hydration.Payload{}, fmt.Errorf("build snapshot request: %w", err)
	}
	if c.locale != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, LocaleMetadataKey, c.locale)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getSnapshotMethod, req, resp); err != nil {
		return hydration.Payload{}, fetchError(key, err)
	}

	fields := resp.GetFields()
	data, ok := fields["data"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return hydration.Payload{}, apperrors.WithMetadata(apperrors.CodePayloadMissing, "snapshot response has no data", map[string]string{
			"key": key,
		})
	}
	return hydration.Payload{Key: key, Data: data.StringValue}, nil
}

// fetchError keeps service domain errors intact and reports transport
// failures as network errors.
func fetchError(key string, err error) error {
	domainErr := apperrors.FromGRPCStatus(err)
	if domainErr.Code != apperrors.CodeUnknown {
		return domainErr
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return async.Network("fetch snapshot "+key, err)
	case codes.Canceled:
		return async.Cancelled(err)
	}
	return async.Failed("fetch snapshot "+key, err)
}
