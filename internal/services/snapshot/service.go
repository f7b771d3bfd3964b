// Package snapshot serves fresh store snapshots over gRPC.
//
// A client whose hydration fell back to a default store asks this service
// for the current payload of that store and applies it through the store's
// public snapshot action. Requests and responses are structpb.Struct values:
//
//	request:  {"key": "counter"}
//	response: {"key": "counter", "data": "{\"count\":5}"}
package snapshot

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "statehouse.snapshot.v1.SnapshotService"

	getSnapshotMethod = "/" + ServiceName + "/GetSnapshot"

	// LocaleMetadataKey carries the caller's preferred locale.
	LocaleMetadataKey = "accept-language"
)

// SnapshotServer is the server API for the snapshot service.
type SnapshotServer interface {
	GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the snapshot service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetSnapshot",
			Handler:    getSnapshotHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statehouse/snapshot/v1/snapshot.proto",
}

// RegisterSnapshotServer registers srv on s.
func RegisterSnapshotServer(s grpc.ServiceRegistrar, srv SnapshotServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getSnapshotMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotServer).GetSnapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Loader produces the serialized snapshot of one store from server data.
type Loader func(ctx context.Context) (string, error)

// Service implements SnapshotServer over a set of loaders keyed by store key.
type Service struct {
	loaders map[string]Loader
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService returns a service answering for every key in loaders.
func NewService(loaders map[string]Loader, opts ...Option) *Service {
	copied := make(map[string]Loader, len(loaders))
	for key, loader := range loaders {
		if loader != nil {
			copied[key] = loader
		}
	}
	s := &Service{loaders: copied, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the store keys the service can load, sorted.
func (s *Service) Keys() []string {
	keys := make([]string, 0, len(s.loaders))
	for key := range s.loaders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetSnapshot loads the current snapshot for the requested key.
func (s *Service) GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	locale := localeFromContext(ctx)
	key := strings.TrimSpace(req.GetFields()["key"].GetStringValue())
	if key == "" {
		return nil, apperrors.HandleError(apperrors.New(apperrors.CodeInvalidIdentity, "snapshot key is required"), locale)
	}

	loader, ok := s.loaders[key]
	if !ok {
		return nil, apperrors.HandleError(apperrors.WithMetadata(apperrors.CodePayloadMissing, "no loader for key", map[string]string{
			"key": key,
		}), locale)
	}

	data, err := loader(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "snapshot load failed", slog.String("store", key), slog.Any("err", err))
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			err = apperrors.WrapWithMetadata(apperrors.CodeSerialization, "load snapshot", map[string]string{
				"key": key,
			}, err)
		}
		return nil, apperrors.HandleError(err, locale)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"key":  key,
		"data": data,
	})
	if err != nil {
		return nil, apperrors.HandleError(apperrors.WrapWithMetadata(apperrors.CodeSerialization, "build snapshot response", map[string]string{
			"key": key,
		}, err), locale)
	}
	return resp, nil
}

func localeFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return apperrors.DefaultLocale
	}
	values := md.Get(LocaleMetadataKey)
	if len(values) == 0 {
		return apperrors.DefaultLocale
	}
	locale, _, _ := strings.Cut(values[0], ",")
	locale, _, _ = strings.Cut(locale, ";")
	if locale = strings.TrimSpace(locale); locale == "" {
		return apperrors.DefaultLocale
	}
	return locale
}

var _ SnapshotServer = (*Service)(nil)
