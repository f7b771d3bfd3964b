package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/louisbranch/statehouse/internal/platform/id"
	"github.com/louisbranch/statehouse/internal/platform/requestctx"
	"github.com/louisbranch/statehouse/internal/services/shared/route"
	"github.com/louisbranch/statehouse/internal/store/hydration/embed"
	"github.com/louisbranch/statehouse/internal/store/registry"
)

// RequestIDHeader echoes the request identifier to the caller.
const RequestIDHeader = "X-Request-Id"

// withRequestScope gives every request a fresh registry scope and payload
// collector. Nothing provided for one request is visible to another.
func (h *handler) withRequestScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, err := id.NewID()
		if err != nil {
			requestID = registry.NewScopeID()
		}
		ctx := registry.WithRegistry(r.Context(), registry.New("request"))
		ctx = embed.WithCollector(ctx, embed.NewCollector())
		ctx = requestctx.WithRequestID(ctx, requestID)
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		h.logger.DebugContext(ctx, "request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(body []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(body)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// canonicalPath redirects safe requests for paths with a trailing slash to
// the path without it.
func canonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route.RedirectTrailingSlash(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}
