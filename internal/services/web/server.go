package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/statehouse/internal/platform/branding"
	"github.com/louisbranch/statehouse/internal/platform/timeouts"
	"github.com/louisbranch/statehouse/internal/services/shared/i18nhttp"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/auth"
	"github.com/louisbranch/statehouse/internal/services/web/routepath"
	"github.com/louisbranch/statehouse/internal/services/web/storage"
	"github.com/louisbranch/statehouse/internal/store/async"
	"github.com/louisbranch/statehouse/internal/store/hydration"
)

// DefaultCounterName is the storage row backing the counter page.
const DefaultCounterName = storage.DefaultCounter

const (
	defaultSessionTTL  = 12 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
)

// Config defines the inputs for the web server.
type Config struct {
	HTTPAddr string
	AppName  string
	// Mode selects server-render, server-render-hydrate or client-render.
	Mode        hydration.Mode
	SessionTTL  time.Duration
	RememberTTL time.Duration
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Dependencies are the collaborators the handler needs.
type Dependencies struct {
	Storage       storage.Store
	Authenticator auth.Authenticator
	Scheduler     *async.Scheduler
	Logger        *slog.Logger
	Now           func() time.Time
}

// Server hosts the web HTTP server.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	storage    storage.Store
	logger     *slog.Logger
}

type handler struct {
	config    Config
	appName   string
	storage   storage.Store
	authn     auth.Authenticator
	scheduler *async.Scheduler
	logger    *slog.Logger
	now       func() time.Time

	counterMu sync.Mutex
}

func normalizeConfig(config Config) (Config, error) {
	if strings.TrimSpace(string(config.Mode)) == "" {
		config.Mode = hydration.ModeServerRenderHydrate
	}
	mode, err := hydration.ParseMode(string(config.Mode))
	if err != nil {
		return config, err
	}
	config.Mode = mode
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	if config.RememberTTL <= 0 {
		config.RememberTTL = defaultRememberTTL
	}
	return config, nil
}

// NewHandler creates the HTTP handler for pages and form actions.
func NewHandler(config Config, deps Dependencies) (http.Handler, error) {
	config, err := normalizeConfig(config)
	if err != nil {
		return nil, err
	}
	if deps.Storage == nil {
		return nil, errors.New("storage is required")
	}
	h := &handler{
		config:    config,
		appName:   strings.TrimSpace(config.AppName),
		storage:   deps.Storage,
		authn:     deps.Authenticator,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if h.appName == "" {
		h.appName = branding.AppName
	}
	if h.authn == nil {
		h.authn = auth.DemoAuthenticator
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.scheduler == nil {
		h.scheduler = async.NewScheduler(async.WithLogger(h.logger))
	}
	if h.now == nil {
		h.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+routepath.Health, h.handleHealth)
	mux.HandleFunc(http.MethodGet+" "+routepath.Root+"{$}", h.handleCounterPage)
	mux.HandleFunc(http.MethodGet+" "+routepath.Auth, h.handleAuthPage)
	mux.HandleFunc(http.MethodGet+" "+routepath.Tokens, h.handleTokensPage)
	mux.HandleFunc(http.MethodPost+" "+routepath.CounterIncrement, h.handleCounterAction)
	mux.HandleFunc(http.MethodPost+" "+routepath.CounterDecrement, h.handleCounterAction)
	mux.HandleFunc(http.MethodPost+" "+routepath.CounterReset, h.handleCounterAction)
	mux.HandleFunc(http.MethodPost+" "+routepath.AuthLogin, h.handleLogin)
	mux.HandleFunc(http.MethodPost+" "+routepath.AuthLogout, h.handleLogout)
	mux.HandleFunc(http.MethodPost+" "+routepath.TokensSort, h.handleTokensSort)
	mux.HandleFunc(http.MethodPost+" "+routepath.TokensSearch, h.handleTokensSearch)
	mux.HandleFunc(routepath.Root, h.handleNotFound)

	var root http.Handler = mux
	root = h.withRequestScope(root)
	root = i18nhttp.Middleware(root)
	root = canonicalPath(root)
	return root, nil
}

// NewServer builds a configured web server.
func NewServer(ctx context.Context, config Config, deps Dependencies) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	handler, err := NewHandler(config, deps)
	if err != nil {
		return nil, fmt.Errorf("build web handler: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
			BaseContext:       func(_ net.Listener) context.Context { return ctx },
		},
		storage: deps.Storage,
		logger:  logger,
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.httpAddr
}

// ListenAndServe runs the web server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("web server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	s.logger.Info("web listening", slog.String("addr", s.httpAddr))
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the storage held by the server.
func (s *Server) Close() {
	if s == nil || s.storage == nil {
		return
	}
	if err := s.storage.Close(); err != nil {
		s.logger.Warn("close web storage", slog.Any("err", err))
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
