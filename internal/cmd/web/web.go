// Package web wires the server-rendering web host and the snapshot gRPC
// service into one process.
package web

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/statehouse/internal/platform/cmd"
	"github.com/louisbranch/statehouse/internal/platform/discovery"
	"github.com/louisbranch/statehouse/internal/services/snapshot"
	"github.com/louisbranch/statehouse/internal/services/web"
	"github.com/louisbranch/statehouse/internal/services/web/storage/sqlite"
	"github.com/louisbranch/statehouse/internal/store/hydration"
	"golang.org/x/sync/errgroup"
)

// Config holds the web command configuration.
type Config struct {
	HTTPAddr      string        `env:"WEB_HTTP_ADDR"`
	SnapshotAddr  string        `env:"SNAPSHOT_ADDR"`
	DBPath        string        `env:"WEB_DB_PATH" envDefault:"data/statehouse-web.db"`
	AppName       string        `env:"WEB_APP_NAME" envDefault:"Statehouse"`
	Mode          string        `env:"WEB_MODE" envDefault:"server-render-hydrate"`
	SessionTTL    time.Duration `env:"WEB_SESSION_TTL" envDefault:"12h"`
	SecureCookies bool          `env:"WEB_SECURE_COOKIES" envDefault:"false"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.SnapshotAddr, "snapshot-addr", cfg.SnapshotAddr, "Snapshot gRPC listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.AppName, "app-name", cfg.AppName, "Application name shown in page titles")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Render mode: server-render, server-render-hydrate or client-render")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Session lifetime without remember-me")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "Mark session cookies Secure")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = discovery.ListenAddr(discovery.DefaultHTTPAddr(discovery.ServiceWeb))
	}
	if strings.TrimSpace(cfg.SnapshotAddr) == "" {
		cfg.SnapshotAddr = discovery.ListenAddr(discovery.DefaultGRPCAddr(discovery.ServiceSnapshot))
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return Config{}, fmt.Errorf("db path is required")
	}
	if _, err := hydration.ParseMode(cfg.Mode); err != nil {
		return Config{}, err
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the web host and the snapshot service until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	options := entrypoint.RunOptions{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceWeb, options, func(ctx context.Context) error {
		mode, err := hydration.ParseMode(cfg.Mode)
		if err != nil {
			return err
		}
		logger := slog.Default()

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open web storage: %w", err)
		}

		server, err := web.NewServer(ctx, web.Config{
			HTTPAddr:      cfg.HTTPAddr,
			AppName:       cfg.AppName,
			Mode:          mode,
			SessionTTL:    cfg.SessionTTL,
			SecureCookies: cfg.SecureCookies,
		}, web.Dependencies{
			Storage: store,
			Logger:  logger,
		})
		if err != nil {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close web storage: %v", closeErr)
			}
			return fmt.Errorf("init web server: %w", err)
		}
		defer server.Close()

		snapshotServer, err := snapshot.NewServer(cfg.SnapshotAddr, snapshot.NewService(
			snapshot.StorageLoaders(store),
			snapshot.WithLogger(logger),
		))
		if err != nil {
			return fmt.Errorf("init snapshot server: %w", err)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			if err := server.ListenAndServe(groupCtx); err != nil {
				return fmt.Errorf("serve web: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			if err := snapshotServer.Serve(groupCtx); err != nil {
				return fmt.Errorf("serve snapshot: %w", err)
			}
			return nil
		})
		return group.Wait()
	})
}

func parseLogLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", value, err)
	}
	return level, nil
}
