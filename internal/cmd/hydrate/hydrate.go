// Package hydrate runs the headless hydrating client against a rendered
// page: it hydrates every store it can from the document, refetches the
// rest over gRPC and optionally keeps the token list live.
package hydrate

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	entrypoint "github.com/louisbranch/statehouse/internal/platform/cmd"
	"github.com/louisbranch/statehouse/internal/platform/discovery"
	"github.com/louisbranch/statehouse/internal/services/client"
	"github.com/louisbranch/statehouse/internal/services/shared/stores/tokens"
	"github.com/louisbranch/statehouse/internal/services/snapshot"
)

// Config holds the hydrate command configuration.
type Config struct {
	PageURL         string        `env:"HYDRATE_PAGE_URL"`
	SnapshotAddr    string        `env:"HYDRATE_SNAPSHOT_ADDR"`
	Locale          string        `env:"HYDRATE_LOCALE" envDefault:"en-US"`
	RefreshInterval time.Duration `env:"HYDRATE_REFRESH_INTERVAL" envDefault:"0s"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.PageURL, "url", cfg.PageURL, "Page URL to hydrate from")
	fs.StringVar(&cfg.SnapshotAddr, "snapshot-addr", cfg.SnapshotAddr, "Snapshot gRPC address")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale sent with snapshot requests")
	fs.DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "Live token refresh interval; zero exits after mounting")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.PageURL = discovery.OrDefaultHTTPBaseURL(cfg.PageURL, discovery.ServiceWeb)
	cfg.SnapshotAddr = discovery.OrDefaultGRPCAddr(cfg.SnapshotAddr, discovery.ServiceSnapshot)
	if cfg.RefreshInterval < 0 {
		return Config{}, fmt.Errorf("refresh interval must not be negative")
	}
	return cfg, nil
}

// Run hydrates the configured page and writes the mounted view to stdout.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHydrate, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdout, slog.Default())
	})
}

func run(ctx context.Context, cfg Config, out io.Writer, logger *slog.Logger) error {
	fetcher, conn, err := snapshot.Dial(ctx, cfg.SnapshotAddr, log.Printf, snapshot.WithLocale(cfg.Locale))
	if err != nil {
		return fmt.Errorf("dial snapshot: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close snapshot connection", slog.Any("err", err))
		}
	}()

	c := client.New(client.WithFetcher(fetcher), client.WithLogger(logger))
	if err := c.Load(ctx, cfg.PageURL); err != nil {
		return fmt.Errorf("load %s: %w", cfg.PageURL, err)
	}
	if err := c.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	view := &viewWriter{out: out}
	if err := view.mount(c); err != nil {
		return err
	}
	refetched, err := c.Refetch(ctx)
	if err != nil {
		return fmt.Errorf("refetch: %w", err)
	}
	for _, outcome := range c.Outcomes() {
		logger.Info("store hydrated",
			slog.String("store", outcome.Key),
			slog.Bool("from_payload", outcome.Hydrated()),
			slog.String("phase", outcome.Phase.String()),
		)
	}
	if refetched > 0 {
		if err := view.mount(c); err != nil {
			return err
		}
	}

	if cfg.RefreshInterval <= 0 {
		return nil
	}
	unsubscribe := c.Tokens().State().Subscribe(func(tokens.State) {
		if err := view.mount(c); err != nil {
			logger.Warn("remount after refresh", slog.Any("err", err))
		}
	})
	defer unsubscribe()

	stop, err := c.StartLiveRefresh(ctx, cfg.RefreshInterval)
	if err != nil {
		return fmt.Errorf("start live refresh: %w", err)
	}
	defer stop()

	<-ctx.Done()
	return nil
}

// viewWriter serializes mounts from the command and the refresh loop.
type viewWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (v *viewWriter) mount(c *client.Client) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := c.Mount(v.out); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	_, err := io.WriteString(v.out, strings.Repeat("-", 40)+"\n")
	return err
}
