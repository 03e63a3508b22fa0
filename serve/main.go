// Command chordletd is the chordlet daemon.
// It listens on a Unix domain socket for key events from front ends, runs one
// typing session per connection against the configured decoding service, and
// streams the resulting views back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	chordlet "github.com/Paranoid-AF/chordlet"
	"github.com/Paranoid-AF/chordlet/observe"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response to stderr")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	flag.Parse()

	if *showVersion {
		fmt.Println("chordletd", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*metricsAddr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := chordlet.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, w := range chordlet.ValidateConfig(cfg) {
		slog.Warn("config", "warning", w)
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer shutdown(context.Background())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			slog.Info("serving metrics", "addr", metricsAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	socketPath := resolveSocketPath()
	slog.Info("starting", "socket", socketPath, "service", chordlet.ResolveServiceURL(cfg))

	srv, err := NewServer(socketPath, cfg, observe.DefaultMetrics())
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	g.Go(func() error {
		slog.Info("ready")
		if err := srv.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		srv.Close()
		return nil
	})
	g.Go(func() error {
		if err := watchConfig(gctx, chordlet.ConfigPath(), func() { srv.Reload() }); err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func resolveSocketPath() string {
	if path := os.Getenv("CHORDLET_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/chordlet.sock"
	}
	return fmt.Sprintf("/tmp/chordlet-%d.sock", os.Getuid())
}
