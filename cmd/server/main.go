// Package main provides the entry point for the dependency index TCP
// server. Adapted from the teacher's app/cmd/server/main.go: same
// signal-driven graceful shutdown and optional admin HTTP server, but
// the flag surface and logger now come from internal/config and
// go.uber.org/zap instead of a bare -addr/-quiet flag pair and the
// standard log package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kitsutliff/depindex/internal/config"
	"github.com/kitsutliff/depindex/internal/server"
	"github.com/kitsutliff/depindex/internal/store"
	"github.com/kitsutliff/depindex/internal/store/fsstore"
	"github.com/kitsutliff/depindex/internal/store/memstore"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "depindex-server: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped successfully")
}

func newLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	prodCfg := zap.NewProductionConfig()
	prodCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return zap.Must(prodCfg.Build())
}

// run encapsulates server construction, startup, and graceful shutdown,
// kept separate from main so it can be exercised from main_test.go.
func run(cfg config.Config, log *zap.Logger) error {
	st, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := server.New(addr, st, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting dependency index server", zap.String("addr", addr), zap.String("store", string(cfg.Variant)))
		serverErr <- srv.StartWithContext(ctx)
	}()

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminServer = startAdminServer(cfg.AdminAddr, srv, cfg.Variant, log)
	}

	select {
	case <-stop:
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown: %w", err)
		}
	}

	return nil
}

// openStore selects the store.Store implementation named by cfg.Variant,
// the polymorphic seam spec.md §9 asks for instead of two parallel
// binaries.
func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Variant {
	case config.VariantMemory:
		return memstore.New(cfg.IndexDir, log)
	case config.VariantFilesystem:
		return fsstore.New(cfg.IndexDir, log)
	default:
		return nil, fmt.Errorf("unknown store variant %q", cfg.Variant)
	}
}

// startAdminServer mounts health, metrics, and pprof endpoints on a
// second HTTP listener, isolated from the line protocol the way the
// teacher's admin server keeps debugging surface off the main socket.
func startAdminServer(addr string, srv *server.Server, variant config.StoreVariant, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "healthy",
			"readiness": true,
			"liveness":  true,
			"store":     string(variant),
		})
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(srv.GetMetrics())
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	adminServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("starting admin HTTP server", zap.String("addr", addr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server error", zap.Error(err))
		}
	}()

	return adminServer
}
