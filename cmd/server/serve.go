package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/platform/otel"
	"github.com/rl1809/storefront/internal/port"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, migrate bool) error {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	shutdownTracing, err := otel.Setup(ctx, serviceName, a.cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	if migrate {
		applied, err := a.store.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.WithField("applied", applied).Info("migrations up to date")
	}

	// Initialize services
	auth := service.NewAuthService(a.store, a.kv, service.AuthConfig{SessionTTL: a.cfg.SessionTTL}, log)
	sessions := service.NewSessionRegistry(auth, a.store, log)
	catalog := service.NewCatalogService(a.store, a.kv, log)
	checkout := service.NewCheckoutService(a.store, a.store, a.kv, a.kv, log)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, handler.NewHealthServer(map[string]port.Pinger{
		"database": a.store,
		"sessions": a.kv,
	}, log))

	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(auth, sessions, catalog, checkout, log)
	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httpHandler.Router(serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", a.cfg.GRPCAddr).Info("gRPC server listening")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.WithField("addr", a.cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sweepIdleSessions(gctx, sessions, a.cfg.SessionIdleTimeout, log)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP shutdown incomplete")
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")

		sessions.CloseAll(shutdownCtx)
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("flush traces failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("connections closed")
	return nil
}

// sweepIdleSessions closes sessions idle for longer than idle until ctx ends.
func sweepIdleSessions(ctx context.Context, sessions *service.SessionRegistry, idle time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(ctx, idle); n > 0 {
				log.WithFields(logrus.Fields{"closed": n, "live": sessions.Len()}).Debug("swept idle sessions")
			}
		}
	}
}
