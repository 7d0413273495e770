package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"payshield-service/internal/config"
	"payshield-service/internal/factory"
	"payshield-service/internal/handler"
	"payshield-service/internal/util"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the cache monitor and maintenance sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			f, err := factory.NewFactory(ctx, config.LoadConfig())
			if err != nil {
				return err
			}
			defer f.Close()

			f.Start(ctx)
			return serve(ctx, f)
		},
	}
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) http.Handler {
	cfg := f.Config()
	badges := handler.NewBadgeHandler(f.ServiceFactory(), util.Get())
	return handler.NewRouter(badges, f.Health(), handler.RouterOptions{
		RequireTLS:     cfg.Server.EnableTLS,
		APIToken:       cfg.API.InternalToken,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Sweeper:        f.Maintenance(),
	}, util.Get())
}

func serve(ctx context.Context, f *factory.Factory) error {
	cfg := f.Config()
	router := setupRouter(f)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	servers := []*http.Server{server}

	if cfg.Server.EnableTLS {
		server.Addr = fmt.Sprintf(":%d", cfg.Server.TLSPort)
		server.TLSConfig = f.TLSManager().GetTLSConfig()

		// ACME http-01 challenges need a plain listener on :80.
		if acm := f.TLSManager().GetAutocertManager(); acm != nil && cfg.IsProduction() {
			server.Addr = ":443"
			servers = append(servers, &http.Server{
				Addr:              ":80",
				Handler:           acm.HTTPHandler(nil),
				ReadHeaderTimeout: cfg.Server.ReadTimeout,
			})
		}
	} else {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			var err error
			if srv.TLSConfig != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.String("address", server.Addr))

	var serveErr error
	select {
	case <-ctx.Done():
		util.Info("Received shutdown signal")
	case serveErr = <-errCh:
		util.Error("Server failed", util.ErrorField(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err), util.String("address", srv.Addr))
		}
	}
	return serveErr
}
