package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, store, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error("Failed to close store", log.FieldError, err)
				}
			}()
			if port != "" {
				cfg.Port = port
			}
			return runServe(ctx, cfg, logger, store.Store)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides PORT")

	return cmd
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger, store storage.Store) error {
	responses := cache.New(cfg.CacheMaxEntries, cfg.CacheTTL)

	var publisher services.ChangePublisher
	events := connectEvents(cfg, logger)
	if events != nil {
		publisher = events
		defer events.Close()

		invalidation := worker.NewInvalidationWorker(events, responses, logger.Slog(log.ComponentWorker))
		go func() {
			if err := invalidation.Run(ctx); err != nil {
				logger.Error("Invalidation worker stopped", log.FieldError, err)
			}
		}()
	}

	svc := buildServices(cfg, store, responses, publisher, logger)
	srv := apphttp.NewServer(apphttp.Options{
		Addr:               cfg.Addr(),
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, svc, responses, store, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting fintrack server",
			log.FieldOperation, log.OpStartup,
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"amqp_enabled", events != nil,
			"ai_enabled", cfg.AIEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "addr", srv.Addr)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// connectEvents dials the broker when AMQP_URL is set. A broker that cannot
// be reached disables change events instead of failing startup.
func connectEvents(cfg *config.Config, logger *log.Logger) *amqp.Client {
	if !cfg.AMQPEnabled() {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger.Slog(log.ComponentAMQP))
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "origin", client.Origin())
	return client
}
