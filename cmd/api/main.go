package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hp-funnel/api/internal/bridge"
	"github.com/hp-funnel/api/internal/handlers"
	"github.com/hp-funnel/api/internal/platform/config"
	"github.com/hp-funnel/api/internal/platform/observability"
	"github.com/hp-funnel/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	bridgeClient, err := bridge.NewClient(bridge.ClientConfig{
		BaseURL: cfg.Bridge.BaseURL,
		Origin:  cfg.Funnel.AppOrigin,
		Timeout: cfg.Bridge.RequestTimeout,
		Logger:  observability.EventLogger(logger.Named("bridge")),
	})
	if err != nil {
		logger.Fatal("failed to initialise bridge client", zap.Error(err))
	}

	router := buildRouter(ctx, cfg, bridgeClient, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("funnel api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildRouter checks the funnel switch on boot and wires either the full API
// or the disabled-funnel redirect. The redirect is installed only when the
// switched-off status names a destination; status check failures and an "off"
// without a redirect URL fall through to the full API, since an unreachable
// or half-configured Bridge must not take the funnel down with it.
func buildRouter(ctx context.Context, cfg config.Config, bridgeClient *bridge.Client, logger *zap.Logger) chi.Router {
	healthHandlers := handlers.NewHealthHandlers()

	statusCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	status, err := bridgeClient.GetStatus(statusCtx, cfg.Funnel.ID)
	if err != nil {
		logger.Warn("funnel status check failed; continuing enabled", zap.Error(err))
	} else if strings.EqualFold(status.Mode, "off") {
		if redirect := strings.TrimSpace(status.RedirectURL); redirect != "" {
			logger.Info("funnel switched off; serving redirect",
				zap.String("funnel", cfg.Funnel.ID),
				zap.String("redirect_url", redirect))
			return handlers.DisabledFunnelRouter(redirect, healthHandlers)
		}
		logger.Warn("funnel switched off without a redirect destination; continuing enabled",
			zap.String("funnel", cfg.Funnel.ID))
	}

	validator := services.NewAddressValidator()
	eventLogger := observability.EventLogger(logger.Named("checkout"))

	registry, err := services.NewCheckoutRegistry(services.CheckoutRegistryDeps{
		Engine: services.CheckoutEngineDeps{
			Bridge:     bridgeClient,
			Validator:  validator,
			FunnelID:   cfg.Funnel.ID,
			FunnelName: cfg.Funnel.Name,
			SiteBase:   cfg.Bridge.SiteBase,
			SuccessURL: cfg.Funnel.SuccessReturnURL(),
			Logger:     eventLogger,
		},
		TTL: cfg.Funnel.SessionTTL,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout registry", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Bridge:          bridgeClient,
		ResolveInterval: cfg.Funnel.ResolvePollInterval,
		ResolveAttempts: cfg.Funnel.ResolvePollAttempts,
		Logger:          observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	upsellService, err := services.NewUpsellService(services.UpsellServiceDeps{
		Bridge:     bridgeClient,
		Orders:     orderService,
		FunnelName: cfg.Funnel.Name,
		Logger:     observability.EventLogger(logger.Named("upsell")),
	})
	if err != nil {
		logger.Fatal("failed to initialise upsell service", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	catalogHandlers := handlers.NewCatalogHandlers()
	selectionHandlers := handlers.NewSelectionHandlers()
	checkoutHandlers := handlers.NewCheckoutHandlers(registry)
	upsellHandlers := handlers.NewUpsellHandlers(upsellService)
	orderHandlers := handlers.NewOrderHandlers(orderService)

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithSelectionRoutes(selectionHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithUpsellRoutes(upsellHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)
}
