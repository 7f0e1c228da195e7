package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"

	"fleet-assist/backend/internal/api"
	"fleet-assist/backend/internal/assistant"
	"fleet-assist/backend/internal/auth"
	"fleet-assist/backend/internal/config"
	"fleet-assist/backend/internal/flow"
	"fleet-assist/backend/internal/logging"
	"fleet-assist/backend/internal/mcp"
	"fleet-assist/backend/internal/model"
	"fleet-assist/backend/internal/repository"
	"fleet-assist/backend/internal/services"
	"fleet-assist/backend/internal/tls"
)

const serviceName = "fleet-assist"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "fleet-assist",
		Short:        "Fleet operations API with generative assistant flows",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml)")
	root.AddCommand(migrateCmd(&configPath))
	return root
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			pool, err := initDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := repository.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}

func setup(configPath string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.NewLogger().Error("Failed to load configuration", "error", err)
		return nil, nil, err
	}
	logger := logging.NewWithOptions(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"okta_domain", cfg.Auth.OktaDomain,
		"okta_client_id", cfg.Auth.ClientID,
		"secret_len", len(cfg.Auth.ClientSecret),
		"genai_key_len", len(cfg.GenAI.APIKey),
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"text_model", cfg.GenAI.TextModel,
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE login from /docs will fail for a web app client")
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting Fleet Assist", "version", version)

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		return err
	}
	store := repository.NewPostgresStore(dbPool)
	logger.Info("Database connected")

	backend, err := model.NewGenAIBackend(ctx, cfg.GenAI.APIKey)
	if err != nil {
		logger.Error("Failed to initialize model backend", "error", err)
		return err
	}
	invoker := model.NewInvoker(backend,
		model.WithLogger(logger.With("component", "model")),
		model.WithMaxToolTurns(cfg.GenAI.MaxToolTurns),
		model.WithPollInterval(cfg.GenAI.VideoPollInterval),
		model.WithMaxWait(cfg.GenAI.VideoMaxWait),
	)

	fleetService := services.NewFleetService(store, logger.With("component", "fleet"))
	registry := flow.NewRegistry()
	flows, err := assistant.Register(registry, invoker, fleetService, assistant.Models{
		Text:             cfg.GenAI.TextModel,
		Speech:           cfg.GenAI.SpeechModel,
		Image:            cfg.GenAI.ImageModel,
		Video:            cfg.GenAI.VideoModel,
		Voice:            cfg.GenAI.Voice,
		VideoAspectRatio: cfg.GenAI.VideoAspectRatio,
	},
		flow.WithLogger(logger.With("component", "flow")),
		flow.WithTracerProvider(otel.GetTracerProvider()),
		flow.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		logger.Error("Failed to register flows", "error", err)
		return err
	}
	assistantService := services.NewAssistantService(registry, flows, logger.With("component", "assistant"))
	logger.Info("Service layer initialized", "flows", len(registry.List()))

	authz, err := auth.New(ctx, cfg, store, logger.With("component", "auth"))
	if err != nil {
		logger.Error("Failed to initialize auth", "error", err)
		return err
	}
	if authz.Bypassed() {
		logger.Warn("Authentication bypassed; every request acts as the dev tenant")
	}

	apiServer := api.NewServer(fleetService, assistantService, store, logger.With("component", "api"))
	apiServer.Version = version

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apiServer.ErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(serviceName, otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Path() == "/healthz"
	})))
	e.Use(requestLogger(logger))

	e.GET("/healthz", apiServer.HandleHealth)
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiServer.RegisterRoutes(apiGroup)
	logger.Info("REST API handlers mounted")

	mcpServer, err := mcp.NewServer(assistantService, version, logger.With("component", "mcp"))
	if err != nil {
		logger.Error("Failed to initialize MCP server", "error", err)
		return err
	}
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	mcpHandler := echo.WrapHandler(authz.RequireAuth(mcpHandlers))
	e.Any("/mcp", mcpHandler)
	e.Any("/mcp/*", mcpHandler)
	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: video flows hold the response while the job is polled.
		IdleTimeout: 60 * time.Second,
	}

	if cfg.TLS.Enable {
		created, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			logger.Error("Failed to prepare TLS certificate", "error", err)
			return err
		}
		if created {
			logger.Warn("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			)
			return nil
		},
	})
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection", "host", cfg.DB.Host, "name", cfg.DB.Name)

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
