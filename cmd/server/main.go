package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"prdigest/server/internal/agent"
	"prdigest/server/internal/auth"
	"prdigest/server/internal/chat"
	"prdigest/server/internal/config"
	"prdigest/server/internal/llm/bedrock"
	"prdigest/server/internal/memory"
	"prdigest/server/internal/middleware"
	"prdigest/server/internal/modules"
	"prdigest/server/internal/modules/github"
	"prdigest/server/internal/observability"
	"prdigest/server/internal/pullrequests"
	"prdigest/server/pkg/githubapi"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env", ".env.dev")
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	// Initialize observability (Loki)
	observability.Init(observability.LokiConfig{
		URL:            cfg.LokiURL,
		User:           cfg.LokiUser,
		APIKey:         cfg.LokiAPIKey,
		AppName:        "prdigest-" + cfg.AppEnv,
		InstanceID:     cfg.InstanceID,
		InstanceRegion: cfg.InstanceRegion,
	}, logger)

	tel, err := observability.NewTelemetry(nil, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// GitHub tools
	gh, err := githubapi.NewClient(githubapi.Options{Token: cfg.GitHubToken, BaseURL: cfg.GitHubAPIURL})
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	prs := pullrequests.NewAdapter(gh, pullrequests.WithLocation(loc))
	githubTools, err := modules.NewToolset(
		[]modules.Module{github.New(prs)},
		modules.WithTimeout(cfg.ToolTimeout),
		modules.WithLogger(logger.Named("tools")),
	)
	if err != nil {
		return err
	}
	if cfg.GitHubToken == "" {
		logger.Warn("GITHUB_TOKEN not set, GitHub requests are unauthenticated and heavily rate-limited")
	}

	// Personas
	personas, err := agent.NewRegistry(cfg.DefaultAgent,
		agent.NewReportPersona(cfg.BedrockModelID, cfg.ReportLanguage, githubTools),
		agent.NewChefPersona(cfg.BedrockModelID),
	)
	if err != nil {
		return err
	}
	logger.Info("personas registered", zap.Strings("personas", personas.Names()), zap.String("default", personas.Default()))

	// Memory
	store, err := memory.Open(ctx, cfg.MemoryDSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := bedrock.New(ctx, bedrock.Config{
		Region:   cfg.BedrockRegion,
		APIKey:   cfg.BedrockAPIKey,
		Model:    cfg.BedrockModelID,
		Endpoint: cfg.BedrockURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	orchestrator, err := agent.NewOrchestrator(backend,
		agent.WithMemory(store, cfg.MemoryLastMessages),
		agent.WithMaxSteps(cfg.MaxSteps),
		agent.WithLogger(logger.Named("agent")),
		agent.WithTelemetry(tel),
	)
	if err != nil {
		return err
	}

	// Edge middleware
	allowList, err := middleware.NewIPAllowList(cfg.AllowedIPs, cfg.TrustedProxyHeader)
	if err != nil {
		return err
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.TrustedProxyHeader)
	defer rateLimiter.Close()

	var chatHandler http.Handler = chat.NewHandler(personas, orchestrator, cfg.RequestTimeout, logger)
	chatHandler = rateLimiter.Middleware(chatHandler)
	if cfg.GatewayJWKSURL != "" {
		authorizer := middleware.NewAuthorizer(auth.NewGatewayVerifier(cfg.GatewayJWKSURL, logger))
		chatHandler = authorizer.Authorize(chatHandler)
	} else {
		logger.Warn("GATEWAY_JWKS_URL not set, chat endpoint is unauthenticated")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", chat.Health(store, cfg.InstanceID, cfg.InstanceRegion))
	mux.Handle("POST /api/chat", chatHandler)

	handler := middleware.Recovery(allowList.Middleware(mux))
	handler = middleware.AccessLog(handler)
	handler = middleware.RequestID(logger)(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.Int("port", cfg.Port),
			zap.String("instance", cfg.InstanceID),
			zap.String("region", cfg.InstanceRegion),
			zap.Bool("allow_list", allowList.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	// Give in-flight requests time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	observability.Shutdown(shutdownCtx)

	logger.Info("server stopped")
	return nil
}
