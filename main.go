package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/config"
	"github.com/repolens/repolens/src/database"
	"github.com/repolens/repolens/src/handlers"
	"github.com/repolens/repolens/src/logging"
	"github.com/repolens/repolens/src/middleware"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("starting server")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Msg("database connected")

	// Initialize services
	keyService := services.NewKeyService(db.GetPool())
	userService := services.NewUserService(db.GetPool())
	guard := services.NewKeyGuard(keyService)

	authService, err := services.NewAuthService(userService, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth service")
	}

	if cfg.OIDCClientID != "" && cfg.OIDCClientSecret != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := authService.ConfigureOIDC(ctx, services.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure identity provider")
		}
		log.Info().Str("issuer", cfg.OIDCIssuerURL).Msg("identity provider configured")
	} else {
		log.Warn().Msg("OIDC credentials not configured - dashboard sign-in disabled")
	}

	// Summarization prompt configuration
	prompts, err := services.LoadPromptConfig(cfg.PromptsPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.PromptsPath).Msg("using built-in prompt configuration")
		prompts = services.DefaultPromptConfig()
	}

	githubService := services.NewGitHubService(cfg.GitHubBaseURL, cfg.GitHubToken)
	summarizerService := services.NewSummarizerService(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, prompts)
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set - summarization calls will be rejected upstream")
	}

	// Create Gin router
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	// CORS for the dashboard frontend
	corsConfig := cors.Config{
		AllowOrigins:     splitOrigins(cfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-api-key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, db, cfg, keyService, userService, guard, authService, githubService, summarizerService)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // summarization calls are slow
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
}

func setupRoutes(
	router *gin.Engine,
	db *database.Database,
	cfg *config.Config,
	keyService *services.KeyService,
	userService *services.UserService,
	guard *services.KeyGuard,
	authService *services.AuthService,
	githubService *services.GitHubService,
	summarizerService *services.SummarizerService,
) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	keysHandler := handlers.NewKeysHandler(keyService)
	validateHandler := handlers.NewValidateHandler(guard)
	summarizeHandler := handlers.NewSummarizeHandler(githubService, summarizerService)

	// Health check endpoints
	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)

	// Key playground: existence probe, no usage accounting
	router.POST("/api/validate-key",
		middleware.NewIPRateLimitingMiddleware(middleware.RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             5,
		}),
		validateHandler.HandleValidateKey)

	// Summarization endpoint, authorized by API key with usage accounting
	router.POST("/api/github-summarizer",
		middleware.RequireAPIKey(guard),
		summarizeHandler.HandleSummarize)

	// Session-authenticated dashboard API
	api := router.Group("/api")
	api.Use(middleware.SessionAuthMiddleware(authService))
	{
		api.GET("/keys", keysHandler.HandleListKeys)
		api.POST("/keys", keysHandler.HandleCreateKey)
		api.GET("/keys/:id", keysHandler.HandleGetKey)
		api.PUT("/keys/:id", keysHandler.HandleUpdateKey)
		api.DELETE("/keys/:id", keysHandler.HandleDeleteKey)
	}

	// Identity-provider sign-in (only when configured)
	if authService.OIDCEnabled() {
		secureCookie := strings.HasPrefix(cfg.OIDCRedirectURL, "https://")
		authHandler := handlers.NewAuthHandler(authService, userService, dashboardURL(cfg.AllowedOrigins), secureCookie)

		authGroup := router.Group("/auth")
		authGroup.Use(middleware.AuthRateLimitMiddleware())
		{
			authGroup.GET("/login", authHandler.HandleLogin)
			authGroup.GET("/callback", authHandler.HandleCallback)
			authGroup.POST("/logout", authHandler.HandleLogout)
		}

		api.GET("/me", authHandler.HandleMe)

		log.Info().Msg("sign-in routes registered")
	}
}

// splitOrigins parses the comma-separated ALLOWED_ORIGINS value
func splitOrigins(origins string) []string {
	var result []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			result = append(result, o)
		}
	}
	if len(result) == 0 {
		result = []string{"http://localhost:3000"}
	}
	return result
}

// dashboardURL is where the callback sends the browser after sign-in
func dashboardURL(origins string) string {
	first := splitOrigins(origins)[0]
	return strings.TrimSuffix(first, "/") + "/dashboards"
}
