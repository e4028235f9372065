package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nutriscan/analyzer"
	"nutriscan/config"
	"nutriscan/handlers"
	"nutriscan/llm"
	"nutriscan/metrics"
	"nutriscan/middleware"
	"nutriscan/openai"
	"nutriscan/stubllm"
	"nutriscan/version"
)

const (
	EndPointHealth  = "/health"
	EndPointVersion = "/version"
	EndPointMetrics = "/metrics"

	EndPointAnalyzeUpload = "/analyze/upload"
	EndPointAnalyzeCamera = "/analyze/camera"

	// Paths used by older app builds.
	EndPointLegacyUpload = "/analyze-image"
	EndPointLegacyCamera = "/analyze-camera"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warnf("No .env file found: %v", err)
	}

	// Load configuration
	cfg := config.Load()

	// Set log level
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	client := newClient(cfg)
	if cfg.Provider != config.ProviderStub && !cfg.HasAnyKey() {
		// Still serve: analyze requests answer "API keys not configured".
		log.Warn("No provider API keys configured")
	}

	metrics.Register()

	h := handlers.NewHandlers(analyzer.New(cfg, client))
	router := setupRouter(cfg, h)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		info := version.Get()
		log.WithFields(log.Fields{
			"port":     cfg.Port,
			"provider": client.SourceName(),
			"version":  info.Version,
			"git_sha":  info.GitSHA,
		}).Info("server.start")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// In-flight analyses may spend up to one full provider timeout per attempt.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func newClient(cfg *config.Config) llm.Client {
	switch cfg.Provider {
	case config.ProviderStub:
		log.Warn("LLM_PROVIDER=stub: serving deterministic stub analyses")
		return stubllm.NewClient()
	case config.ProviderOpenAI:
	default:
		log.Warnf("Unknown LLM_PROVIDER %q, using %s", cfg.Provider, config.ProviderOpenAI)
	}
	return openai.NewClient(cfg.LLMEndpoint, cfg.LLMTimeout, openai.WithAttribution(cfg.AppReferer, cfg.AppTitle))
}

func setupRouter(cfg *config.Config, h *handlers.Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAnyOrigin(cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	router.Use(cors.New(corsConfig))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointVersion, h.Version)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	analyze := []gin.HandlerFunc{
		middleware.BodyLimitMiddleware(cfg.MaxBodyBytes),
		middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute),
	}

	api := router.Group("/api/v1", analyze...)
	{
		api.POST(EndPointAnalyzeUpload, h.AnalyzeUpload)
		api.POST(EndPointAnalyzeCamera, h.AnalyzeCamera)
	}

	legacy := router.Group("/", analyze...)
	{
		legacy.POST(EndPointLegacyUpload, h.AnalyzeUpload)
		legacy.POST(EndPointLegacyCamera, h.AnalyzeCamera)
	}

	return router
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}
