package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"policy-rag/internal/adapter/llm"
	"policy-rag/internal/adapter/qa_http"
	"policy-rag/internal/adapter/repository"
	"policy-rag/internal/domain"
	"policy-rag/internal/infra"
	"policy-rag/internal/infra/config"
	"policy-rag/internal/infra/logger"
	"policy-rag/internal/infra/telemetry"
	"policy-rag/internal/usecase"
)

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Telemetry & Logger
	ctx := context.Background()
	if cfg.Telemetry.OTelEnabled {
		shutdown, err := telemetry.Setup(ctx, cfg.App.Name, cfg.App.Version)
		if err != nil {
			slog.Error("failed to set up telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}
	log := logger.NewWithOTel(cfg.Telemetry.OTelEnabled)
	slog.SetDefault(log)

	// 3. Initialize DB
	dbPool, err := infra.NewPostgresDB(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Initialize Adapters
	fragmentRepo := repository.NewFragmentRepository(dbPool)
	feedbackRepo := repository.NewFeedbackRepository(dbPool)
	llmTimeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	generator := llm.NewOpenAIGenerator(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, llmTimeout)
	embedder := llm.NewOpenAIEmbedder(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, llmTimeout)

	// 5. Initialize Usecases
	validator := usecase.NewQuestionValidator(
		cfg.Validation.MinQuestionLength,
		cfg.Validation.MaxQuestionLength,
		cfg.Validation.DomainKeywords,
		cfg.Validation.DefaultProvider,
	)
	retrieveUsecase := usecase.NewRetrieveFragmentsUsecase(
		fragmentRepo,
		embedder,
		cfg.Retrieval.TopK,
		cfg.Retrieval.MinSimilarity,
		log,
	)
	promptBuilder := usecase.NewPolicyPromptBuilder()
	scorer := usecase.NewConfidenceScorer(cfg.Confidence.CitationPhrases, cfg.Confidence.HedgePhrases)

	var cache *expirable.LRU[string, domain.Answer]
	if cfg.Cache.Enabled {
		cache = expirable.NewLRU[string, domain.Answer](
			cfg.Cache.Size, nil, time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		)
	}

	answerUsecase := usecase.NewAnswerQuestionUsecase(
		validator,
		retrieveUsecase,
		promptBuilder,
		generator,
		scorer,
		fragmentRepo,
		cache,
		cfg.LLM.MaxTokens,
		cfg.Confidence.LowThreshold,
		log,
	)

	// 6. Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.App.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	// 7. Register Handlers
	contextLogger := logger.NewContextLogger(cfg.App.Name, log)
	handler := qa_http.NewHandler(answerUsecase, feedbackRepo, fragmentRepo, cfg.App.Version, contextLogger)
	handler.Register(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 8. Start Server (h2c so in-cluster clients can use HTTP/2 without TLS)
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           h2c.NewHandler(e, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("starting server", "addr", cfg.HTTPAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
