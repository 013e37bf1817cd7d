package qa_http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"policy-rag/internal/domain"
	"policy-rag/internal/infra/logger"
	"policy-rag/internal/usecase"
)

// Handler exposes the question-answering pipeline over HTTP.
type Handler struct {
	answer       usecase.AnswerQuestionUsecase
	feedbackRepo domain.FeedbackRepository
	fragmentRepo domain.FragmentRepository
	version      string
	logs         *logger.ContextLogger
}

// NewHandler creates the HTTP handler for the QA API.
func NewHandler(
	answer usecase.AnswerQuestionUsecase,
	feedbackRepo domain.FeedbackRepository,
	fragmentRepo domain.FragmentRepository,
	version string,
	logs *logger.ContextLogger,
) *Handler {
	return &Handler{
		answer:       answer,
		feedbackRepo: feedbackRepo,
		fragmentRepo: fragmentRepo,
		version:      version,
		logs:         logs,
	}
}

// Register mounts all routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/ask", h.Ask)
	api.GET("/providers", h.Providers)
	api.GET("/health", h.Health)
	api.POST("/feedback", h.Feedback)
}

// requestScope enriches the request context with the transport request ID
// and the optional provider tag, so downstream log lines correlate.
func requestScope(c echo.Context, stage, provider string) context.Context {
	ctx := c.Request().Context()
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Request().Header.Get(echo.HeaderXRequestID)
	}
	if requestID != "" {
		ctx = logger.WithRequestID(ctx, requestID)
	}
	if provider != "" {
		ctx = logger.WithProvider(ctx, provider)
	}
	return logger.WithStage(ctx, stage)
}

type askRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider"`
}

type citationResponse struct {
	PolicyID string `json:"policy_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Excerpt  string `json:"excerpt,omitempty"`
}

type askResponse struct {
	Answer     string             `json:"answer"`
	Sources    []citationResponse `json:"sources"`
	Confidence float64            `json:"confidence"`
	Provider   string             `json:"provider"`
	Warning    string             `json:"warning,omitempty"`
	Cached     bool               `json:"cached"`
	Timestamp  time.Time          `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Ask handles POST /api/ask. Validation rejections come back as normal
// 200 responses with confidence 0; only infrastructure failures map to
// error statuses.
func (h *Handler) Ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	ctx := requestScope(c, "ask", req.Provider)
	log := h.logs.WithContext(ctx)

	out, err := h.answer.Execute(ctx, usecase.AnswerQuestionInput{
		Question: req.Question,
		Provider: req.Provider,
	})
	if err != nil {
		var genErr *domain.GenerationError
		switch {
		case errors.Is(err, domain.ErrIndexUnavailable):
			log.Error("retrieval unavailable", slog.String("error", err.Error()))
			return c.JSON(http.StatusServiceUnavailable, errorResponse{
				Error: "The policy index is temporarily unavailable. Please try again shortly.",
			})
		case errors.As(err, &genErr):
			log.Error("generation failed", slog.String("error", err.Error()))
			return c.JSON(http.StatusBadGateway, errorResponse{
				Error: "The answer service is temporarily unavailable. Please try again shortly.",
			})
		default:
			log.Error("ask failed", slog.String("error", err.Error()))
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}

	return c.JSON(http.StatusOK, toAskResponse(out.Answer))
}

func toAskResponse(a domain.Answer) askResponse {
	sources := make([]citationResponse, 0, len(a.Sources))
	for _, s := range a.Sources {
		sources = append(sources, citationResponse{
			PolicyID: s.PolicyID,
			Title:    s.Title,
			URL:      s.URL,
			Excerpt:  s.Excerpt,
		})
	}
	return askResponse{
		Answer:     a.Text,
		Sources:    sources,
		Confidence: a.Confidence,
		Provider:   a.Provider,
		Warning:    a.Warning,
		Cached:     a.Cached,
		Timestamp:  time.Now().UTC(),
	}
}

type providersResponse struct {
	Providers []string `json:"providers"`
}

// Providers handles GET /api/providers.
func (h *Handler) Providers(c echo.Context) error {
	ctx := requestScope(c, "providers", "")

	providers, err := h.answer.KnownProviders(ctx)
	if err != nil {
		h.logs.WithContext(ctx).Error("failed to list providers", slog.String("error", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, errorResponse{
			Error: "The policy index is temporarily unavailable. Please try again shortly.",
		})
	}
	if providers == nil {
		providers = []string{}
	}
	return c.JSON(http.StatusOK, providersResponse{Providers: providers})
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Fragments int64  `json:"fragments"`
}

// Health handles GET /api/health. The service is healthy once the index
// holds at least one fragment; an empty or unreachable index reports
// degraded.
func (h *Handler) Health(c echo.Context) error {
	ctx := requestScope(c, "health", "")

	count, err := h.fragmentRepo.CountFragments(ctx)
	if err != nil {
		h.logs.WithContext(ctx).Warn("health check count failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusOK, healthResponse{Status: "degraded", Version: h.version})
	}

	status := "healthy"
	if count == 0 {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:    status,
		Version:   h.version,
		Fragments: count,
	})
}

type feedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

type feedbackResponse struct {
	Status string `json:"status"`
}

// Feedback handles POST /api/feedback.
func (h *Handler) Feedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "rating must be between 1 and 5"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "question is required"})
	}

	ctx := requestScope(c, "feedback", "")

	fb := &domain.Feedback{
		ID:        uuid.New(),
		Question:  req.Question,
		Answer:    req.Answer,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.feedbackRepo.Insert(ctx, fb); err != nil {
		h.logs.WithContext(ctx).Error("failed to store feedback", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to store feedback"})
	}

	return c.JSON(http.StatusCreated, feedbackResponse{Status: "recorded"})
}
