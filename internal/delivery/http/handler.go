package http

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
)

// AnalysisUsecase is the application surface the handlers need
type AnalysisUsecase interface {
	Analyze(ctx context.Context, rawURL string) (*domain.AnalysisResult, error)
	CacheStats(ctx context.Context) (domain.CacheStats, error)
	ClearCache(ctx context.Context) error
}

// AnalyzeRequest is the body of POST /api/v1/analyze
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	analysis AnalysisUsecase
	logger   *zap.SugaredLogger
}

// NewHandler creates a new HTTP handler
func NewHandler(analysis AnalysisUsecase, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{analysis: analysis, logger: log}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	})
}

// Analyze handles product analysis requests
func (h *Handler) Analyze(c *gin.Context) {
	if h.analysis == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Analysis service not configured"})
		return
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Valid URL is required"})
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CacheStats reports the result cache membership
func (h *Handler) CacheStats(c *gin.Context) {
	if h.analysis == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Analysis service not configured"})
		return
	}

	stats, err := h.analysis.CacheStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ClearCache empties the result cache
func (h *Handler) ClearCache(c *gin.Context) {
	if h.analysis == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Analysis service not configured"})
		return
	}

	if err := h.analysis.ClearCache(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// writeError maps an error to its status class. Throttling and timeouts are
// reported as such even when they caused a ProductUnavailable failure.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)

	fields := []interface{}{
		logger.FieldRequestID, c.GetString(requestIDKey),
		logger.FieldStatus, status,
		logger.FieldErrorKind, domain.KindOf(err),
		logger.FieldError, err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("request failed", fields...)
	} else {
		h.logger.Warnw("request rejected", fields...)
	}

	c.JSON(status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{
			Error:   messageOf(err),
			Details: "This URL cannot be processed. Provide a product page URL from a supported marketplace.",
		}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{
			Error:   "Rate limit exceeded",
			Details: "Please wait a few minutes before analyzing another product",
		}
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusRequestTimeout, ErrorResponse{
			Error:   "Analysis timeout",
			Details: "The analysis is taking too long. Please try again.",
		}
	case errors.Is(err, domain.ErrProductUnavailable):
		details := errors.FlattenHints(err)
		if details == "" {
			details = "The product page may be protected or temporarily unavailable. Please try again in a few minutes."
		}
		return http.StatusBadRequest, ErrorResponse{Error: messageOf(err), Details: details}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Analysis failed", Details: err.Error()}
	}
}

// messageOf returns the human-readable message of the outermost
// AcquisitionError, without its kind prefix.
func messageOf(err error) string {
	var acqErr *domain.AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Message
	}
	return err.Error()
}
