package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
)

// DefaultReviewLimit caps the reviews carried in a result
const DefaultReviewLimit = 25

// reviewsUnavailableWarning is attached to results built without reviews
const reviewsUnavailableWarning = "Reviews could not be retrieved; analysis is based on product data only"

// DefaultMarketplaceHosts are the host substrings accepted by default
var DefaultMarketplaceHosts = []string{"amazon", "amzn"}

// ProductFetcher acquires the raw records for one product
type ProductFetcher interface {
	Fetch(ctx context.Context, identity domain.ProductIdentity, productURL string) (*FetchResult, error)
}

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	MarketplaceHosts []string
	ReviewLimit      int
}

// AnalysisService answers analysis requests from the cache or a fresh fetch
type AnalysisService struct {
	cache       domain.ResultCache
	fetcher     ProductFetcher
	hosts       []string
	reviewLimit int
	now         func() time.Time
	logger      *zap.SugaredLogger
}

// NewAnalysisService creates a new analysis service with dependencies
func NewAnalysisService(
	cache domain.ResultCache,
	fetcher ProductFetcher,
	config AnalysisServiceConfig,
	logger *zap.SugaredLogger,
) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	hosts := config.MarketplaceHosts
	if len(hosts) == 0 {
		hosts = DefaultMarketplaceHosts
	}
	reviewLimit := config.ReviewLimit
	if reviewLimit <= 0 {
		reviewLimit = DefaultReviewLimit
	}

	return &AnalysisService{
		cache:       cache,
		fetcher:     fetcher,
		hosts:       hosts,
		reviewLimit: reviewLimit,
		now:         time.Now,
		logger:      logger,
	}
}

// Analyze returns the analysis for a product URL.
// Flow: validate -> cache -> fetch product and reviews -> derive -> cache -> return
func (s *AnalysisService) Analyze(ctx context.Context, rawURL string) (*domain.AnalysisResult, error) {
	start := s.now()

	parsed, err := ValidateProductURL(rawURL, s.hosts)
	if err != nil {
		return nil, err
	}
	productURL := parsed.String()
	identity := NormalizeIdentity(productURL)

	cached, err := s.cache.Get(ctx, identity)
	switch {
	case err == nil:
		s.logger.Infow("returning cached analysis", logger.FieldIdentity, identity)
		return cached.Annotate(true, s.now()), nil
	case !errors.Is(err, domain.ErrCacheMiss):
		s.logger.Warnw("cache lookup failed", logger.FieldIdentity, identity, logger.FieldError, err)
	}

	s.logger.Infow("starting product analysis", logger.FieldIdentity, identity, "url", productURL)
	fetched, err := s.fetcher.Fetch(ctx, identity, productURL)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if fetched.ReviewsDegraded {
		warnings = append(warnings, reviewsUnavailableWarning)
	}

	result := DeriveAnalysis(DeriveInput{
		ProductURL:  productURL,
		Product:     fetched.Product,
		Reviews:     fetched.Reviews,
		ReviewLimit: s.reviewLimit,
		Warnings:    warnings,
		Now:         s.now(),
	})
	result.ProcessingTimeMS = s.now().Sub(start).Milliseconds()

	if err := s.cache.Put(ctx, identity, productURL, result); err != nil {
		// Log but don't fail if caching fails
		s.logger.Warnw("failed to cache analysis", logger.FieldIdentity, identity, logger.FieldError, err)
	}

	s.logger.Infow("product analysis completed",
		logger.FieldIdentity, identity,
		logger.FieldDurationMS, result.ProcessingTimeMS,
		"fetch_ms", fetched.Duration.Milliseconds(),
		"reviews", result.Analysis.ReviewCount,
	)
	return result.Annotate(false, s.now()), nil
}

// CacheStats reports the result cache state
func (s *AnalysisService) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	return s.cache.Stats(ctx)
}

// ClearCache empties the result cache
func (s *AnalysisService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}
