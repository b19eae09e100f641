package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/scraper"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const unavailableHint = "The product page may be protected or temporarily unavailable. Please try again in a few minutes."

// FetchResult is the settled outcome of both acquisitions. Product is always
// usable; Reviews is empty when the review acquisition failed.
type FetchResult struct {
	Product         *domain.RawProductRecord
	Reviews         []domain.RawReviewRecord
	ReviewsDegraded bool
	ReviewsError    *domain.AcquisitionError
	Duration        time.Duration
}

// Coordinator runs the product (critical) and review (non-critical)
// acquisitions concurrently and applies the asymmetric failure policy.
type Coordinator struct {
	orchestrator  *Orchestrator
	decodeProduct Decoder[*domain.RawProductRecord]
	decodeReviews Decoder[[]domain.RawReviewRecord]
	logger        *zap.SugaredLogger
}

// NewCoordinator creates a coordinator that decodes scraper payloads
func NewCoordinator(orchestrator *Orchestrator, logger *zap.SugaredLogger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{
		orchestrator:  orchestrator,
		decodeProduct: scraper.DecodeProduct,
		decodeReviews: scraper.DecodeReviews,
		logger:        logger,
	}
}

// Fetch launches both acquisitions, waits for both to settle and then
// decides. A failed or unusable product acquisition fails the fetch with
// ProductUnavailable; a failed review acquisition only degrades it.
func (c *Coordinator) Fetch(ctx context.Context, identity domain.ProductIdentity, productURL string) (*FetchResult, error) {
	start := time.Now()
	reviewsURL := ReviewsURL(productURL)

	var product domain.AcquisitionResult[*domain.RawProductRecord]
	var reviews domain.AcquisitionResult[[]domain.RawReviewRecord]

	// Neither branch returns an error, so Wait never cancels the sibling
	var g errgroup.Group
	g.Go(func() error {
		product = Run(ctx, c.orchestrator, domain.AcquireProduct, productURL, c.decodeProduct)
		return nil
	})
	g.Go(func() error {
		reviews = Run(ctx, c.orchestrator, domain.AcquireReviews, reviewsURL, c.decodeReviews)
		return nil
	})
	_ = g.Wait()

	record, ok := product.Value()
	if !ok {
		cause := product.Err()
		c.logger.Errorw("product acquisition failed",
			logger.FieldIdentity, identity,
			logger.FieldErrorKind, cause.Kind,
			logger.FieldError, cause.Error(),
		)
		unavailable := domain.NewAcquisitionError(domain.KindProductUnavailable, "Unable to extract product information")
		unavailable.Cause = cause
		return nil, errors.WithHint(unavailable, unavailableHint)
	}
	if !record.Usable() {
		c.logger.Errorw("product acquisition returned no usable data", logger.FieldIdentity, identity)
		unavailable := domain.NewAcquisitionError(domain.KindProductUnavailable, "Unable to extract product information")
		return nil, errors.WithHint(unavailable, unavailableHint)
	}

	result := &FetchResult{Product: record, Reviews: []domain.RawReviewRecord{}}
	if list, ok := reviews.Value(); ok {
		if list != nil {
			result.Reviews = list
		}
		c.logger.Infow("reviews acquired", logger.FieldIdentity, identity, "count", len(result.Reviews))
	} else {
		result.ReviewsDegraded = true
		result.ReviewsError = reviews.Err()
		c.logger.Warnw("review acquisition failed, continuing without reviews",
			logger.FieldIdentity, identity,
			logger.FieldErrorKind, reviews.Err().Kind,
			logger.FieldError, reviews.Err().Error(),
		)
	}

	result.Duration = time.Since(start)
	return result, nil
}
