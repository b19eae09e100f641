package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults applied when the configuration leaves a field at zero
const (
	DefaultBaseDelay = 2 * time.Second
	DefaultTimeout   = 60 * time.Second
)

// maxDiagnosticLen caps how much scraper stderr is carried in error messages
const maxDiagnosticLen = 500

// DefaultRateLimitPatterns are matched case-insensitively against scraper diagnostics
var DefaultRateLimitPatterns = []string{"429", "rate limit", "too many requests"}

// RetryPolicy bounds one orchestrated acquisition
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

// OrchestratorConfig holds configuration for the acquisition orchestrator
type OrchestratorConfig struct {
	Policy            RetryPolicy
	RateLimitPatterns []string
	// RequestsPerMinute paces attempt starts across all acquisitions; 0 disables pacing
	RequestsPerMinute int
}

// Decoder parses successful acquisition output into T
type Decoder[T any] func(stdout []byte) (T, error)

// Orchestrator wraps external acquisitions with a per-attempt deadline,
// output parsing and bounded exponential-backoff retries.
type Orchestrator struct {
	acquirer domain.Acquirer
	policy   RetryPolicy
	patterns []string
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.SugaredLogger
}

// retryAttempt is the loop state carried between attempts
type retryAttempt struct {
	index    int
	made     int
	started  time.Time
	lastKind domain.ErrorKind
}

// NewOrchestrator creates an orchestrator around acquirer
func NewOrchestrator(acquirer domain.Acquirer, config OrchestratorConfig, logger *zap.SugaredLogger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	policy := config.Policy
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}

	patterns := config.RateLimitPatterns
	if len(patterns) == 0 {
		patterns = DefaultRateLimitPatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1)
	}

	return &Orchestrator{
		acquirer: acquirer,
		policy:   policy,
		patterns: lowered,
		limiter:  limiter,
		sleep:    sleepContext,
		logger:   logger,
	}
}

// Policy returns the effective retry policy
func (o *Orchestrator) Policy() RetryPolicy {
	return o.policy
}

// Backoff returns the delay after the failed attempt with the given index:
// baseDelay * 2^attemptIndex.
func (o *Orchestrator) Backoff(attemptIndex int) time.Duration {
	return o.policy.BaseDelay * time.Duration(1<<uint(attemptIndex))
}

// Run acquires kind for targetURL, making at most MaxRetries+1 attempts.
// Rate-limited and other retryable failures share the same backoff curve.
func Run[T any](ctx context.Context, o *Orchestrator, kind domain.AcquisitionKind, targetURL string, decode Decoder[T]) domain.AcquisitionResult[T] {
	state := retryAttempt{started: time.Now()}
	var lastErr *domain.AcquisitionError

	for state.index = 0; state.index <= o.policy.MaxRetries; state.index++ {
		if state.index > 0 {
			delay := o.Backoff(state.index - 1)
			o.logger.Warnw("retrying acquisition",
				logger.FieldKind, kind,
				logger.FieldAttempt, state.index+1,
				"max_attempts", o.policy.MaxRetries+1,
				"delay", delay,
				logger.FieldErrorKind, state.lastKind,
			)
			if err := o.sleep(ctx, delay); err != nil {
				return domain.Failure[T](abandoned(err, lastErr))
			}
		}

		value, acqErr := attempt(ctx, o, kind, targetURL, decode)
		state.made++
		if acqErr == nil {
			o.logger.Infow("acquisition succeeded",
				logger.FieldKind, kind,
				logger.FieldAttempt, state.index+1,
				logger.FieldDurationMS, time.Since(state.started).Milliseconds(),
			)
			return domain.Success(value)
		}

		lastErr = acqErr
		state.lastKind = acqErr.Kind
		o.logger.Warnw("acquisition attempt failed",
			logger.FieldKind, kind,
			logger.FieldAttempt, state.index+1,
			logger.FieldErrorKind, acqErr.Kind,
			logger.FieldError, acqErr.Error(),
		)

		if !acqErr.Kind.Retryable() {
			break
		}
	}

	o.logger.Errorw("acquisition failed",
		logger.FieldKind, kind,
		"attempts", state.made,
		logger.FieldErrorKind, lastErr.Kind,
		logger.FieldDurationMS, time.Since(state.started).Milliseconds(),
	)
	return domain.Failure[T](lastErr)
}

// attempt runs a single acquisition under its own deadline. The acquirer
// returns only after its process has stopped, so attempts never overlap.
func attempt[T any](ctx context.Context, o *Orchestrator, kind domain.AcquisitionKind, targetURL string, decode Decoder[T]) (T, *domain.AcquisitionError) {
	var zero T

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			acqErr := domain.NewAcquisitionError(domain.KindExternalFailure, "acquisition pacing interrupted")
			acqErr.Cause = err
			return zero, acqErr
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.policy.Timeout)
	defer cancel()

	out, err := o.acquirer.Acquire(attemptCtx, kind, targetURL)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, domain.NewAcquisitionError(domain.KindTimeout, "process timed out after %s", o.policy.Timeout)
		}
		acqErr := domain.NewAcquisitionError(domain.KindExternalFailure, "failed to run %s acquisition", kind)
		acqErr.Cause = err
		return zero, acqErr
	}

	if out.ExitCode != 0 {
		diagnostic := truncate(strings.TrimSpace(string(out.Stderr)))
		if o.isRateLimited(diagnostic) {
			return zero, domain.NewAcquisitionError(domain.KindRateLimited, "external source rate limited: %s", diagnostic)
		}
		return zero, domain.NewAcquisitionError(domain.KindExternalFailure, "process exited with code %d: %s", out.ExitCode, diagnostic)
	}

	value, err := decode(out.Stdout)
	if err != nil {
		var reported *domain.AcquisitionError
		if errors.As(err, &reported) {
			if o.isRateLimited(reported.Message) {
				return zero, domain.NewAcquisitionError(domain.KindRateLimited, "%s", reported.Message)
			}
			return zero, reported
		}
		acqErr := domain.NewAcquisitionError(domain.KindMalformedOutput, "failed to parse %s output", kind)
		acqErr.Cause = err
		return zero, acqErr
	}

	return value, nil
}

func (o *Orchestrator) isRateLimited(diagnostic string) bool {
	lowered := strings.ToLower(diagnostic)
	for _, p := range o.patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// abandoned reports a retry loop cut short by its parent context
func abandoned(ctxErr error, last *domain.AcquisitionError) *domain.AcquisitionError {
	kind := domain.KindExternalFailure
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		kind = domain.KindTimeout
	}
	acqErr := domain.NewAcquisitionError(kind, "acquisition abandoned before retry")
	acqErr.Cause = ctxErr
	if last != nil {
		acqErr.Message = "acquisition abandoned before retry after " + string(last.Kind)
	}
	return acqErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string) string {
	if len(s) <= maxDiagnosticLen {
		return s
	}
	return s[:maxDiagnosticLen] + "..."
}
