package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pricelens/backend/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// CORSMiddleware handles CORS for the web frontend
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		if isAllowedOrigin(origin, allowedOrigins) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
			c.Writer.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// isAllowedOrigin checks if the origin is in the allowed list
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		// Support wildcard suffixes like http://localhost:*
		if strings.HasSuffix(allowed, "*") {
			prefix := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if origin == allowed {
			return true
		}
	}
	return false
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware logs each request with its outcome and latency
func LoggerMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			logger.FieldRequestID, c.GetString(requestIDKey),
			logger.FieldMethod, c.Request.Method,
			logger.FieldPath, c.Request.URL.Path,
			logger.FieldStatus, status,
			logger.FieldClientIP, c.ClientIP(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Errorw("request completed", fields...)
		case status >= http.StatusBadRequest:
			log.Warnw("request completed", fields...)
		default:
			log.Infow("request completed", fields...)
		}
	}
}

// RecoveryMiddleware recovers from panics and answers 500
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("panic recovered",
			logger.FieldRequestID, c.GetString(requestIDKey),
			logger.FieldPath, c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	})
}

// limiterIdleTTL is how long a client IP may stay silent before its bucket is dropped
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters hands out one token bucket per client IP. Idle buckets are
// pruned at most once per idleTTL, from inside get.
type ipLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func newIPLimiters(perMinute int) *ipLimiters {
	return &ipLimiters{
		limiters:  make(map[string]*clientLimiter),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		idleTTL:   limiterIdleTTL,
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) >= l.idleTTL {
		l.pruneLocked(now)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *ipLimiters) pruneLocked(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.limiters, ip)
		}
	}
	l.lastPrune = now
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RateLimitMiddleware allows perMinute requests per client IP, with bursts up
// to the same size. A non-positive perMinute disables limiting.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newIPLimiters(perMinute)

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "Too many requests",
				Details: "Please wait a minute before sending more requests",
			})
			return
		}
		c.Next()
	}
}
