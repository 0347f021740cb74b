package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// RateLimitMiddleware implements a fixed-window limit shared through Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.RemoteAddr
			if userID, ok := GetUserID(r.Context()); ok {
				clientID = userID
			}

			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)
			ctx := r.Context()

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				// Redis outages must not take the API down
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				redisClient.Expire(ctx, key, config.Window)
			}

			if count > int64(config.RequestsPerWindow) {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))

				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			remaining := config.RequestsPerWindow - int(count)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// UploadThrottle keeps one token bucket per company so a single tenant
// cannot saturate the object store with uploads
type UploadThrottle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[uuid.UUID]*rate.Limiter
	logger  *zap.Logger
}

func NewUploadThrottle(perMinute, burst int, logger *zap.Logger) *UploadThrottle {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &UploadThrottle{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: make(map[uuid.UUID]*rate.Limiter),
		logger:  logger,
	}
}

func (t *UploadThrottle) limiter(companyID uuid.UUID) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.buckets[companyID]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.buckets[companyID] = l
	}
	return l
}

// Middleware must run after AuthMiddleware
func (t *UploadThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			RespondWithError(w, http.StatusUnauthorized, "missing identity")
			return
		}

		reservation := t.limiter(actor.CompanyID).Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			t.logger.Warn("Upload throttled",
				zap.String("company_id", actor.CompanyID.String()),
				zap.Duration("retry_after", delay),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			RespondWithError(w, http.StatusTooManyRequests, "upload rate exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
