package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/rasterflow/internal/ratelimit"
	"github.com/dunamismax/rasterflow/internal/raster"
	"go.uber.org/zap"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string, cost int64) (ratelimit.Decision, error)
}

const pixelsPerToken = 1_000_000

// previewCost charges one token per started megapixel of the decoded source.
func previewCost(src raster.Buffer) int64 {
	return max(1, int64(math.Ceil(float64(src.Width())*float64(src.Height())/pixelsPerToken)))
}

// collageCost charges one token per tile.
func collageCost(tiles int) int64 {
	return max(1, int64(tiles))
}

// withRateLimit charges a single token before next runs. Handlers whose cost
// depends on the upload call spend themselves.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.spend(w, r, 1) {
			next.ServeHTTP(w, r)
		}
	})
}

// spend charges cost tokens to the caller of r. It reports whether the request
// may continue; when it may not, the 429 response has been written. A broken
// limiter lets requests through.
func (s *Server) spend(w http.ResponseWriter, r *http.Request, cost int64) bool {
	if s.rateLimiter == nil {
		return true
	}

	subject := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader))
	if subject == "" {
		subject = "anonymous"
	}
	subject = subject + ":" + routeLabel(r)

	decision, err := s.rateLimiter.Allow(r.Context(), subject, cost)
	if err != nil {
		s.logger.Warn("rate limiter check failed", zap.String("subject", subject), zap.Int64("cost", cost), zap.Error(err))
		return true
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	if decision.Allowed {
		return true
	}

	retryAfter := max(1, int(decision.RetryAfter.Round(time.Second).Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r)).Inc()
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}
