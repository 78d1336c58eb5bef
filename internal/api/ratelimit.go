package api

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/waveline/internal/api/auth"
)

// operatorLimiter throttles chat requests per operator. Limiters are kept in
// memory; a restart resets the buckets, which is acceptable for an
// abuse-prevention limit.
type operatorLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newOperatorLimiter(requestsPerMinute int) *operatorLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 20
	}
	return &operatorLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    requestsPerMinute,
	}
}

func (l *operatorLimiter) limiterFor(operatorID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[operatorID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[operatorID] = lim
	}
	return lim
}

// Middleware rejects requests over the per-operator budget with 429
func (l *operatorLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			op, err := auth.FromEchoContext(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if !l.limiterFor(op.OperatorID).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many chat requests, slow down")
			}
			return next(c)
		}
	}
}
