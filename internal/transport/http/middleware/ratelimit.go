package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"backoffice/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

// RateLimit throttles per actor, falling back to client IP, at a formatted
// rate such as "120-M".
func RateLimit(formatted string, keyFn RateLimitKeyFunc) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	instance := limiter.New(memory.NewStore(), rate)
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			if key := keyFn(r); key != "" {
				return key
			}
			return clientIPKey(r)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded",
				"key", keyFn(r),
				"path", r.URL.Path,
				"method", r.Method,
				"limit", rate.Limit,
				"windowSec", int(rate.Period.Seconds()),
			)
			api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("rate limiter failed", "err", err)
			api.Fail(w, http.StatusInternalServerError, "rate_limit_error", "rate limiter unavailable", GetRequestID(r.Context()))
		}),
	)
	return mw.Handler, nil
}

func actorOrIPKey(r *http.Request) string {
	if actor, ok := GetActor(r.Context()); ok {
		return "actor:" + actor.ID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if value := strings.TrimSpace(parts[0]); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
