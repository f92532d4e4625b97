package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
)

// KeyFunc derives the bucket a request is accounted to. An empty key means
// the request is not limited.
type KeyFunc func(r *http.Request) string

// RateLimiter is a sliding-window limiter over arbitrary keys, usually the
// authenticated user id with the client address as a fallback.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	keyFunc  KeyFunc
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration, keyFunc KeyFunc, log *logger.Logger) *RateLimiter {
	if keyFunc == nil {
		keyFunc = ClientAddress
	}
	limiter := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		keyFunc:  keyFunc,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	timestamps := rl.requests[key]

	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.keyFunc(r)

			if !limiter.Allow(key) {
				rejectRateLimited(w, limiter, r, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, limiter *RateLimiter, r *http.Request, key string) {
	limiter.log.Warn("Rate limit exceeded",
		"request_id", RequestIDFromContext(r.Context()),
		"key", key,
		"path", r.URL.Path,
	)

	appErr := apperrors.Unavailable("Booking service").WithDetails(map[string]any{
		"reason": "rate limit exceeded",
	})
	w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
	writeAppError(w, http.StatusTooManyRequests, appErr.ToJSON())
}

// ClientAddress keys requests by the remote host.
func ClientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FirstKey returns a KeyFunc that tries each function in order and uses the
// first non-empty key.
func FirstKey(funcs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		for _, fn := range funcs {
			if key := fn(r); key != "" {
				return key
			}
		}
		return ""
	}
}
