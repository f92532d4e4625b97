package middleware

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
)

// deadlineWriter drops handler output once the request deadline has fired.
// The handler gets its own header map; it reaches the real writer only when
// the handler commits a response before the deadline.
type deadlineWriter struct {
	w      http.ResponseWriter
	header http.Header

	mu      sync.Mutex
	expired bool
	started bool
}

func newDeadlineWriter(w http.ResponseWriter) *deadlineWriter {
	return &deadlineWriter{w: w, header: make(http.Header)}
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.header
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired || dw.started {
		return
	}
	dw.commit()
	dw.w.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !dw.started {
		dw.commit()
	}
	return dw.w.Write(b)
}

// commit copies the handler's headers to the real writer. Callers hold mu.
func (dw *deadlineWriter) commit() {
	dw.started = true
	dst := dw.w.Header()
	for k, v := range dw.header {
		dst[k] = slices.Clone(v)
	}
}

// finish commits the headers of a handler that returned without writing.
func (dw *deadlineWriter) finish() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.expired && !dw.started {
		dw.commit()
	}
}

// expire marks the writer dead and reports whether the handler had not yet
// started its response.
func (dw *deadlineWriter) expire(write func()) bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dw.expired = true
	if dw.started {
		return false
	}
	dw.started = true
	write()
	return true
}

// RequestTimeout bounds each request's context. A handler that has not
// written by the deadline gets a 503 with Retry-After and its later writes
// are discarded. Ledger writes already committed are not rolled back.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)
			dw := newDeadlineWriter(w)

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(dw, r)
				close(done)
			}()

			select {
			case <-done:
				dw.finish()
			case <-ctx.Done():
				answered := dw.expire(func() {
					w.Header().Set("Retry-After", "1")
					appErr := apperrors.Unavailable("Request processing")
					writeAppError(w, http.StatusServiceUnavailable, appErr.ToJSON())
				})
				log.Warn("Request timed out",
					"request_id", RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"timeout", timeout,
					"answered", answered,
				)
			}
		})
	}
}
