package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/metrics"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

const slowRequestThreshold = time.Second

// RequestIDFromContext returns the request ID set by RequestLogging, or ""
// if the request did not pass through it.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogging assigns each request an ID, echoes it back as
// X-Request-ID, records the elapsed time as X-Process-Time (milliseconds),
// and logs method/path/status/duration.
func RequestLogging(logger *zap.Logger, m *metrics.GatewayMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK, start: time.Now()}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			elapsed := time.Since(recorder.start)
			m.RecordRequest(r.Method, recorder.status, elapsed)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("duration", elapsed),
			}
			if elapsed > slowRequestThreshold {
				logger.Warn("slow request", fields...)
			} else {
				logger.Info("request", fields...)
			}
		})
	}
}

// statusRecorder captures the status code and writes the X-Process-Time
// header just before the response is committed, since headers cannot be
// added after WriteHeader.
type statusRecorder struct {
	http.ResponseWriter
	status        int
	start         time.Time
	headerWritten bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.headerWritten {
		r.status = status
		elapsed := time.Since(r.start)
		r.Header().Set("X-Process-Time", fmt.Sprintf("%.2f", float64(elapsed.Microseconds())/1000))
		r.ResponseWriter.WriteHeader(status)
		r.headerWritten = true
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
