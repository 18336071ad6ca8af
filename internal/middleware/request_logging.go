package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bulatminnakhmetov/canvas2image/internal/metrics"
)

// RequestLogger attaches a request-scoped zerolog logger to the context, logs
// each request on completion and counts it in reg.
func RequestLogger(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)

			logger := log.With().
				Str("request_id", rid).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_ip", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Logger()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := map[string]string{
				"method": r.Method,
				"status": statusClass(status),
			}
			reg.Inc(r.Context(), "http_requests_total", labels, 1)

			if status >= 500 {
				reg.Inc(r.Context(), "http_requests_errors_total", labels, 1)
				logger.Error().Int("status", status).Dur("duration", time.Since(start)).Msg("http request failed")
				return
			}
			logger.Info().Int("status", status).Dur("duration", time.Since(start)).Msg("http request served")
		})
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "0"
	}
}
