package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// errorResponse is the API error shape. Retryable tells automation whether
// backing off and retrying can help.
type errorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, retryable bool) {
	requestID, _ := r.Context().Value(contextKeyRequestID).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	respondJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	})
}

// withMiddleware wraps a handler with request id assignment, rate limiting,
// and access logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	limiter := s.limiter()

	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-Id", requestID)

		if !limiter.Allow() {
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"too many requests", true)
			return
		}

		start := time.Now()
		next(w, r)

		slog.Debug("handled request",
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) limiter() *rate.Limiter {
	s.limiterOnce.Do(func() {
		s.apiLimiter = rate.NewLimiter(s.cfg.RateLimit, s.cfg.RateLimitBurst)
	})
	return s.apiLimiter
}
