package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/username/notefolio/backend/src/logger"
	"golang.org/x/time/rate"
)

type contextKey string

const userIDContextKey contextKey = "userID"

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID, reusing one sent by the
// client, so log lines of one request can be correlated.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.FromContext(r.Context()).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// RateLimitMiddleware rejects requests beyond the limiter's budget.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.FromContext(r.Context()).Warn("Rate limit exceeded",
					"method", r.Method,
					"path", r.URL.Path,
					"remoteAddr", r.RemoteAddr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseUserID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid user_id %q", raw)
	}
	return &id, nil
}

// UserScopeMiddleware reads the optional user_id query parameter into the
// request context. Requests without one work on the shared history.
func UserScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUserID(r.URL.Query().Get("user_id"))
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		if userID != nil {
			ctx = context.WithValue(ctx, userIDContextKey, *userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext returns the user scope set by UserScopeMiddleware.
func GetUserIDFromContext(ctx context.Context) (*int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok {
		return nil, false
	}
	return &userID, true
}

// userLabel renders a scope for logs and messages.
func userLabel(userID *int64) string {
	if userID == nil {
		return "all"
	}
	return strconv.FormatInt(*userID, 10)
}
