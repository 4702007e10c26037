package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ishantai95/invoicebot/internal/auth"
	"github.com/ishantai95/invoicebot/internal/observability"
)

// requestIDMiddleware tags every request with an ID so log lines from one
// request can be correlated. An inbound X-Request-ID is honored.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware rejects requests without a valid backend API key and
// attaches the resolved identity to the context. With no keys configured
// the API runs open and every caller shares the default service.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validator.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := auth.ExtractKey(r)
		if key == "" {
			respondError(w, http.StatusUnauthorized, "missing_api_key", "provide an API key via X-API-Key or Authorization: Bearer")
			return
		}
		id, err := s.validator.Validate(key)
		if err != nil {
			s.metrics.AuthAttempts.WithLabelValues("bad_key").Inc()
			respondError(w, http.StatusUnauthorized, "invalid_api_key", "API key not recognized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}
