package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/annolab/tile-ingest/pkg/requestid"
)

// RequestID takes the request ID from the x-request-id header, falling back
// to the one chi generated, or a fresh UUID, and injects it into the request
// context for the rest of the stack.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-request-id")
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = requestid.Generate()
		}

		ctx := requestid.ToContext(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
