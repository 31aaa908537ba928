package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// OperatorKey carries the authenticated operator name in the request
// context.
const OperatorKey contextKey = "operator"

// Middleware rejects requests without a valid bearer token. Mutating
// endpoints are wrapped with it; read-only status endpoints are not.
func (t Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, `{"error":"authorization token is missing"}`, http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims, err := t.Validate(tokenStr)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext returns the operator name the middleware stored,
// empty when the request was not authenticated.
func OperatorFromContext(ctx context.Context) string {
	operator, _ := ctx.Value(OperatorKey).(string)
	return operator
}
