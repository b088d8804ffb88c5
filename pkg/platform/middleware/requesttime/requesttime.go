// Package requesttime pins "now" for the duration of a request so that a
// credential's pending timestamp, a verification attempt's checked_at and the
// access log all agree.
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type contextKeyRequestTime struct{}

// Middleware records the arrival time of the request in its context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		ctx := context.WithValue(r.Context(), contextKeyRequestTime{}, now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Now retrieves the request-scoped time from context.
// Outside a request it falls back to the wall clock in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins ctx to t. The reconciler uses it per sweep; tests use it to
// freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}
