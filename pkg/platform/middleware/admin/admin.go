// Package admin guards operator-only routes with a shared token, given either
// in clear text or as a bcrypt hash.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
	"certledger/pkg/secrets"
)

const (
	HeaderToken = "X-Admin-Token"
	HeaderActor = "X-Admin-Actor-ID"
)

type actorKey struct{}

// ActorID returns the operator named by X-Admin-Actor-ID on an authorized
// admin request, or "".
func ActorID(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	return v
}

// Matcher reports whether a presented token is the admin token.
type Matcher func(token string) bool

// StaticToken matches expected in constant time. An empty expected token
// matches nothing.
func StaticToken(expected string) Matcher {
	return func(token string) bool {
		return expected != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
	}
}

// HashedToken matches tokens against a bcrypt hash. An empty hash matches
// nothing.
func HashedToken(hash string) Matcher {
	return func(token string) bool {
		return hash != "" && token != "" && secrets.Verify(token, hash) == nil
	}
}

// RequireAdminToken rejects requests whose X-Admin-Token does not equal
// expectedToken. An empty expectedToken disables the routes entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return Require(StaticToken(expectedToken), logger)
}

// Require rejects requests whose X-Admin-Token is not accepted by match.
func Require(match Matcher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !match(r.Header.Get(HeaderToken)) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			if actor := r.Header.Get(HeaderActor); actor != "" {
				ctx = context.WithValue(ctx, actorKey{}, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
