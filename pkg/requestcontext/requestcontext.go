// Package requestcontext carries request-scoped values (request id, client
// metadata, authenticated caller) across transport and service layers.
package requestcontext

import "context"

type (
	requestIDKey struct{}
	clientIPKey  struct{}
	userAgentKey struct{}
	callerKey    struct{}
)

// Caller identifies the authenticated party behind a request, as asserted by
// the external identity service.
type Caller struct {
	Subject string
	Name    string
}

// IsZero reports whether no caller was attached.
func (c Caller) IsZero() bool {
	return c.Subject == ""
}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" when absent.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// ClientIP returns the resolved client IP, or "" when absent.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

// UserAgent returns the raw User-Agent header, or "" when absent.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// WithCaller attaches the authenticated caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the authenticated caller, or the zero Caller.
func CallerFrom(ctx context.Context) Caller {
	v, _ := ctx.Value(callerKey{}).(Caller)
	return v
}
