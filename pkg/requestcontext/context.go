// Package requestcontext carries request-scoped values from the HTTP edge to
// the services without the services importing net/http.
//
//	caller := requestcontext.Caller(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject the same values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithCaller(ctx, "scanner-1")
package requestcontext

import (
	"context"
	"time"

	"aidtrace/pkg/domain"
)

type (
	callerKey    struct{}
	clientKey    struct{}
	requestIDKey struct{}
	timeKey      struct{}
)

// Caller is the authenticated identity, or the null identity outside a request.
func Caller(ctx context.Context) domain.Identity {
	caller, _ := ctx.Value(callerKey{}).(domain.Identity)
	return caller
}

func WithCaller(ctx context.Context, caller domain.Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Client describes the calling device as the HTTP edge saw it.
type Client struct {
	IP        string
	UserAgent string
	// Device is a short summary such as "Android 14 / Chrome 120 (mobile)",
	// recorded on scan entries.
	Device string
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientOf returns the client metadata, zero when none was recorded.
func ClientOf(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}

// Device is ClientOf(ctx).Device.
func Device(ctx context.Context) string { return ClientOf(ctx).Device }

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now is the instant pinned for this request, or the wall clock when nothing
// was pinned (background work, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock every ledger check in ctx will see, including
// refund lock expiry.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}
