package jsonrpc

import "context"

type requestIDKey struct{}

func withRequestID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the host-assigned id of the request being handled, when
// the context originates from the run loop.
func RequestID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requestIDKey{}).(int64)
	return id, ok
}
