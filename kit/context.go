package kit

import "context"

type contextKey string

const (
	RunIDKey     contextKey = "kit_run_id"
	TransportKey contextKey = "kit_transport" // "http", "mcp", "cli"
)

// WithRunID tags ctx with the identifier of the collection run it serves.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(RunIDKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the transport tag, "cli" when none was set.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "cli"
}
