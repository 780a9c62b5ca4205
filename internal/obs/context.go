package obs

import "context"

type ctxKey int

const routeKey ctxKey = iota

// WithRoutePattern records the matched chi route pattern so downstream
// middleware can label metrics and spans by route, not raw path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey, pattern)
}

// RoutePatternFromContext returns the pattern stored by
// WithRoutePattern, or "" when none was recorded.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routeKey).(string)
	return pattern
}
