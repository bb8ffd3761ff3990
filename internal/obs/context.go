package obs

import "context"

// routePatternKey is the context key storing matched route pattern.
type routePatternKey struct{}

// routeSlot is shared by every handler of one request so an inner router
// can publish the pattern it matched to the middleware wrapping it.
type routeSlot struct {
	pattern string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, &routeSlot{pattern: pattern})
}

// SetRoutePattern records pattern on a context prepared by WithRoutePattern.
// It reports false when the context carries no slot.
func SetRoutePattern(ctx context.Context, pattern string) bool {
	if ctx == nil {
		return false
	}
	slot, ok := ctx.Value(routePatternKey{}).(*routeSlot)
	if !ok {
		return false
	}
	slot.pattern = pattern
	return true
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if slot, ok := ctx.Value(routePatternKey{}).(*routeSlot); ok {
		return slot.pattern
	}
	return ""
}
