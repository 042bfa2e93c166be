package routes

import "context"

// matchKey is a private type for the route match context key.
type matchKey struct{}

// SetMatch stores a classified route match in the context.
func SetMatch(ctx context.Context, m Match) context.Context {
	return context.WithValue(ctx, matchKey{}, m)
}

// MatchFromContext retrieves the route match placed by the auth
// middleware. Returns an invalid match if none is set.
func MatchFromContext(ctx context.Context) Match {
	if m, ok := ctx.Value(matchKey{}).(Match); ok {
		return m
	}
	return Match{Category: CategoryInvalid}
}
