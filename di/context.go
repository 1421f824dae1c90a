package di

import "context"

type requestServicesKey struct{}

// WithRequestServices returns a new Context that carries the provider of the current request scope.
func WithRequestServices(ctx context.Context, provider ServiceProvider) context.Context {
	return context.WithValue(ctx, requestServicesKey{}, provider)
}

// RequestServices returns the provider stored in ctx, if it exists.
func RequestServices(ctx context.Context) (ServiceProvider, bool) {
	provider, ok := ctx.Value(requestServicesKey{}).(ServiceProvider)
	return provider, ok
}
