package scopebridge

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/andriiyaremenko/scopebridge/di"
)

// Middleware creates a service scope per request and stores its provider in the request context.
// Handlers get it with di.RequestServices. The scope is closed once next returns.
func Middleware(factory di.ServiceScopeFactory, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, err := factory.CreateScope()
			if err != nil {
				o.logger.Error(msgCreateRequestScope, zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			defer func() {
				if err := closeScope(r.Context(), scope); err != nil {
					o.logger.Error(msgCloseRequestScope, zap.String("path", r.URL.Path), zap.Error(err))
				}
			}()

			ctx := di.WithRequestServices(r.Context(), scope.ServiceProvider())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func closeScope(ctx context.Context, scope di.ServiceScope) error {
	if async, ok := scope.(di.AsyncServiceScope); ok {
		return async.CloseAsync(context.WithoutCancel(ctx))
	}

	return scope.Close()
}
