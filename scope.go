package scopebridge

import (
	"context"

	"github.com/andriiyaremenko/scopebridge/di"
	"github.com/andriiyaremenko/scopebridge/lifetime"
)

var (
	_ di.AsyncServiceScope   = new(ServiceScope)
	_ di.ServiceScopeFactory = new(ServiceScopeFactory)
)

// ServiceScope owns a nested lifetime scope.
// It and its ServiceProvider share that scope, closing either disposes both.
type ServiceScope struct {
	provider *ServiceProvider
}

func newServiceScope(scope *lifetime.Scope) *ServiceScope {
	return &ServiceScope{provider: NewServiceProvider(scope)}
}

func (s *ServiceScope) ServiceProvider() di.ServiceProvider {
	return s.provider
}

func (s *ServiceScope) Close() error {
	return s.provider.scope.Close()
}

func (s *ServiceScope) CloseAsync(ctx context.Context) error {
	return s.provider.scope.CloseAsync(ctx)
}

// ServiceScopeFactory begins nested scopes of the lifetime scope it was resolved from.
type ServiceScopeFactory struct {
	scope *lifetime.Scope
}

func NewServiceScopeFactory(scope *lifetime.Scope) *ServiceScopeFactory {
	return &ServiceScopeFactory{scope: scope}
}

func (f *ServiceScopeFactory) CreateScope() (di.ServiceScope, error) {
	scope, err := f.scope.BeginScope()
	if err != nil {
		return nil, translate(scopeFactoryObjectName, err)
	}

	return newServiceScope(scope), nil
}
