package scopebridge

import (
	"context"
	"errors"
	"io"
	"reflect"

	"github.com/andriiyaremenko/scopebridge/di"
	"github.com/andriiyaremenko/scopebridge/lifetime"
)

var (
	_ di.KeyedServiceProvider          = new(ServiceProvider)
	_ di.ServiceProviderIsKeyedService = new(ServiceProvider)
	_ di.AsyncCloser                   = new(ServiceProvider)
	_ io.Closer                        = new(ServiceProvider)
)

// ServiceProvider resolves services from a lifetime scope.
// Closing it closes the lifetime scope.
type ServiceProvider struct {
	scope *lifetime.Scope
}

func NewServiceProvider(scope *lifetime.Scope) *ServiceProvider {
	return &ServiceProvider{scope: scope}
}

// LifetimeScope returns the wrapped lifetime scope.
func (sp *ServiceProvider) LifetimeScope() *lifetime.Scope {
	return sp.scope
}

func (sp *ServiceProvider) GetService(serviceType reflect.Type) (any, error) {
	service, _, err := sp.scope.TryResolve(serviceType)
	if err != nil {
		return nil, translate(serviceProviderObjectName, err)
	}

	return service, nil
}

func (sp *ServiceProvider) GetKeyedService(serviceType reflect.Type, key any) (any, error) {
	service, _, err := sp.scope.TryResolveKeyed(serviceType, key)
	if err != nil {
		return nil, translate(serviceProviderObjectName, err)
	}

	return service, nil
}

func (sp *ServiceProvider) IsService(serviceType reflect.Type) bool {
	return sp.scope.IsRegistered(serviceType)
}

func (sp *ServiceProvider) IsKeyedService(serviceType reflect.Type, key any) bool {
	return sp.scope.IsRegisteredKeyed(serviceType, key)
}

func (sp *ServiceProvider) Close() error {
	return sp.scope.Close()
}

func (sp *ServiceProvider) CloseAsync(ctx context.Context) error {
	return sp.scope.CloseAsync(ctx)
}

func translate(objectName string, err error) error {
	if errors.Is(err, lifetime.ErrScopeDisposed) {
		return di.NewObjectDisposedError(objectName, err)
	}

	return err
}
