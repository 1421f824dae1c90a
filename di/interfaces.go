package di

import (
	"context"
	"reflect"
)

// ServiceProvider resolves services by type.
// GetService returns nil service and nil error if type is not registered.
type ServiceProvider interface {
	GetService(serviceType reflect.Type) (any, error)
}

type KeyedServiceProvider interface {
	ServiceProvider
	GetKeyedService(serviceType reflect.Type, key any) (any, error)
}

type ServiceProviderIsService interface {
	IsService(serviceType reflect.Type) bool
}

type ServiceProviderIsKeyedService interface {
	ServiceProviderIsService
	IsKeyedService(serviceType reflect.Type, key any) bool
}

// ServiceScope owns a provider of scoped services.
// Closing the scope disposes services it resolved, closing it twice has no effect.
type ServiceScope interface {
	ServiceProvider() ServiceProvider
	Close() error
}

type AsyncServiceScope interface {
	ServiceScope
	AsyncCloser
}

type ServiceScopeFactory interface {
	CreateScope() (ServiceScope, error)
}

// ServiceProviderFactory lets a container take over provider construction.
type ServiceProviderFactory[B any] interface {
	CreateBuilder(services *ServiceCollection) (B, error)
	CreateServiceProvider(builder B) (ServiceProvider, error)
}

// AsyncCloser is implemented by disposables that support asynchronous disposal.
// Synchronous disposables implement io.Closer.
type AsyncCloser interface {
	CloseAsync(ctx context.Context) error
}
