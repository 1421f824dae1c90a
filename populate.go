package scopebridge

import (
	"reflect"

	"github.com/andriiyaremenko/scopebridge/di"
	"github.com/andriiyaremenko/scopebridge/lifetime"
)

// Populate registers services in builder together with the services every provider exposes:
// di.ServiceProvider, di.KeyedServiceProvider, di.ServiceProviderIsService,
// di.ServiceProviderIsKeyedService and di.ServiceScopeFactory.
// When several descriptors share type and key the last one is registered.
func Populate(builder *lifetime.Builder, services *di.ServiceCollection) error {
	registerBridgeServices(builder)

	return populate(builder, services)
}

func populate(builder *lifetime.Builder, services *di.ServiceCollection) error {
	if services == nil {
		return builder.Err()
	}

	descriptors := services.Descriptors()
	for _, descriptor := range descriptors {
		if err := descriptor.Validate(); err != nil {
			return err
		}
	}

	for _, descriptor := range lastWins(descriptors) {
		register(builder, descriptor)
	}

	return builder.Err()
}

// Bridge services are Transient: every resolution wraps the resolving scope,
// so Singletons may depend on them and get the scope that owns them.
func registerBridgeServices(builder *lifetime.Builder) {
	builder.
		Add(lifetime.Transient, NewServiceProvider, lifetime.ExternallyOwned()).
		Add(lifetime.Transient, func(scope *lifetime.Scope) di.ServiceProvider {
			return NewServiceProvider(scope)
		}, lifetime.ExternallyOwned()).
		Add(lifetime.Transient, func(scope *lifetime.Scope) di.KeyedServiceProvider {
			return NewServiceProvider(scope)
		}, lifetime.ExternallyOwned()).
		Add(lifetime.Transient, func(scope *lifetime.Scope) di.ServiceProviderIsService {
			return NewServiceProvider(scope)
		}, lifetime.ExternallyOwned()).
		Add(lifetime.Transient, func(scope *lifetime.Scope) di.ServiceProviderIsKeyedService {
			return NewServiceProvider(scope)
		}, lifetime.ExternallyOwned()).
		Add(lifetime.Transient, func(scope *lifetime.Scope) di.ServiceScopeFactory {
			return NewServiceScopeFactory(scope)
		}, lifetime.ExternallyOwned())
}

func register(builder *lifetime.Builder, descriptor di.ServiceDescriptor) {
	opts := []lifetime.RegistrationOption{lifetime.As(descriptor.ServiceType)}
	if descriptor.Key != nil {
		opts = append(opts, lifetime.Keyed(descriptor.Key))
	}

	switch {
	case descriptor.Instance != nil:
		builder.AddInstance(descriptor.Instance, opts...)
	case descriptor.Factory != nil:
		builder.Add(lifetimeOf(descriptor.Lifetime), factoryConstructor(descriptor.Factory), opts...)
	default:
		builder.Add(lifetimeOf(descriptor.Lifetime), descriptor.Constructor, opts...)
	}
}

func factoryConstructor(factory func(di.ServiceProvider) (any, error)) func(*lifetime.Scope) (any, error) {
	return func(scope *lifetime.Scope) (any, error) {
		return factory(NewServiceProvider(scope))
	}
}

func lifetimeOf(serviceLifetime di.ServiceLifetime) lifetime.Lifetime {
	switch serviceLifetime {
	case di.Singleton:
		return lifetime.Singleton
	case di.Scoped:
		return lifetime.PerScope
	case di.Transient:
		return lifetime.Transient
	default:
		return lifetime.Lifetime(-1)
	}
}

func lastWins(descriptors []di.ServiceDescriptor) []di.ServiceDescriptor {
	type descriptorKey struct {
		t   reflect.Type
		key any
	}

	index := make(map[descriptorKey]int, len(descriptors))
	result := make([]di.ServiceDescriptor, 0, len(descriptors))

	for _, descriptor := range descriptors {
		key := descriptorKey{t: descriptor.ServiceType, key: descriptor.Key}
		if i, ok := index[key]; ok {
			result[i] = descriptor
			continue
		}

		index[key] = len(result)
		result = append(result, descriptor)
	}

	return result
}
