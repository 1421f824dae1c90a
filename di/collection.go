package di

import (
	"fmt"
	"reflect"
	"slices"
)

type ServiceLifetime int

const (
	Singleton ServiceLifetime = iota
	Scoped
	Transient
)

func (l ServiceLifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("ServiceLifetime(%d)", int(l))
	}
}

// ServiceDescriptor describes one registration.
// Exactly one of Constructor, Factory and Instance must be set.
// Constructor is a function whose first result is assignable to ServiceType,
// its parameters are resolved from the provider.
type ServiceDescriptor struct {
	ServiceType reflect.Type
	Key         any
	Constructor any
	Factory     func(ServiceProvider) (any, error)
	Instance    any
	Lifetime    ServiceLifetime
}

func (d ServiceDescriptor) Validate() error {
	if d.ServiceType == nil {
		return &InvalidDescriptorError{Reason: "service type is not set"}
	}

	if !comparableKey(d.Key) {
		return &InvalidDescriptorError{
			ServiceType: d.ServiceType,
			Reason:      fmt.Sprintf("service key of type %T is not comparable", d.Key),
		}
	}

	set := 0
	for _, ok := range []bool{d.Constructor != nil, d.Factory != nil, d.Instance != nil} {
		if ok {
			set++
		}
	}

	if set != 1 {
		return &InvalidDescriptorError{
			ServiceType: d.ServiceType,
			Reason:      "exactly one of constructor, factory or instance must be set",
		}
	}

	if d.Instance != nil && d.Lifetime != Singleton {
		return &InvalidDescriptorError{ServiceType: d.ServiceType, Reason: "instance can only be a singleton"}
	}

	if d.Instance != nil && !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
		return &InvalidDescriptorError{
			ServiceType: d.ServiceType,
			Reason:      fmt.Sprintf("instance of type %T is not assignable", d.Instance),
		}
	}

	if d.Constructor != nil {
		t := reflect.TypeOf(d.Constructor)
		if t.Kind() != reflect.Func || t.NumOut() == 0 {
			return &InvalidDescriptorError{ServiceType: d.ServiceType, Reason: "constructor is not a function"}
		}
	}

	return nil
}

// ServiceCollection is an ordered list of descriptors.
// When several descriptors share type and key the last one wins.
type ServiceCollection struct {
	descriptors []ServiceDescriptor
}

func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{}
}

func (c *ServiceCollection) Add(descriptor ServiceDescriptor) *ServiceCollection {
	c.descriptors = append(c.descriptors, descriptor)
	return c
}

// TryAdd adds descriptor only if nothing is registered for its type and key.
func (c *ServiceCollection) TryAdd(descriptor ServiceDescriptor) bool {
	if c.Contains(descriptor.ServiceType, descriptor.Key) {
		return false
	}

	c.Add(descriptor)

	return true
}

// Contains reports false for an uncomparable key since no valid descriptor can carry it.
func (c *ServiceCollection) Contains(serviceType reflect.Type, key any) bool {
	if !comparableKey(key) {
		return false
	}

	return slices.ContainsFunc(c.descriptors, func(d ServiceDescriptor) bool {
		return d.ServiceType == serviceType && comparableKey(d.Key) && d.Key == key
	})
}

func comparableKey(key any) bool {
	return key == nil || reflect.ValueOf(key).Comparable()
}

func (c *ServiceCollection) Len() int {
	return len(c.descriptors)
}

func (c *ServiceCollection) Descriptors() []ServiceDescriptor {
	return slices.Clone(c.descriptors)
}

func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func AddSingleton[T any](c *ServiceCollection, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Singleton, Constructor: constructor})
}

func AddScoped[T any](c *ServiceCollection, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Scoped, Constructor: constructor})
}

func AddTransient[T any](c *ServiceCollection, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Transient, Constructor: constructor})
}

func AddSingletonInstance[T any](c *ServiceCollection, instance T) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Singleton, Instance: instance})
}

func AddSingletonFactory[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Singleton, Factory: erase(factory)})
}

func AddScopedFactory[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Scoped, Factory: erase(factory)})
}

func AddTransientFactory[T any](c *ServiceCollection, factory func(ServiceProvider) (T, error)) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Lifetime: Transient, Factory: erase(factory)})
}

func AddKeyedSingleton[T any](c *ServiceCollection, key any, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Key: key, Lifetime: Singleton, Constructor: constructor})
}

func AddKeyedScoped[T any](c *ServiceCollection, key any, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Key: key, Lifetime: Scoped, Constructor: constructor})
}

func AddKeyedTransient[T any](c *ServiceCollection, key any, constructor any) *ServiceCollection {
	return c.Add(ServiceDescriptor{ServiceType: TypeOf[T](), Key: key, Lifetime: Transient, Constructor: constructor})
}

func erase[T any](factory func(ServiceProvider) (T, error)) func(ServiceProvider) (any, error) {
	return func(sp ServiceProvider) (any, error) {
		service, err := factory(sp)
		if err != nil {
			return nil, err
		}

		return service, nil
	}
}
