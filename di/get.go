package di

import (
	"context"
	"fmt"
	"reflect"
)

func GetService[T any](sp ServiceProvider) (T, error) {
	service, err := sp.GetService(TypeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}

	return cast[T](service)
}

// GetRequiredService fails with ServiceNotFoundError if T is not registered.
func GetRequiredService[T any](sp ServiceProvider) (T, error) {
	var zero T

	service, err := sp.GetService(TypeOf[T]())
	if err != nil {
		return zero, err
	}

	if service == nil {
		return zero, &ServiceNotFoundError{ServiceType: TypeOf[T]()}
	}

	return cast[T](service)
}

func GetKeyedService[T any](sp ServiceProvider, key any) (T, error) {
	service, err := getKeyed(sp, TypeOf[T](), key)
	if err != nil {
		var zero T
		return zero, err
	}

	return cast[T](service)
}

func GetRequiredKeyedService[T any](sp ServiceProvider, key any) (T, error) {
	var zero T

	service, err := getKeyed(sp, TypeOf[T](), key)
	if err != nil {
		return zero, err
	}

	if service == nil {
		return zero, &ServiceNotFoundError{ServiceType: TypeOf[T](), Key: key}
	}

	return cast[T](service)
}

func getKeyed(sp ServiceProvider, serviceType reflect.Type, key any) (any, error) {
	keyed, ok := sp.(KeyedServiceProvider)
	if !ok {
		return nil, fmt.Errorf("%T does not support keyed services", sp)
	}

	return keyed.GetKeyedService(serviceType, key)
}

// CreateScope creates a scope using ServiceScopeFactory registered in sp.
func CreateScope(sp ServiceProvider) (ServiceScope, error) {
	factory, err := GetRequiredService[ServiceScopeFactory](sp)
	if err != nil {
		return nil, err
	}

	return factory.CreateScope()
}

// CreateAsyncScope is CreateScope for callers that dispose the scope with CloseAsync.
func CreateAsyncScope(sp ServiceProvider) (AsyncServiceScope, error) {
	scope, err := CreateScope(sp)
	if err != nil {
		return nil, err
	}

	if async, ok := scope.(AsyncServiceScope); ok {
		return async, nil
	}

	return syncScope{scope}, nil
}

type syncScope struct {
	ServiceScope
}

func (s syncScope) CloseAsync(context.Context) error {
	return s.Close()
}

func cast[T any](service any) (T, error) {
	var zero T
	if service == nil {
		return zero, nil
	}

	s, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service of type %T is not %s", service, TypeOf[T]())
	}

	return s, nil
}
