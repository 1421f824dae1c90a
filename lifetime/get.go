package lifetime

import "reflect"

// Get returns service of type T resolved from scope.
func Get[T any](scope *Scope) (T, error) {
	service, err := scope.Resolve(typeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}

	return cast[T](service)
}

func GetKeyed[T any](scope *Scope, key any) (T, error) {
	service, err := scope.ResolveKeyed(typeOf[T](), key)
	if err != nil {
		var zero T
		return zero, err
	}

	return cast[T](service)
}

// MustGet panics if service cannot be resolved.
func MustGet[T any](scope *Scope) T {
	service, err := Get[T](scope)
	if err != nil {
		panic(err)
	}

	return service
}

func cast[T any](service any) (T, error) {
	var zero T
	if service == nil {
		return zero, nil
	}

	s, ok := service.(T)
	if !ok {
		return zero, newUnexpectedResultError([]reflect.Value{reflect.ValueOf(service)})
	}

	return s, nil
}
