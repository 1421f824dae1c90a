package lifetime

import "reflect"

type propertyFiller struct {
	Type         reflect.Type
	Dependencies []reflect.Type
	NewInstance  func(values ...any) (any, error)
}

// T returns constructor of Type with exported fields filled from registered services.
func T[T any]() (propertyFiller, error) {
	t := typeOf[T]()

	if t.Kind() != reflect.Struct {
		return propertyFiller{}, &TError{T: t}
	}

	dependencies, fields := exportedFields(t)

	return propertyFiller{
		Type:         t,
		Dependencies: dependencies,
		NewInstance:  getValueInstance[T](fields),
	}, nil
}

// P returns constructor of *Type with exported fields filled from registered services.
func P[T any]() (propertyFiller, error) {
	t := typeOf[T]()

	if t.Kind() != reflect.Struct {
		return propertyFiller{}, &PError{T: t}
	}

	dependencies, fields := exportedFields(t)

	return propertyFiller{
		Type:         reflect.PointerTo(t),
		Dependencies: dependencies,
		NewInstance:  getPointerInstance[T](fields),
	}, nil
}

// I returns constructor of Interface implemented by *Type
// with exported fields filled from registered services.
func I[I, T any]() (propertyFiller, error) {
	t := typeOf[T]()
	p := reflect.PointerTo(t)
	i := typeOf[I]()

	if t.Kind() != reflect.Struct {
		return propertyFiller{}, newIError(ErrIWrongTType, i, t)
	}

	if i.Kind() != reflect.Interface {
		return propertyFiller{}, newIError(ErrIWrongIType, i, t)
	}

	if !p.Implements(i) {
		return propertyFiller{}, newIError(ErrITDoesNotImplementI, i, t)
	}

	dependencies, fields := exportedFields(t)

	return propertyFiller{
		Type:         i,
		Dependencies: dependencies,
		NewInstance:  getPointerInstance[T](fields),
	}, nil
}

func exportedFields(t reflect.Type) ([]reflect.Type, map[int]int) {
	fieldIndex := 0
	fields := make(map[int]int)
	dependencies := make([]reflect.Type, 0, 1)

	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}

		dependencies = append(dependencies, t.Field(i).Type)
		fields[fieldIndex] = i
		fieldIndex++
	}

	return dependencies, fields
}

func getValueInstance[T any](fields map[int]int) func(...any) (any, error) {
	return func(values ...any) (any, error) {
		p := reflect.ValueOf(new(T)).Elem()
		fill(p, fields, values)

		return p.Interface(), nil
	}
}

func getPointerInstance[T any](fields map[int]int) func(...any) (any, error) {
	return func(values ...any) (any, error) {
		p := reflect.ValueOf(new(T)).Elem()
		fill(p, fields, values)

		return p.Addr().Interface(), nil
	}
}

func fill(p reflect.Value, fields map[int]int, values []any) {
	for i, v := range values {
		if v == nil {
			continue
		}

		p.Field(fields[i]).Set(reflect.ValueOf(v))
	}
}
