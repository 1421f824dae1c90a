package lifetime

import (
	"fmt"
	"reflect"
)

// Lifetime of a registered service.
type Lifetime int

const (
	// For `Transient` service new instance is returned on every resolution.
	// Disposable transients are tracked by the resolving scope.
	Transient Lifetime = iota
	// For `PerScope` service same instance is returned within one Scope.
	PerScope
	// For `Singleton` service same instance is returned for the Scope
	// that declared the registration and all of its nested scopes.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case PerScope:
		return "PerScope"
	case Singleton:
		return "Singleton"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

func (l Lifetime) valid() bool {
	return l == Transient || l == PerScope || l == Singleton
}

type serviceKey struct {
	t   reflect.Type
	key any
}

func (k serviceKey) String() string {
	if k.key == nil {
		return typeName(k.t)
	}

	return fmt.Sprintf("%s[%v]", typeName(k.t), k.key)
}

// hashable reports false for keys that would panic as map keys.
func (k serviceKey) hashable() bool {
	return k.key == nil || reflect.ValueOf(k.key).Comparable()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	return t.String()
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
