package lifetime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

const (
	contextDepName = "context.Context"

	constructorTypeStr            string = "func(T1, ...) [T|(T, error)|(T, Cleanup, error)]"
	constructorWithContextTypeStr string = "func(context.Context, T1, ...) [T|(T, error)|(T, Cleanup, error)]"

	singletonPossibleConstructor string = constructorTypeStr
	perScopePossibleConstructor  string = constructorTypeStr + " | " + constructorWithContextTypeStr
	transientPossibleConstructor string = "func(T1, ...) [T|(T, error)]" + " | " + "func(context.Context, T1, ...) [T|(T, error)]"
)

var (
	errorInterface   = reflect.TypeOf((*error)(nil)).Elem()
	cleanupType      = reflect.TypeOf((*Cleanup)(nil)).Elem()
	contextInterface = reflect.TypeOf((*context.Context)(nil)).Elem()
	scopeType        = reflect.TypeOf((*Scope)(nil))
	emptyInterface   = reflect.TypeOf((*any)(nil)).Elem()

	ErrVariadicConstructor  = fmt.Errorf("variadic constructor is not supported")
	ErrDuplicateConstructor = fmt.Errorf("Builder has already registered constructor for this type")
	ErrConstructorNotAFunc  = fmt.Errorf("constructor is not a function")
	ErrNotAssignable        = fmt.Errorf("constructed service is not assignable to registered type")
	ErrUncomparableKey      = fmt.Errorf("service key must be comparable")
	ErrIWrongTType          = fmt.Errorf("I can be used only with T as a struct")
	ErrIWrongIType          = fmt.Errorf("I can be used only with I as an interface")
	ErrITDoesNotImplementI  = fmt.Errorf("I can only be used with T if T or *T implements I")

	// ErrScopeDisposed is matched by every error returned
	// from a Scope that has already been closed.
	ErrScopeDisposed = errors.New("cannot access a disposed lifetime scope")
)

func newConstructorUnsupportedError(constructorType reflect.Type, lifetime Lifetime) error {
	switch lifetime {
	case Singleton:
		return newBadConstructorError(
			&ConstructorTemplateError{
				Lifetime:                      lifetime,
				SupportedConstructorTemplates: singletonPossibleConstructor,
			},
			constructorType,
		)
	case PerScope:
		return newBadConstructorError(
			&ConstructorTemplateError{
				Lifetime:                      lifetime,
				SupportedConstructorTemplates: perScopePossibleConstructor,
			},
			constructorType,
		)
	case Transient:
		return newBadConstructorError(
			&ConstructorTemplateError{
				Lifetime:                      lifetime,
				SupportedConstructorTemplates: transientPossibleConstructor,
			},
			constructorType,
		)
	default:
		return LifetimeUnsupportedError(lifetime.String())
	}
}

type LifetimeUnsupportedError string

func (lifetime LifetimeUnsupportedError) Error() string {
	return fmt.Sprintf("%s Lifetime is unsupported", string(lifetime))
}

func newBadConstructorError(cause error, constructorType reflect.Type) error {
	return &BadConstructorError{
		cause:           cause,
		ConstructorType: constructorType,
	}
}

type BadConstructorError struct {
	cause           error
	ConstructorType reflect.Type
}

func (err *BadConstructorError) Error() string {
	return fmt.Sprintf("bad constructor %s: %s", typeName(err.ConstructorType), err.cause)
}

func (err *BadConstructorError) Unwrap() error {
	return err.cause
}

type TError struct {
	T reflect.Type
}

func (err *TError) Error() string {
	return fmt.Sprintf("lifetime.T can only be used with a struct, got %s", err.T)
}

type PError struct {
	T reflect.Type
}

func (err *PError) Error() string {
	return fmt.Sprintf("lifetime.P can only be used with a struct, got %s", err.T)
}

func newIError(cause error, i, t reflect.Type) error {
	return &IError{T: t, I: i, cause: cause}
}

type IError struct {
	cause error

	I, T reflect.Type
}

func (err *IError) Error() string {
	return fmt.Sprintf("lifetime.I[%s, %s] returned an error: %s", err.I, err.T, err.cause)
}

func (err *IError) Unwrap() error {
	return err.cause
}

type ConstructorTemplateError struct {
	SupportedConstructorTemplates string
	Lifetime                      Lifetime
}

func (err *ConstructorTemplateError) Error() string {
	return fmt.Sprintf(
		"only %s can be used for %s",
		err.SupportedConstructorTemplates,
		err.Lifetime,
	)
}

func newConstructorNotFoundError(key serviceKey) error {
	return &ConstructorNotFoundError{
		TypeName: typeName(key.t),
		Key:      key.key,
	}
}

type ConstructorNotFoundError struct {
	Key      any
	TypeName string
}

func (err *ConstructorNotFoundError) Error() string {
	if err.Key != nil {
		return fmt.Sprintf("%s constructor with key %v not found", err.TypeName, err.Key)
	}

	return fmt.Sprintf("%s constructor not found", err.TypeName)
}

func newCircularDependencyError(constructor any, dependency string) error {
	return &CircularDependencyError{
		Dependency:  dependency,
		Constructor: constructor,
	}
}

type CircularDependencyError struct {
	Constructor any
	Dependency  string
}

func (err *CircularDependencyError) Error() string {
	return fmt.Sprintf("%s in %T is dependant on returned type", err.Dependency, err.Constructor)
}

func newScopeHierarchyError(dep *record) error {
	return &ScopeHierarchyError{DepServiceName: dep.key.String(), DepLifetime: dep.lifetime}
}

type ScopeHierarchyError struct {
	DepServiceName string
	DepLifetime    Lifetime
}

func (err *ScopeHierarchyError) Error() string {
	return fmt.Sprintf(
		"dependency on %s %s violates scope hierarchy",
		err.DepServiceName,
		err.DepLifetime,
	)
}

func newServiceBuilderError(cause error, lifetime Lifetime, typeName string) error {
	return &ServiceBuilderError{
		cause:    cause,
		Lifetime: lifetime,
		TypeName: typeName,
	}
}

type ServiceBuilderError struct {
	cause    error
	TypeName string
	Lifetime Lifetime
}

func (err *ServiceBuilderError) Error() string {
	return fmt.Sprintf("cannot build %s %s: %s", err.Lifetime, err.TypeName, err.cause)
}

func (err *ServiceBuilderError) Unwrap() error {
	return err.cause
}

func newConstructorError(cause error) error {
	return &ConstructorError{
		cause: cause,
	}
}

type ConstructorError struct {
	cause error
}

func (err *ConstructorError) Error() string {
	return fmt.Sprintf("constructor returned an error: %s", err.cause)
}

func (err *ConstructorError) Unwrap() error {
	return err.cause
}

func newUnexpectedResultError(values []reflect.Value) error {
	return &UnexpectedResultError{
		Result: values,
	}
}

type UnexpectedResultError struct {
	Result []reflect.Value
}

func (err *UnexpectedResultError) Error() string {
	return fmt.Sprintf("unexpected result: %#v", err.Result)
}

func newDisposedError(scope *Scope) error {
	return &DisposedError{Tag: scope.tag}
}

// DisposedError is returned when a closed Scope is used.
type DisposedError struct {
	Tag any
}

func (err *DisposedError) Error() string {
	if err.Tag != nil {
		return fmt.Sprintf("%s: %v", ErrScopeDisposed, err.Tag)
	}

	return ErrScopeDisposed.Error()
}

func (err *DisposedError) Is(target error) bool {
	return target == ErrScopeDisposed
}

func newDisposalError(cause error, service string) error {
	return &DisposalError{cause: cause, Service: service}
}

// DisposalError wraps a failure of a single tracked instance while its Scope was closing.
type DisposalError struct {
	cause   error
	Service string
}

func (err *DisposalError) Error() string {
	return fmt.Sprintf("cannot dispose %s: %s", err.Service, err.cause)
}

func (err *DisposalError) Unwrap() error {
	return err.cause
}
