package di

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrObjectDisposed is matched by errors returned from disposed providers and scopes.
var ErrObjectDisposed = errors.New("cannot access a disposed object")

type ObjectDisposedError struct {
	cause      error
	ObjectName string
}

func NewObjectDisposedError(objectName string, cause error) error {
	return &ObjectDisposedError{ObjectName: objectName, cause: cause}
}

func (err *ObjectDisposedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrObjectDisposed, err.ObjectName)
}

func (err *ObjectDisposedError) Unwrap() error {
	return err.cause
}

func (err *ObjectDisposedError) Is(target error) bool {
	return target == ErrObjectDisposed
}

type ServiceNotFoundError struct {
	ServiceType reflect.Type
	Key         any
}

func (err *ServiceNotFoundError) Error() string {
	if err.Key != nil {
		return fmt.Sprintf("no service for type %s with key %v has been registered", err.ServiceType, err.Key)
	}

	return fmt.Sprintf("no service for type %s has been registered", err.ServiceType)
}

type InvalidDescriptorError struct {
	ServiceType reflect.Type
	Reason      string
}

func (err *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor for %s: %s", err.ServiceType, err.Reason)
}
