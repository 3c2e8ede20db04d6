package di

import (
	"context"
	"fmt"
	"reflect"
)

// InterfaceOf returns the interface key for T. T is usually an interface
// type; concrete types work as well.
func InterfaceOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register binds factory to the interface type T.
func Register[T any](c *Container, factory any, scope Scope, opts ...RegisterOption) (*Provider, error) {
	return c.Register(InterfaceOf[T](), factory, scope, opts...)
}

// RegisterInstance binds an already-built value to the interface type T as a
// singleton.
func RegisterInstance[T any](c *Container, instance T, opts ...RegisterOption) (*Provider, error) {
	return c.RegisterInstance(InterfaceOf[T](), instance, opts...)
}

// Resolve returns the instance bound to the interface type T.
func Resolve[T any](c *Container) (T, error) {
	return castInstance[T](c.Resolve(InterfaceOf[T]()))
}

// ResolveContext returns the instance bound to the interface type T through
// the context-aware resolution path.
func ResolveContext[T any](ctx context.Context, c *Container) (T, error) {
	return castInstance[T](c.ResolveContext(ctx, InterfaceOf[T]()))
}

// MustResolve is Resolve panicking on failure, for composition roots where a
// missing binding is a programming error.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("di: %v", err))
	}
	return v
}

// Override installs instance as a scoped substitution for the interface type
// T. Release the returned restore function with defer.
func Override[T any](c *Container, instance T) (restore func(), err error) {
	return c.Override(InterfaceOf[T](), instance)
}

func castInstance[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Expected: InterfaceOf[T]().String(),
			Got:      fmt.Sprintf("%T", v),
		}
	}
	return typed, nil
}
