package di

import (
	"fmt"
	"reflect"
)

// NotRegisteredError is returned when no provider is bound to an interface.
type NotRegisteredError struct {
	Interface any
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no provider registered for interface %s", keyName(e.Interface))
}

// AlreadyRegisteredError is returned when binding an interface that already
// has a provider and override was not requested.
type AlreadyRegisteredError struct {
	Interface any
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("provider for interface %s already registered", keyName(e.Interface))
}

// InvalidScopeError is returned when a provider declares an unrecognized scope.
type InvalidScopeError struct {
	Provider string
	Scope    Scope
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope %q for provider %s: only transient, request and singleton are supported",
		e.Scope, e.Provider)
}

// InvalidProviderTypeError is returned when a factory is not a supported
// callable or prototype shape.
type InvalidProviderTypeError struct {
	Provider string
	Reason   string
}

func (e *InvalidProviderTypeError) Error() string {
	return fmt.Sprintf("invalid provider %s: %s", e.Provider, e.Reason)
}

// ResourceScopeError is returned when a resource provider is registered with
// a transient scope. Teardown needs a bounded context to run in.
type ResourceScopeError struct {
	Provider string
	Kind     ProviderKind
}

func (e *ResourceScopeError) Error() string {
	return fmt.Sprintf("%s provider %s cannot be transient: its teardown requires a scoped context",
		e.Kind, e.Provider)
}

// ScopeMismatchError is returned when a provider depends on a provider whose
// scope is not allowed for the dependent's scope.
type ScopeMismatchError struct {
	Provider        string
	ProviderScope   Scope
	Dependency      string
	DependencyScope Scope
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("%s scoped provider %s cannot depend on %s scoped provider %s",
		e.ProviderScope, e.Provider, e.DependencyScope, e.Dependency)
}

// MissingAnnotationError is returned when a descriptor parameter carries no type.
type MissingAnnotationError struct {
	Provider  string
	Parameter string
}

func (e *MissingAnnotationError) Error() string {
	return fmt.Sprintf("provider %s parameter %q has no type", e.Provider, e.Parameter)
}

// UnknownDependencyError is returned when a provider parameter resolves to an
// interface with no registered provider.
type UnknownDependencyError struct {
	Provider  string
	Parameter string
	Type      reflect.Type
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("provider %s parameter %q depends on unregistered interface %s",
		e.Provider, e.Parameter, e.Type)
}

// InvalidModeError is returned when a provider kind is invoked through the
// wrong resolution path, e.g. a coroutine provider resolved synchronously.
type InvalidModeError struct {
	Provider string
	Kind     ProviderKind
	Mode     string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("%s provider %s cannot be resolved in %s mode", e.Kind, e.Provider, e.Mode)
}

// ContextNotStartedError is returned when resolving a scoped interface with no
// active context for its scope.
type ContextNotStartedError struct {
	Scope Scope
}

func (e *ContextNotStartedError) Error() string {
	return fmt.Sprintf("%s context is not started", e.Scope)
}

// TypeMismatchError is returned when a resolved instance does not satisfy the
// requested type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// NilInstanceError is returned when registering a nil instance or factory.
type NilInstanceError struct {
	Interface any
}

func (e *NilInstanceError) Error() string {
	return fmt.Sprintf("nil value provided for interface %s", keyName(e.Interface))
}

// keyName renders an interface key for error messages. Keys are reflect.Type
// values except for synthetic event keys.
func keyName(key any) string {
	switch k := key.(type) {
	case nil:
		return "<nil>"
	case reflect.Type:
		return k.String()
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}
