package di

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
)

// ProviderKind classifies the shape of a factory.
type ProviderKind string

const (
	// KindPlain is a plain factory: func(deps...) T or func(deps...) (T, error).
	KindPlain ProviderKind = "plain"
	// KindClass is a struct prototype whose tagged fields are injected.
	KindClass ProviderKind = "class"
	// KindResource is a two-phase factory: func(deps...) (T, func() error, error).
	// The returned teardown runs when the owning context closes.
	KindResource ProviderKind = "resource"
	// KindAsyncResource is a context-aware two-phase factory:
	// func(ctx, deps...) (T, func(context.Context) error, error).
	KindAsyncResource ProviderKind = "async-resource"
	// KindCoroutine is a context-aware factory: func(ctx, deps...) (T, error).
	// It can only be invoked through the context-aware resolution path.
	KindCoroutine ProviderKind = "coroutine"
)

func (k ProviderKind) String() string {
	return string(k)
}

// Parameter describes one dependency of a factory.
type Parameter struct {
	Name           string
	Type           reflect.Type
	PositionalOnly bool
}

// CallableDescriptor is the structured view of a factory consumed by the
// registry: its dependency parameters, return type and kind. Descriptors are
// normally built by Describe, but callers with richer static information may
// supply their own through WithDescriptor.
type CallableDescriptor struct {
	Parameters []Parameter
	ReturnType reflect.Type
	Kind       ProviderKind
}

var (
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	teardownType  = reflect.TypeOf((func() error)(nil))
	ateardownType = reflect.TypeOf((func(context.Context) error)(nil))
)

// Describe builds a CallableDescriptor for a factory by reflection.
//
// Recognized factory shapes:
//
//	func(deps...) T                                       plain
//	func(deps...) (T, error)                              plain
//	func(ctx, deps...) (T, error)                         coroutine
//	func(deps...) (T, func() error, error)                resource
//	func(ctx, deps...) (T, func(context.Context) error, error)  async-resource
//	&Prototype{}  (struct pointer with inject-tagged fields)    class
//
// A leading context.Context parameter is supplied by the resolver, never
// resolved as a dependency. Parameter names are not recoverable through
// reflection and are synthesized; collaborator-supplied descriptors carry
// real names.
func Describe(factory any) (*CallableDescriptor, error) {
	if factory == nil {
		return nil, &InvalidProviderTypeError{Provider: "<nil>", Reason: "factory is nil"}
	}

	ft := reflect.TypeOf(factory)
	if ft.Kind() != reflect.Func {
		return describePrototype(factory, ft)
	}
	name := factoryName(factory)

	if ft.IsVariadic() {
		return nil, &InvalidProviderTypeError{Provider: name, Reason: "variadic factories are not supported"}
	}

	takesCtx := ft.NumIn() > 0 && ft.In(0) == contextType

	var kind ProviderKind
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errorType {
			return nil, &InvalidProviderTypeError{Provider: name, Reason: "factory must produce a value"}
		}
		kind = KindPlain
	case 2:
		if ft.Out(1) != errorType {
			return nil, &InvalidProviderTypeError{Provider: name, Reason: "second return value must be error"}
		}
		kind = KindPlain
	case 3:
		if ft.Out(2) != errorType {
			return nil, &InvalidProviderTypeError{Provider: name, Reason: "third return value must be error"}
		}
		switch ft.Out(1) {
		case teardownType:
			kind = KindResource
			if takesCtx {
				return nil, &InvalidProviderTypeError{Provider: name,
					Reason: "a resource factory taking context.Context must return a func(context.Context) error teardown"}
			}
		case ateardownType:
			kind = KindAsyncResource
		default:
			return nil, &InvalidProviderTypeError{Provider: name,
				Reason: fmt.Sprintf("unsupported teardown type %s", ft.Out(1))}
		}
	default:
		return nil, &InvalidProviderTypeError{Provider: name,
			Reason: fmt.Sprintf("unsupported number of return values: %d", ft.NumOut())}
	}

	if takesCtx && kind == KindPlain {
		kind = KindCoroutine
	}

	start := 0
	if takesCtx {
		start = 1
	}
	params := make([]Parameter, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		params = append(params, Parameter{
			Name: fmt.Sprintf("arg%d", i-start),
			Type: ft.In(i),
		})
	}

	return &CallableDescriptor{
		Parameters: params,
		ReturnType: ft.Out(0),
		Kind:       kind,
	}, nil
}

// describePrototype treats a non-func factory as a class prototype: a struct
// pointer whose fields tagged `inject:""` become dependency parameters.
func describePrototype(factory any, ft reflect.Type) (*CallableDescriptor, error) {
	name := ft.String()
	if ft.Kind() != reflect.Ptr || ft.Elem().Kind() != reflect.Struct {
		return nil, &InvalidProviderTypeError{Provider: name,
			Reason: "factory must be a function or a struct pointer prototype"}
	}

	st := ft.Elem()
	var params []Parameter
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return nil, &InvalidProviderTypeError{Provider: name,
				Reason: fmt.Sprintf("inject-tagged field %s is unexported", field.Name)}
		}
		params = append(params, Parameter{Name: field.Name, Type: field.Type})
	}

	return &CallableDescriptor{
		Parameters: params,
		ReturnType: ft,
		Kind:       KindClass,
	}, nil
}

// factoryName returns a qualified name for a factory suitable for error
// messages and logs.
func factoryName(factory any) string {
	v := reflect.ValueOf(factory)
	if v.Kind() == reflect.Func {
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return v.Type().String()
}
