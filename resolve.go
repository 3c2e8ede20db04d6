package di

import (
	"context"
	"reflect"

	"go.uber.org/zap"
)

// Resolve returns the instance bound to iface, creating it through its
// provider if the owning scope has not cached one yet. Providers whose
// factories are context-aware (coroutine, async-resource) cannot be resolved
// through this path; use ResolveContext.
func (c *Container) Resolve(iface any) (any, error) {
	return c.resolve(context.Background(), iface, false)
}

// ResolveContext is the context-aware resolution path. It can invoke every
// provider kind, observes ctx cancellation between dependency resolutions,
// and consults ctx for the active request scope before falling back to the
// goroutine-local slot.
func (c *Container) ResolveContext(ctx context.Context, iface any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.resolve(ctx, iface, true)
}

func (c *Container) resolve(ctx context.Context, iface any, contextAware bool) (any, error) {
	c.overrideMu.RLock()
	if v, ok := c.overrides[iface]; ok {
		c.overrideMu.RUnlock()
		return v, nil
	}
	c.overrideMu.RUnlock()

	prov, err := c.Provider(iface)
	if err != nil {
		return nil, err
	}

	owner, err := c.scopedContext(ctx, prov.scope)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return owner.get(ctx, prov, contextAware)
	}

	// Transient: always create fresh, never cached.
	return c.createInstance(ctx, prov, nil, contextAware)
}

// scopedContext returns the context owning instances of the given scope, or
// nil for transient.
func (c *Container) scopedContext(ctx context.Context, scope Scope) (*ScopedContext, error) {
	switch scope {
	case ScopeSingleton:
		return c.singletons, nil
	case ScopeRequest:
		rc := c.requestContextFrom(ctx)
		if rc == nil {
			return nil, &ContextNotStartedError{Scope: ScopeRequest}
		}
		return rc, nil
	}
	return nil, nil
}

// createInstance invokes the provider's factory with its dependencies
// resolved, pushing resource teardowns onto the owner's stacks. owner is nil
// only for transient providers, which can never be resources.
func (c *Container) createInstance(ctx context.Context, prov *Provider, owner *ScopedContext, contextAware bool) (any, error) {
	if prov.prebuilt {
		return prov.instance, nil
	}

	kind := prov.descriptor.Kind
	if !contextAware && (kind == KindCoroutine || kind == KindAsyncResource) {
		return nil, &InvalidModeError{Provider: prov.name, Kind: kind, Mode: "synchronous"}
	}
	if prov.isResource() && owner == nil {
		return nil, &InvalidModeError{Provider: prov.name, Kind: kind, Mode: "unscoped"}
	}

	if kind == KindClass {
		return c.buildClassInstance(ctx, prov, contextAware)
	}

	args := make([]reflect.Value, 0, len(prov.descriptor.Parameters)+1)
	if prov.takesCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	for _, param := range prov.descriptor.Parameters {
		if contextAware && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		dep, err := c.resolve(ctx, param.Type, contextAware)
		if err != nil {
			return nil, err
		}
		args = append(args, argValue(dep, param.Type))
	}

	results := prov.factory.Call(args)

	switch kind {
	case KindResource:
		if err := resultError(results[2]); err != nil {
			return nil, err
		}
		if fn, ok := results[1].Interface().(func() error); ok && fn != nil {
			owner.pushTeardown(prov.name, fn)
		}
		c.logger.Debug("resource opened",
			zap.String("provider", prov.name), zap.String("scope", string(owner.scope)))
		return results[0].Interface(), nil
	case KindAsyncResource:
		if err := resultError(results[2]); err != nil {
			return nil, err
		}
		if fn, ok := results[1].Interface().(func(context.Context) error); ok && fn != nil {
			owner.pushAsyncTeardown(prov.name, fn)
		}
		c.logger.Debug("resource opened",
			zap.String("provider", prov.name), zap.String("scope", string(owner.scope)))
		return results[0].Interface(), nil
	default:
		if prov.hasErr {
			if err := resultError(results[len(results)-1]); err != nil {
				return nil, err
			}
		}
		return results[0].Interface(), nil
	}
}

// buildClassInstance allocates the prototype's struct type and injects every
// descriptor parameter into the matching field.
func (c *Container) buildClassInstance(ctx context.Context, prov *Provider, contextAware bool) (any, error) {
	v := reflect.New(prov.factory.Type().Elem())
	elem := v.Elem()
	for _, param := range prov.descriptor.Parameters {
		if contextAware && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		dep, err := c.resolve(ctx, param.Type, contextAware)
		if err != nil {
			return nil, err
		}
		elem.FieldByName(param.Name).Set(argValue(dep, param.Type))
	}
	return v.Interface(), nil
}

// Invoke calls fn with every parameter resolved from the container.
// fn may return an error as its last result; other results are discarded.
func (c *Container) Invoke(fn any) error {
	return c.invoke(context.Background(), fn, false)
}

// InvokeContext is the context-aware variant of Invoke; fn may take a leading
// context.Context which is passed through.
func (c *Container) InvokeContext(ctx context.Context, fn any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.invoke(ctx, fn, true)
}

func (c *Container) invoke(ctx context.Context, fn any, contextAware bool) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return &InvalidProviderTypeError{Provider: factoryName(fn), Reason: "invoke target must be a function"}
	}
	ft := v.Type()
	name := factoryName(fn)

	takesCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	if takesCtx && !contextAware {
		return &InvalidModeError{Provider: name, Kind: KindCoroutine, Mode: "synchronous"}
	}

	args := make([]reflect.Value, 0, ft.NumIn())
	start := 0
	if takesCtx {
		args = append(args, reflect.ValueOf(ctx))
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		dep, err := c.resolve(ctx, ft.In(i), contextAware)
		if err != nil {
			return err
		}
		args = append(args, argValue(dep, ft.In(i)))
	}

	results := v.Call(args)
	if n := len(results); n > 0 && ft.Out(n-1) == errorType {
		return resultError(results[n-1])
	}
	return nil
}

func argValue(dep any, t reflect.Type) reflect.Value {
	if dep == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(dep)
}

func resultError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
