package di

import (
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Container is the dependency-injection runtime: a registry of providers
// keyed by interface, a process-lifetime singleton context and an ambient
// request context per unit of work.
//
// Registration is a single-threaded setup phase. Once setup is complete the
// container is safe for concurrent resolution; readers must not race with
// Register/Unregister.
type Container struct {
	mu        sync.RWMutex
	providers map[any]*Provider
	order     []any

	singletons *ScopedContext

	overrideMu sync.RWMutex
	overrides  map[any]any

	// goroutine id -> *ScopedContext, the ambient request slot.
	requestSlots sync.Map

	logger *zap.Logger
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		providers: make(map[any]*Provider, 32),
		overrides: make(map[any]any),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.singletons = newScopedContext(ScopeSingleton, c)
	return c
}

// ModuleFunc is a registration pass collecting related providers into the
// container. Modules run in order through Apply.
type ModuleFunc func(c *Container) error

// Apply runs each module's registration pass against the container, stopping
// at the first failure.
func (c *Container) Apply(modules ...ModuleFunc) error {
	for _, m := range modules {
		if err := m(c); err != nil {
			return err
		}
	}
	return nil
}

// Register binds a factory to an interface key with the given scope.
//
// The interface key is normally a reflect.Type (see InterfaceOf). A resource
// factory may be registered with a nil interface, in which case a fresh
// synthetic event key is generated so its setup/teardown side effects still
// run with the owning context.
//
// The factory's descriptor is built by Describe unless one is supplied with
// WithDescriptor. Registration validates the scope, the factory shape, and
// the scope compatibility of every declared dependency against providers
// already present in the registry: dependencies must be registered before
// their dependents.
func (c *Container) Register(iface any, factory any, scope Scope, opts ...RegisterOption) (*Provider, error) {
	var ro registerOptions
	for _, opt := range opts {
		opt(&ro)
	}

	desc := ro.descriptor
	if desc == nil {
		var err error
		if desc, err = Describe(factory); err != nil {
			return nil, err
		}
	}

	prov, err := c.buildProvider(iface, factory, scope, desc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[prov.iface]; exists && !ro.override {
		return nil, &AlreadyRegisteredError{Interface: prov.iface}
	}

	if err := c.checkDependencies(prov.name, scope, desc); err != nil {
		return nil, err
	}

	if _, exists := c.providers[prov.iface]; !exists {
		c.order = append(c.order, prov.iface)
	}
	c.providers[prov.iface] = prov

	c.logger.Debug("provider registered",
		zap.String("interface", keyName(prov.iface)),
		zap.String("provider", prov.name),
		zap.String("scope", string(scope)),
		zap.String("kind", string(desc.Kind)))
	return prov, nil
}

// RegisterInstance binds an already-built value as a singleton provider for
// the interface.
func (c *Container) RegisterInstance(iface any, instance any, opts ...RegisterOption) (*Provider, error) {
	if instance == nil {
		return nil, &NilInstanceError{Interface: iface}
	}
	if iface == nil {
		return nil, &InvalidProviderTypeError{Provider: reflect.TypeOf(instance).String(),
			Reason: "no interface supplied"}
	}

	var ro registerOptions
	for _, opt := range opts {
		opt(&ro)
	}

	prov := &Provider{
		iface: iface,
		scope: ScopeSingleton,
		descriptor: &CallableDescriptor{
			ReturnType: reflect.TypeOf(instance),
			Kind:       KindPlain,
		},
		instance: instance,
		prebuilt: true,
		name:     reflect.TypeOf(instance).String(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.providers[iface]; exists && !ro.override {
		return nil, &AlreadyRegisteredError{Interface: iface}
	}
	if _, exists := c.providers[iface]; !exists {
		c.order = append(c.order, iface)
	}
	c.providers[iface] = prov
	return prov, nil
}

// Unregister removes the provider bound to iface, evicting any instance
// cached for it in its owning scoped context. Eviction is best-effort: the
// absence of an active context is not an error.
func (c *Container) Unregister(iface any) error {
	c.mu.Lock()
	prov, ok := c.providers[iface]
	if !ok {
		c.mu.Unlock()
		return &NotRegisteredError{Interface: iface}
	}
	delete(c.providers, iface)
	for i, key := range c.order {
		if key == iface {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	switch prov.scope {
	case ScopeSingleton:
		c.singletons.evict(iface)
	case ScopeRequest:
		if rc := c.ambientRequestContext(); rc != nil {
			rc.evict(iface)
		}
	}

	c.logger.Debug("provider unregistered", zap.String("interface", keyName(iface)))
	return nil
}

// Has reports whether a provider is registered for iface.
func (c *Container) Has(iface any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.providers[iface]
	return ok
}

// Provider returns the provider registered for iface.
func (c *Container) Provider(iface any) (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prov, ok := c.providers[iface]
	if !ok {
		return nil, &NotRegisteredError{Interface: iface}
	}
	return prov, nil
}

// Validate re-runs the dependency checks over the whole registry and reports
// every finding, aggregated. Useful for callers that assemble registries
// dynamically and want a final consistency pass.
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var err error
	for _, key := range c.order {
		prov := c.providers[key]
		err = multierr.Append(err, c.checkDependencies(prov.name, prov.scope, prov.descriptor))
	}
	return err
}

// buildProvider validates scope and factory shape and assembles the provider
// record. Call mechanics are derived from the factory itself so a
// collaborator-supplied descriptor cannot misstate the callable shape.
func (c *Container) buildProvider(iface any, factory any, scope Scope, desc *CallableDescriptor) (*Provider, error) {
	if factory == nil {
		return nil, &InvalidProviderTypeError{Provider: "<nil>", Reason: "factory is nil"}
	}
	name := factoryName(factory)

	if !validScope(scope) {
		return nil, &InvalidScopeError{Provider: name, Scope: scope}
	}

	switch desc.Kind {
	case KindPlain, KindClass, KindResource, KindAsyncResource, KindCoroutine:
	default:
		return nil, &InvalidProviderTypeError{Provider: name,
			Reason: "unsupported provider kind " + string(desc.Kind)}
	}

	isResource := desc.Kind == KindResource || desc.Kind == KindAsyncResource
	if isResource && scope == ScopeTransient {
		return nil, &ResourceScopeError{Provider: name, Kind: desc.Kind}
	}

	if iface == nil {
		if !isResource {
			return nil, &InvalidProviderTypeError{Provider: name, Reason: "no interface supplied"}
		}
		iface = newEventKey()
	}

	fv := reflect.ValueOf(factory)
	prov := &Provider{
		iface:      iface,
		scope:      scope,
		descriptor: desc,
		factory:    fv,
		name:       name,
	}
	if desc.Kind != KindClass {
		if fv.Kind() != reflect.Func {
			return nil, &InvalidProviderTypeError{Provider: name,
				Reason: "descriptor kind " + string(desc.Kind) + " requires a function factory"}
		}
		ft := fv.Type()
		prov.takesCtx = ft.NumIn() > 0 && ft.In(0) == contextType
		prov.hasErr = ft.NumOut() > 1 || (ft.NumOut() == 1 && ft.Out(0) == errorType)

		// The descriptor may come from an external inspector; the callable
		// shape still has to match it or invocation would blow up.
		expected := ft.NumIn()
		if prov.takesCtx {
			expected--
		}
		if len(desc.Parameters) != expected {
			return nil, &InvalidProviderTypeError{Provider: name,
				Reason: "descriptor parameter count does not match the factory signature"}
		}
		switch desc.Kind {
		case KindResource:
			if ft.NumOut() != 3 || ft.Out(1) != teardownType {
				return nil, &InvalidProviderTypeError{Provider: name,
					Reason: "resource factory must return (value, func() error, error)"}
			}
		case KindAsyncResource:
			if ft.NumOut() != 3 || ft.Out(1) != ateardownType {
				return nil, &InvalidProviderTypeError{Provider: name,
					Reason: "async resource factory must return (value, func(context.Context) error, error)"}
			}
		case KindCoroutine:
			if !prov.takesCtx {
				return nil, &InvalidProviderTypeError{Provider: name,
					Reason: "coroutine factory must take a leading context.Context"}
			}
		}
	} else if fv.Kind() != reflect.Ptr || fv.Type().Elem().Kind() != reflect.Struct {
		return nil, &InvalidProviderTypeError{Provider: name,
			Reason: "class provider requires a struct pointer prototype"}
	}
	return prov, nil
}

// checkDependencies validates every descriptor parameter against the current
// registry: a type must be present, registered, and scope-compatible.
// Callers hold c.mu.
func (c *Container) checkDependencies(name string, scope Scope, desc *CallableDescriptor) error {
	for _, param := range desc.Parameters {
		if param.Type == nil {
			return &MissingAnnotationError{Provider: name, Parameter: param.Name}
		}
		dep, ok := c.providers[param.Type]
		if !ok {
			return &UnknownDependencyError{Provider: name, Parameter: param.Name, Type: param.Type}
		}
		if !scopeAllows(scope, dep.scope) {
			return &ScopeMismatchError{
				Provider:        name,
				ProviderScope:   scope,
				Dependency:      dep.name,
				DependencyScope: dep.scope,
			}
		}
	}
	return nil
}
