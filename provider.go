package di

import (
	"reflect"

	"github.com/google/uuid"
)

// Provider is an immutable binding of a factory to an interface key with a
// declared scope and kind.
type Provider struct {
	iface      any
	scope      Scope
	descriptor *CallableDescriptor

	factory  reflect.Value
	takesCtx bool
	hasErr   bool

	// prebuilt instances (RegisterInstance) skip factory invocation.
	instance any
	prebuilt bool

	name string
}

// Interface returns the interface key the provider is bound to.
func (p *Provider) Interface() any {
	return p.iface
}

// Scope returns the provider's declared scope.
func (p *Provider) Scope() Scope {
	return p.scope
}

// Kind returns the provider's factory kind.
func (p *Provider) Kind() ProviderKind {
	return p.descriptor.Kind
}

// Descriptor returns the provider's callable descriptor.
func (p *Provider) Descriptor() *CallableDescriptor {
	return p.descriptor
}

// Name returns the qualified factory name, used in errors and logs.
func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) String() string {
	return p.name
}

func (p *Provider) isResource() bool {
	k := p.descriptor.Kind
	return k == KindResource || k == KindAsyncResource
}

// eventKey is a synthetic interface key generated for resource providers
// registered without an interface, so setup/teardown side effects can still
// participate in a context's lifecycle.
type eventKey struct {
	id string
}

func newEventKey() eventKey {
	return eventKey{id: uuid.NewString()}
}

func (k eventKey) String() string {
	return "event:" + k.id
}
