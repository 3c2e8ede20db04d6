package di

import (
	"context"

	"go.uber.org/zap"
)

// Start eagerly opens every resource-kind singleton provider in registration
// order, pushing teardowns onto the singleton context. Plain and class
// singletons stay lazy. Encountering an async-resource singleton fails: a
// synchronous start cannot run context-aware setup; use StartContext.
func (c *Container) Start() error {
	for _, prov := range c.singletonProviders() {
		switch prov.Kind() {
		case KindResource:
			if _, err := c.singletons.get(context.Background(), prov, false); err != nil {
				return err
			}
		case KindAsyncResource:
			return &InvalidModeError{Provider: prov.name, Kind: KindAsyncResource, Mode: "synchronous"}
		}
	}
	c.logger.Debug("singleton context started")
	return nil
}

// StartContext eagerly opens resource and async-resource singleton providers
// in registration order.
func (c *Container) StartContext(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, prov := range c.singletonProviders() {
		switch prov.Kind() {
		case KindResource, KindAsyncResource:
			if _, err := c.singletons.get(ctx, prov, true); err != nil {
				return err
			}
		}
	}
	c.logger.Debug("singleton context started")
	return nil
}

// Close drains the singleton context's synchronous teardown stack in reverse
// creation order. The container may be started again afterwards; caches are
// cleared by the drain.
func (c *Container) Close() error {
	err := c.singletons.Close()
	c.logger.Debug("singleton context closed", zap.Error(err))
	return err
}

// CloseContext drains both singleton teardown stacks.
func (c *Container) CloseContext(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.singletons.CloseContext(ctx)
	c.logger.Debug("singleton context closed", zap.Error(err))
	return err
}

// singletonProviders snapshots singleton-scoped providers in registration
// order so eager start does not hold the registry lock while creating.
func (c *Container) singletonProviders() []*Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	provs := make([]*Provider, 0, len(c.order))
	for _, key := range c.order {
		if prov := c.providers[key]; prov.scope == ScopeSingleton {
			provs = append(provs, prov)
		}
	}
	return provs
}
