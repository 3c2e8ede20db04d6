package di

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type teardown struct {
	name string
	fn   func() error
}

type asyncTeardown struct {
	name string
	fn   func(context.Context) error
}

// flight tracks an in-progress first construction so concurrent resolvers of
// the same interface wait for one creation instead of racing.
type flight struct {
	done chan struct{}
	val  any
	err  error
}

// ScopedContext owns the instance cache and the resource teardown stacks for
// one scope instance. Instances are created lazily on first resolution;
// teardowns run in reverse creation order when the context closes.
type ScopedContext struct {
	scope Scope
	root  *Container

	mu         sync.Mutex
	closed     bool
	instances  map[any]any
	inflight   map[any]*flight
	stack      []teardown
	asyncStack []asyncTeardown
}

func newScopedContext(scope Scope, root *Container) *ScopedContext {
	return &ScopedContext{
		scope:     scope,
		root:      root,
		instances: make(map[any]any),
		inflight:  make(map[any]*flight),
	}
}

// Scope returns the scope tag of this context.
func (s *ScopedContext) Scope() Scope {
	return s.scope
}

// get returns the cached instance for key, creating it through prov on a
// miss. First construction per key is serialized: concurrent callers wait on
// the creating flight rather than constructing a second instance.
func (s *ScopedContext) get(ctx context.Context, prov *Provider, contextAware bool) (any, error) {
	key := prov.iface

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &ContextNotStartedError{Scope: s.scope}
	}
	if v, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	if f, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	s.inflight[key] = f
	s.mu.Unlock()

	val, err := s.root.createInstance(ctx, prov, s, contextAware)

	s.mu.Lock()
	delete(s.inflight, key)
	if err == nil {
		s.instances[key] = val
	}
	s.mu.Unlock()

	f.val, f.err = val, err
	close(f.done)
	return val, err
}

// set seeds the cache with a pre-built instance.
func (s *ScopedContext) set(key any, instance any) {
	s.mu.Lock()
	s.instances[key] = instance
	s.mu.Unlock()
}

// evict drops the cached instance for key without running its teardown.
func (s *ScopedContext) evict(key any) {
	s.mu.Lock()
	delete(s.instances, key)
	s.mu.Unlock()
}

// isClosed reports whether the context has been drained for good. Only
// request contexts enter this state; the singleton context stays reusable
// after a close so the container can be restarted.
func (s *ScopedContext) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ScopedContext) pushTeardown(name string, fn func() error) {
	s.mu.Lock()
	s.stack = append(s.stack, teardown{name: name, fn: fn})
	s.mu.Unlock()
}

func (s *ScopedContext) pushAsyncTeardown(name string, fn func(context.Context) error) {
	s.mu.Lock()
	s.asyncStack = append(s.asyncStack, asyncTeardown{name: name, fn: fn})
	s.mu.Unlock()
}

// Close drains the synchronous teardown stack in reverse creation order and
// clears the instance cache. Every stacked teardown is attempted even if an
// earlier one fails; failures are aggregated into the returned error. Close
// is idempotent: a drained entry never runs twice.
//
// Asynchronous teardowns are left in place; use CloseContext to drain them.
func (s *ScopedContext) Close() error {
	s.mu.Lock()
	stack := s.stack
	s.stack = nil
	s.instances = make(map[any]any)
	if s.scope == ScopeRequest {
		s.closed = true
	}
	s.mu.Unlock()

	return s.drain(stack)
}

// CloseContext drains both teardown stacks in reverse creation order, the
// synchronous stack first, then the asynchronous stack with ctx. Failures
// are aggregated; every entry gets a teardown attempt.
func (s *ScopedContext) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	stack := s.stack
	asyncStack := s.asyncStack
	s.stack = nil
	s.asyncStack = nil
	s.instances = make(map[any]any)
	if s.scope == ScopeRequest {
		s.closed = true
	}
	s.mu.Unlock()

	err := s.drain(stack)
	for i := len(asyncStack) - 1; i >= 0; i-- {
		if terr := asyncStack[i].fn(ctx); terr != nil {
			s.root.logger.Warn("teardown failed",
				zap.String("scope", string(s.scope)),
				zap.String("provider", asyncStack[i].name),
				zap.Error(terr))
			err = multierr.Append(err, fmt.Errorf("teardown %s: %w", asyncStack[i].name, terr))
		}
	}
	return err
}

func (s *ScopedContext) drain(stack []teardown) error {
	var err error
	for i := len(stack) - 1; i >= 0; i-- {
		if terr := stack[i].fn(); terr != nil {
			s.root.logger.Warn("teardown failed",
				zap.String("scope", string(s.scope)),
				zap.String("provider", stack[i].name),
				zap.Error(terr))
			err = multierr.Append(err, fmt.Errorf("teardown %s: %w", stack[i].name, terr))
		}
	}
	return err
}
