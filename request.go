package di

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type requestCtxKey struct{}

// ScopeHandle owns one entered request scope. Closing it drains the scope's
// teardown stacks and restores the previously ambient request context, nil by
// default. Close is idempotent.
type ScopeHandle struct {
	c    *Container
	rc   *ScopedContext
	gid  int64
	prev any

	mu     sync.Mutex
	closed bool
}

// Context returns the scoped context owned by this handle.
func (h *ScopeHandle) Context() *ScopedContext {
	return h.rc
}

// Close ends the request scope: the ambient slot reverts to its prior value
// and the scope's synchronous teardown stack is drained.
func (h *ScopeHandle) Close() error {
	if !h.release() {
		return nil
	}
	return h.rc.Close()
}

// CloseContext ends the request scope draining both teardown stacks.
func (h *ScopeHandle) CloseContext(ctx context.Context) error {
	if !h.release() {
		return nil
	}
	return h.rc.CloseContext(ctx)
}

func (h *ScopeHandle) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true

	if h.prev != nil {
		h.c.requestSlots.Store(h.gid, h.prev)
	} else {
		h.c.requestSlots.Delete(h.gid)
	}
	h.c.logger.Debug("request scope closed")
	return true
}

// EnterRequestScope creates a fresh request context and installs it as the
// ambient one for the calling goroutine. Each entered scope has its own
// instance cache; sequentially entered scopes share nothing. The returned
// handle must be closed to drain the scope's resources.
func (c *Container) EnterRequestScope() *ScopeHandle {
	rc := newScopedContext(ScopeRequest, c)
	id := gid()
	prev, _ := c.requestSlots.Load(id)
	c.requestSlots.Store(id, rc)
	c.logger.Debug("request scope entered", zap.Int64("goroutine", id))
	return &ScopeHandle{c: c, rc: rc, gid: id, prev: prev}
}

// EnterRequestScopeContext enters a request scope and additionally attaches
// it to the returned context.Context, so work handed to child goroutines
// inherits the scope through ctx propagation. ResolveContext consults ctx
// before the goroutine-local slot.
func (c *Container) EnterRequestScopeContext(ctx context.Context) (context.Context, *ScopeHandle) {
	if ctx == nil {
		ctx = context.Background()
	}
	h := c.EnterRequestScope()
	return context.WithValue(ctx, requestCtxKey{}, h.rc), h
}

// RequestScope runs fn inside a request scope with guaranteed release on all
// exit paths, including panics.
func (c *Container) RequestScope(fn func() error) (err error) {
	h := c.EnterRequestScope()
	defer func() {
		err = multierr.Append(err, h.Close())
	}()
	return fn()
}

// RequestScopeContext runs fn inside a request scope attached to ctx, with
// guaranteed release of both teardown stacks.
func (c *Container) RequestScopeContext(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	scoped, h := c.EnterRequestScopeContext(ctx)
	defer func() {
		err = multierr.Append(err, h.CloseContext(ctx))
	}()
	return fn(scoped)
}

// requestContextFrom returns the active request context: the one carried by
// ctx if any, else the calling goroutine's ambient slot. A context whose
// handle has already been closed counts as absent, so a ctx saved past the
// end of its request cannot resolve into the drained scope.
func (c *Container) requestContextFrom(ctx context.Context) *ScopedContext {
	if rc, ok := ctx.Value(requestCtxKey{}).(*ScopedContext); ok && !rc.isClosed() {
		return rc
	}
	return c.ambientRequestContext()
}

func (c *Container) ambientRequestContext() *ScopedContext {
	if v, ok := c.requestSlots.Load(gid()); ok {
		if rc := v.(*ScopedContext); !rc.isClosed() {
			return rc
		}
	}
	return nil
}
