// Package dihttp bridges the container's request scope to net/http: one
// request scope per incoming request, closed after the handler returns.
package dihttp

import (
	"net/http"

	"github.com/scopekit/di"
)

type options struct {
	onCloseError func(r *http.Request, err error)
}

// Option configures the request-scope middleware.
type Option func(*options)

// WithCloseErrorHandler installs a callback for teardown failures when the
// request scope closes. By default failures are dropped; the response has
// usually been written by then.
func WithCloseErrorHandler(fn func(r *http.Request, err error)) Option {
	return func(o *options) {
		o.onCloseError = fn
	}
}

// RequestScope returns middleware that enters a request scope before the
// handler runs and closes it afterwards, draining request-scoped resources.
// The scope travels on the request context, so handlers resolve
// request-scoped providers with di.ResolveContext(r.Context(), ...) — or
// plain di.Resolve on the handler goroutine. Compatible with chi's
// router.Use and any net/http middleware chain.
func RequestScope(c *di.Container, opts ...Option) func(http.Handler) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, handle := c.EnterRequestScopeContext(r.Context())
			defer func() {
				if err := handle.CloseContext(r.Context()); err != nil && o.onCloseError != nil {
					o.onCloseError(r, err)
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
