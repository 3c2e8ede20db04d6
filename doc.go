// Package di is a scope-aware dependency injection runtime: a registry of
// factories keyed by interface, with singleton, request and transient
// lifetimes, deterministic resource teardown, and a scoped override
// mechanism for tests.
//
// Providers are validated at registration time: every dependency must
// already be registered, and its scope must be compatible with the
// dependent's scope (a singleton may depend only on singletons; a
// request-scoped provider on request or singleton providers; a transient
// provider on anything). Registration order therefore follows the dependency
// graph.
//
// Resource providers are two-phase factories returning a value and a
// deferred teardown. Teardowns run in reverse creation order when the owning
// context closes, and every stacked teardown gets an attempt even if an
// earlier one fails.
//
//	c := di.New()
//	di.Register[Config](c, loadConfig, di.ScopeSingleton)
//	di.Register[*sql.DB](c, openDB, di.ScopeSingleton) // resource kind
//	if err := c.Start(); err != nil { ... }
//	defer c.Close()
//
//	db := di.MustResolve[*sql.DB](c)
package di
