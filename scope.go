package di

// Scope defines the lifetime and sharing behavior of a provider's instances.
type Scope string

// Available provider scopes
const (
	// ScopeTransient creates a new instance for each resolution
	ScopeTransient Scope = "transient"
	// ScopeRequest shares an instance within a single request scope
	ScopeRequest Scope = "request"
	// ScopeSingleton shares a single instance across the container
	ScopeSingleton Scope = "singleton"
)

func (s Scope) String() string {
	return string(s)
}

// allowedScopes maps a provider scope to the scopes its dependencies may
// carry. A singleton can only depend on singletons; a request-scoped
// provider on request or singleton providers; a transient provider on
// anything.
var allowedScopes = map[Scope][]Scope{
	ScopeSingleton: {ScopeSingleton},
	ScopeRequest:   {ScopeRequest, ScopeSingleton},
	ScopeTransient: {ScopeTransient, ScopeSingleton, ScopeRequest},
}

func validScope(s Scope) bool {
	_, ok := allowedScopes[s]
	return ok
}

func scopeAllows(provider, dependency Scope) bool {
	for _, s := range allowedScopes[provider] {
		if s == dependency {
			return true
		}
	}
	return false
}
