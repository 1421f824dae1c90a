/*
Package lifetime provides a small inversion-of-control container built around lifetime scopes.
Services are shared within a Scope, nested scopes are closed with their parent,
and everything a Scope built is disposed exactly once when the Scope is closed.

How to use:

	type NameService interface {
		Name() string
	}

	type Greeter struct {
		names NameService
	}

	root, err := lifetime.
		Add(lifetime.Singleton, func() NameService { return nameProvider("Bob") }).
		Add(lifetime.PerScope, func(ctx context.Context, names NameService) (*Greeter, lifetime.Cleanup, error) {
			return &Greeter{names}, func() {}, nil
		}).
		Build()
	if err != nil {
		// handle error
	}
	defer root.Close()

	scope, err := root.BeginScope(lifetime.WithTag("request"))
	if err != nil {
		// handle error
	}
	defer scope.Close()

	greeter, err := lifetime.Get[*Greeter](scope)

Lifetime constants:

	lifetime.Transient
	lifetime.PerScope
	lifetime.Singleton

Constructor types that can be used:
  - func(T1, T2, ...) [T|(T, error)|(T, Cleanup, error)] - for PerScope and Singleton
  - func(T1, T2, ...) [T|(T, error)] - for Transient
  - func(context.Context, T1, T2, ...) ... - for PerScope and Transient only, receives context of the resolving Scope
  - a *lifetime.Scope parameter receives the resolving Scope

Services implementing io.Closer or AsyncCloser are disposed by the Scope that tracked them
unless they were registered with ExternallyOwned or AddInstance.

Public fields constructor
  - lifetime.T[Type] - would return Type instance with filled public fields using registered constructors.
  - lifetime.P[Type] - would return *Type instance with filled public fields using registered constructors.
  - lifetime.I[Interface, Type] - would return Interface implemented by *Type instance with filled public fields using registered constructors.
*/
package lifetime
