/*
Package scopebridge lets lifetime scopes satisfy the di contract.

	services := di.NewServiceCollection()
	di.AddScoped[*UnitOfWork](services, NewUnitOfWork)

	factory := scopebridge.NewServiceProviderFactory(func(b *lifetime.Builder) {
		b.Add(lifetime.Singleton, NewClock)
	})

	builder, err := factory.CreateBuilder(services)
	if err != nil {
		// handle error
	}

	provider, err := factory.CreateServiceProvider(builder)
	if err != nil {
		// handle error
	}
	defer provider.(io.Closer).Close()

	scope, err := di.CreateScope(provider)
	if err != nil {
		// handle error
	}
	defer scope.Close()

	uow, err := di.GetRequiredService[*UnitOfWork](scope.ServiceProvider())

Providers and scopes share one lifetime scope: closing either of them disposes
everything the scope built, exactly once. Using a closed provider or scope
fails with an error matching di.ErrObjectDisposed.
*/
package scopebridge
