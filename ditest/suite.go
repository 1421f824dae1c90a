package ditest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/andriiyaremenko/scopebridge/di"
)

type (
	singletonService struct{ SyncDisposable }
	scopedService    struct{ SyncDisposable }
	transientService struct{ SyncDisposable }
	asyncOnlyService struct{ AsyncDisposable }
	dualService      struct{ DualDisposable }

	firstService  struct{ SyncDisposable }
	secondService struct{ SyncDisposable }
	thirdService  struct{ SyncDisposable }

	keyedService struct{ Key string }

	consumerService struct {
		Scoped   *scopedService
		Provider di.ServiceProvider
	}
)

func newSingletonService() *singletonService { return &singletonService{} }
func newScopedService() *scopedService       { return &scopedService{} }
func newTransientService() *transientService { return &transientService{} }
func newAsyncOnlyService() *asyncOnlyService { return &asyncOnlyService{} }
func newDualService() *dualService           { return &dualService{} }

// SpecificationSuite asserts behaviour every di.ServiceProvider implementation shares.
// CreateServiceProvider must return a root provider that implements io.Closer.
type SpecificationSuite struct {
	suite.Suite

	CreateServiceProvider func(services *di.ServiceCollection) (di.ServiceProvider, error)
}

func (s *SpecificationSuite) SetupSuite() {
	s.Require().NotNil(s.CreateServiceProvider, "CreateServiceProvider is not set")
}

func (s *SpecificationSuite) build(services *di.ServiceCollection) di.ServiceProvider {
	sp, err := s.CreateServiceProvider(services)
	s.Require().NoError(err)
	s.Require().Implements((*io.Closer)(nil), sp)

	s.T().Cleanup(func() { _ = sp.(io.Closer).Close() })

	return sp
}

func (s *SpecificationSuite) scope(sp di.ServiceProvider) di.ServiceScope {
	scope, err := di.CreateScope(sp)
	s.Require().NoError(err)

	return scope
}

func (s *SpecificationSuite) asyncScope(sp di.ServiceProvider) di.AsyncServiceScope {
	scope, err := di.CreateAsyncScope(sp)
	s.Require().NoError(err)

	return scope
}

func defaultServices() *di.ServiceCollection {
	services := di.NewServiceCollection()

	di.AddSingleton[*singletonService](services, newSingletonService)
	di.AddScoped[*scopedService](services, newScopedService)
	di.AddTransient[*transientService](services, newTransientService)
	di.AddScoped[*asyncOnlyService](services, newAsyncOnlyService)
	di.AddScoped[*dualService](services, newDualService)

	return services
}

func get[T any](s *SpecificationSuite, sp di.ServiceProvider) T {
	service, err := di.GetRequiredService[T](sp)
	s.Require().NoError(err)

	return service
}

func (s *SpecificationSuite) TestSingletonIsSharedAcrossScopes() {
	root := s.build(defaultServices())
	scope1 := s.scope(root)
	scope2 := s.scope(root)

	fromRoot := get[*singletonService](s, root)

	s.Same(fromRoot, get[*singletonService](s, scope1.ServiceProvider()))
	s.Same(fromRoot, get[*singletonService](s, scope2.ServiceProvider()))
}

func (s *SpecificationSuite) TestScopedIsSharedWithinScope() {
	root := s.build(defaultServices())
	scope1 := s.scope(root)
	scope2 := s.scope(root)

	first := get[*scopedService](s, scope1.ServiceProvider())

	s.Same(first, get[*scopedService](s, scope1.ServiceProvider()))
	s.NotSame(first, get[*scopedService](s, scope2.ServiceProvider()))
}

func (s *SpecificationSuite) TestTransientIsNewOnEveryResolution() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	s.NotSame(
		get[*transientService](s, scope.ServiceProvider()),
		get[*transientService](s, scope.ServiceProvider()),
	)
}

func (s *SpecificationSuite) TestKeyedServices() {
	services := di.NewServiceCollection()
	di.AddKeyedSingleton[*keyedService](services, "a", func() *keyedService { return &keyedService{Key: "a"} })
	di.AddKeyedScoped[*keyedService](services, "b", func() *keyedService { return &keyedService{Key: "b"} })

	root := s.build(services)
	scope := s.scope(root)

	a, err := di.GetRequiredKeyedService[*keyedService](scope.ServiceProvider(), "a")
	s.Require().NoError(err)
	s.Equal("a", a.Key)

	b, err := di.GetRequiredKeyedService[*keyedService](scope.ServiceProvider(), "b")
	s.Require().NoError(err)
	s.Equal("b", b.Key)

	unkeyed, err := di.GetService[*keyedService](scope.ServiceProvider())
	s.NoError(err)
	s.Nil(unkeyed)

	_, err = di.GetRequiredKeyedService[*keyedService](scope.ServiceProvider(), "c")

	var notFound *di.ServiceNotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("c", notFound.Key)
}

func (s *SpecificationSuite) TestUnregisteredServiceIsNil() {
	root := s.build(defaultServices())

	service, err := root.GetService(di.TypeOf[*keyedService]())
	s.NoError(err)
	s.Nil(service)

	_, err = di.GetRequiredService[*keyedService](root)

	var notFound *di.ServiceNotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal(di.TypeOf[*keyedService](), notFound.ServiceType)
}

func (s *SpecificationSuite) TestIsService() {
	root := s.build(defaultServices())

	isService, err := di.GetRequiredService[di.ServiceProviderIsService](root)
	s.Require().NoError(err)

	s.True(isService.IsService(di.TypeOf[*scopedService]()))
	s.False(isService.IsService(di.TypeOf[*keyedService]()))
}

func (s *SpecificationSuite) TestDisposingScopeDisposesItsServices() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	scoped := get[*scopedService](s, scope.ServiceProvider())
	transient := get[*transientService](s, scope.ServiceProvider())

	s.NoError(scope.Close())

	s.Equal(1, scoped.Closes())
	s.Equal(1, transient.Closes())
}

func (s *SpecificationSuite) TestDisposingScopeDisposesItsProvider() {
	root := s.build(defaultServices())
	scope := s.scope(root)
	sp := scope.ServiceProvider()

	s.NoError(scope.Close())

	_, err := sp.GetService(di.TypeOf[*scopedService]())
	s.ErrorIs(err, di.ErrObjectDisposed)
}

func (s *SpecificationSuite) TestDisposingProviderDisposesItsScope() {
	root := s.build(defaultServices())
	scope := s.scope(root)
	sp := scope.ServiceProvider()

	scoped := get[*scopedService](s, sp)

	s.Require().Implements((*io.Closer)(nil), sp)
	s.NoError(sp.(io.Closer).Close())
	s.NoError(scope.Close())

	s.Equal(1, scoped.Closes())
}

func (s *SpecificationSuite) TestDoubleDisposeIsNoOp() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	scoped := get[*scopedService](s, scope.ServiceProvider())
	transient := get[*transientService](s, scope.ServiceProvider())

	s.NoError(scope.Close())
	s.NoError(scope.Close())

	s.Equal(1, scoped.Closes())
	s.Equal(1, transient.Closes())
}

func (s *SpecificationSuite) TestDoubleAsyncDisposeIsNoOp() {
	root := s.build(defaultServices())
	scope := s.asyncScope(root)

	dual := get[*dualService](s, scope.ServiceProvider())

	s.NoError(scope.CloseAsync(context.Background()))
	s.NoError(scope.CloseAsync(context.Background()))
	s.NoError(scope.Close())

	s.Equal(1, dual.Disposals())
}

func (s *SpecificationSuite) TestResolvingFromDisposedScopeFails() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	s.NoError(scope.Close())

	_, err := di.GetService[*scopedService](scope.ServiceProvider())
	s.ErrorIs(err, di.ErrObjectDisposed)

	_, err = di.GetService[*singletonService](scope.ServiceProvider())
	s.ErrorIs(err, di.ErrObjectDisposed)
}

func (s *SpecificationSuite) TestResolvingFromDisposedProviderFails() {
	root := s.build(defaultServices())

	s.NoError(root.(io.Closer).Close())

	_, err := di.GetService[*singletonService](root)
	s.ErrorIs(err, di.ErrObjectDisposed)
}

func (s *SpecificationSuite) TestCreatingScopeFromDisposedProviderFails() {
	root := s.build(defaultServices())

	factory, err := di.GetRequiredService[di.ServiceScopeFactory](root)
	s.Require().NoError(err)

	s.NoError(root.(io.Closer).Close())

	_, err = factory.CreateScope()
	s.ErrorIs(err, di.ErrObjectDisposed)

	_, err = di.CreateScope(root)
	s.ErrorIs(err, di.ErrObjectDisposed)
}

func (s *SpecificationSuite) TestProviderResolvedFromProviderSharesScopedInstances() {
	root := s.build(defaultServices())
	scope := s.scope(root)
	sp := scope.ServiceProvider()

	resolved := get[di.ServiceProvider](s, sp)

	s.NotSame(sp, resolved)
	s.Same(get[*scopedService](s, sp), get[*scopedService](s, resolved))
}

func (s *SpecificationSuite) TestAsyncDisposalUsesOnlyAsyncPath() {
	root := s.build(defaultServices())
	scope := s.asyncScope(root)

	dual := get[*dualService](s, scope.ServiceProvider())
	asyncOnly := get[*asyncOnlyService](s, scope.ServiceProvider())

	s.NoError(scope.CloseAsync(context.Background()))

	s.Equal(1, dual.AsyncCloses())
	s.Equal(0, dual.Closes())
	s.Equal(1, asyncOnly.AsyncCloses())
}

func (s *SpecificationSuite) TestAsyncDisposalDisposesSyncOnlyServices() {
	root := s.build(defaultServices())
	scope := s.asyncScope(root)

	scoped := get[*scopedService](s, scope.ServiceProvider())

	s.NoError(scope.CloseAsync(context.Background()))

	s.Equal(1, scoped.Closes())
}

func (s *SpecificationSuite) TestSyncDisposalDisposesAsyncOnlyServices() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	asyncOnly := get[*asyncOnlyService](s, scope.ServiceProvider())
	dual := get[*dualService](s, scope.ServiceProvider())

	s.NoError(scope.Close())

	s.Equal(1, asyncOnly.AsyncCloses())
	s.Equal(1, dual.Closes())
	s.Equal(0, dual.AsyncCloses())
}

func (s *SpecificationSuite) TestDisposalOrderIsReverseOfCreation() {
	recorder := NewOrderRecorder()

	services := di.NewServiceCollection()
	di.AddSingletonInstance(services, recorder)
	di.AddScoped[*firstService](services, func(r *OrderRecorder) *firstService {
		return &firstService{SyncDisposable{Name: "first", Recorder: r}}
	})
	di.AddScoped[*secondService](services, func(r *OrderRecorder, _ *firstService) *secondService {
		return &secondService{SyncDisposable{Name: "second", Recorder: r}}
	})
	di.AddTransient[*thirdService](services, func(r *OrderRecorder, _ *secondService) *thirdService {
		return &thirdService{SyncDisposable{Name: "third", Recorder: r}}
	})

	root := s.build(services)
	scope := s.scope(root)

	_ = get[*thirdService](s, scope.ServiceProvider())

	s.NoError(scope.Close())
	s.Equal([]string{"third", "second", "first"}, recorder.Order())
}

func (s *SpecificationSuite) TestSingletonIsDisposedByRootOnly() {
	root := s.build(defaultServices())
	scope := s.scope(root)

	singleton := get[*singletonService](s, scope.ServiceProvider())

	s.NoError(scope.Close())
	s.Equal(0, singleton.Closes())

	s.NoError(root.(io.Closer).Close())
	s.Equal(1, singleton.Closes())
}

func (s *SpecificationSuite) TestSingletonInstanceIsNotDisposed() {
	instance := &singletonService{}

	services := di.NewServiceCollection()
	di.AddSingletonInstance(services, instance)

	root := s.build(services)

	s.Same(instance, get[*singletonService](s, root))
	s.NoError(root.(io.Closer).Close())
	s.Equal(0, instance.Closes())
}

func (s *SpecificationSuite) TestFactoryReceivesResolvingProvider() {
	services := defaultServices()
	di.AddScopedFactory(services, func(sp di.ServiceProvider) (*consumerService, error) {
		scoped, err := di.GetRequiredService[*scopedService](sp)
		if err != nil {
			return nil, err
		}

		return &consumerService{Scoped: scoped, Provider: sp}, nil
	})

	root := s.build(services)
	scope := s.scope(root)

	consumer := get[*consumerService](s, scope.ServiceProvider())

	s.Same(get[*scopedService](s, scope.ServiceProvider()), consumer.Scoped)
	s.NotNil(consumer.Provider)
}

func (s *SpecificationSuite) TestFactoryErrorIsReturned() {
	failure := errors.New("factory failure")

	services := di.NewServiceCollection()
	di.AddTransientFactory(services, func(di.ServiceProvider) (*consumerService, error) {
		return nil, failure
	})

	root := s.build(services)

	_, err := di.GetService[*consumerService](root)
	s.ErrorIs(err, failure)
}

func (s *SpecificationSuite) TestSelfResolvingFactoryFails() {
	selfResolving := func(sp di.ServiceProvider) (*consumerService, error) {
		return di.GetRequiredService[*consumerService](sp)
	}

	for name, add := range map[string]func(*di.ServiceCollection){
		"singleton": func(c *di.ServiceCollection) { di.AddSingletonFactory(c, selfResolving) },
		"scoped":    func(c *di.ServiceCollection) { di.AddScopedFactory(c, selfResolving) },
		"transient": func(c *di.ServiceCollection) { di.AddTransientFactory(c, selfResolving) },
	} {
		s.Run(name, func() {
			services := di.NewServiceCollection()
			add(services)

			scope := s.scope(s.build(services))

			done := make(chan error, 1)
			go func() {
				_, err := di.GetService[*consumerService](scope.ServiceProvider())
				done <- err
			}()

			select {
			case err := <-done:
				s.Error(err)
			case <-time.After(5 * time.Second):
				s.FailNow("factory resolving its own service did not return")
			}
		})
	}
}

func (s *SpecificationSuite) TestLastRegistrationWins() {
	services := di.NewServiceCollection()
	di.AddSingleton[*keyedService](services, func() *keyedService { return &keyedService{Key: "first"} })
	di.AddSingleton[*keyedService](services, func() *keyedService { return &keyedService{Key: "last"} })

	root := s.build(services)

	s.Equal("last", get[*keyedService](s, root).Key)
}
