package lifetime_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/goleak"
	"go.uber.org/multierr"

	"github.com/andriiyaremenko/scopebridge/lifetime"
)

var _ = Describe("Scope", func() {
	var journal *Journal

	BeforeEach(func() {
		journal = new(Journal)
	})

	build := func(b *lifetime.Builder) *lifetime.Scope {
		root, err := b.Build()
		Expect(err).ShouldNot(HaveOccurred())

		DeferCleanup(root.Close)

		return root
	}

	begin := func(scope *lifetime.Scope, opts ...lifetime.ScopeOption) *lifetime.Scope {
		child, err := scope.BeginScope(opts...)
		Expect(err).ShouldNot(HaveOccurred())

		return child
	}

	Context("resolution", func() {
		It("should return new instance every time for Transient", func() {
			root := build(lifetime.
				Add(lifetime.Transient, nameServiceConstructor).
				Add(lifetime.Transient, heroConstructor))

			hero1, err := lifetime.Get[*Hero](root)
			Expect(err).ShouldNot(HaveOccurred())

			hero2, err := lifetime.Get[*Hero](root)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(hero1).NotTo(BeIdenticalTo(hero2))
		})

		It("should return same instance within one scope for PerScope", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, nameServiceConstructor).
				Add(lifetime.PerScope, heroConstructor))
			scope := begin(root)

			Expect(lifetime.MustGet[*Hero](scope)).To(BeIdenticalTo(lifetime.MustGet[*Hero](scope)))
		})

		It("should return new instance for different scopes for PerScope", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, nameServiceConstructor).
				Add(lifetime.PerScope, heroConstructor))
			scope1 := begin(root)
			scope2 := begin(scope1)

			hero := lifetime.MustGet[*Hero](scope1)

			Expect(hero).NotTo(BeIdenticalTo(lifetime.MustGet[*Hero](scope2)))
			Expect(hero).NotTo(BeIdenticalTo(lifetime.MustGet[*Hero](root)))
		})

		It("should return same instance for every scope for Singleton", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.Singleton, heroConstructor))
			scope := begin(begin(root))

			Expect(lifetime.MustGet[*Hero](scope)).To(BeIdenticalTo(lifetime.MustGet[*Hero](root)))
		})

		It("should return same instance when resolved concurrently", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.PerScope, heroConstructor))
			scope := begin(root)

			var wg sync.WaitGroup

			heroes := make([]*Hero, 10)
			for i := range heroes {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					heroes[i] = lifetime.MustGet[*Hero](scope)
				}()
			}

			wg.Wait()

			for _, hero := range heroes {
				Expect(hero).To(BeIdenticalTo(heroes[0]))
			}
		})

		It("should resolve keyed services", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, func() NameService { return NameProvider("Bob") }).
				Add(lifetime.Singleton, func() NameService { return NameProvider("Alice") }, lifetime.Keyed("alice")))

			alice, err := lifetime.GetKeyed[NameService](root, "alice")

			Expect(err).ShouldNot(HaveOccurred())
			Expect(alice.Name()).To(Equal("Alice"))
			Expect(lifetime.MustGet[NameService](root).Name()).To(Equal("Bob"))
			Expect(root.IsRegisteredKeyed(reflectType[NameService](), "alice")).To(BeTrue())
			Expect(root.IsRegisteredKeyed(reflectType[NameService](), "bob")).To(BeFalse())

			_, err = lifetime.GetKeyed[NameService](root, "bob")

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ConstructorNotFoundError)))
		})

		It("should report unregistered services without error", func() {
			root := build(lifetime.New())

			service, ok, err := root.TryResolve(reflectType[*Hero]())

			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(service).To(BeNil())

			_, err = lifetime.Get[*Hero](root)

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ConstructorNotFoundError)))
		})

		It("should inject resolving scope", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, func(scope *lifetime.Scope) NameService {
					return NameProvider(scope.Tag().(string))
				}))
			scope := begin(root, lifetime.WithTag("request"))

			Expect(lifetime.MustGet[NameService](scope).Name()).To(Equal("request"))
			Expect(lifetime.MustGet[NameService](root).Name()).To(Equal(lifetime.RootTag))
			Expect(lifetime.MustGet[*lifetime.Scope](scope)).To(BeIdenticalTo(scope))
		})

		It("should inject scope context and cancel it on Close", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.PerScope, tableTimerConstructor))
			scope := begin(root)

			timer := lifetime.MustGet[*TableTimer](scope)

			Expect(timer.Expired()).To(BeFalse())
			Expect(scope.Close()).To(Succeed())
			Expect(timer.Expired()).To(BeTrue())
			Expect(scope.Context().Err()).To(MatchError(context.Canceled))
		})

		It("should fill exported fields", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.Transient, lifetime.T[ServiceWithPublicFields]).
				Add(lifetime.Transient, lifetime.I[HelloService, ServiceWithPublicFields]))

			service := lifetime.MustGet[ServiceWithPublicFields](root)

			Expect(service.Name()).To(Equal("Bob"))
			Expect(service.SomeProperty()).To(BeEmpty())
			Expect(lifetime.MustGet[HelloService](root).Hello()).To(Equal("Hello Bob"))
		})

		It("should return error if constructor returned error", func() {
			failure := errors.New("some unfortunate error")
			root := build(lifetime.
				Add(lifetime.PerScope, func() (NameService, error) { return nil, failure }).
				Add(lifetime.PerScope, heroConstructor))

			_, err := lifetime.Get[*Hero](root)

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ServiceBuilderError)))
			Expect(errors.Unwrap(err)).Should(BeAssignableToTypeOf(new(lifetime.ConstructorError)))
			Expect(err).Should(MatchError(failure))
		})

		It("should recover from constructor panic", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.Transient, scaredHeroConstructor))

			_, err := lifetime.Get[*Hero](root)

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ServiceBuilderError)))
			Expect(err.Error()).Should(ContainSubstring("scared"))
		})

		DescribeTable("should fail instead of blocking when constructor resolves its own service",
			func(lt lifetime.Lifetime) {
				root := build(lifetime.Add(lt, func(scope *lifetime.Scope) (*Hero, error) {
					return lifetime.Get[*Hero](scope)
				}))
				scope := begin(root)

				done := make(chan error, 1)
				go func() {
					_, err := lifetime.Get[*Hero](scope)
					done <- err
				}()

				var err error
				Eventually(done).Should(Receive(&err))

				var circular *lifetime.CircularDependencyError
				Expect(errors.As(err, &circular)).To(BeTrue())
				Expect(circular.Dependency).To(ContainSubstring("Hero"))

				_, err = lifetime.Get[*Hero](scope)

				Expect(errors.As(err, &circular)).To(BeTrue())
			},
			Entry("PerScope", lifetime.PerScope),
			Entry("Singleton", lifetime.Singleton),
			Entry("Transient", lifetime.Transient),
		)

		It("should resolve through a captured scope once construction is done", func() {
			type Registry struct{ scope *lifetime.Scope }

			root := build(lifetime.
				Add(lifetime.Singleton, func(scope *lifetime.Scope) *Registry { return &Registry{scope} }).
				Add(lifetime.Transient, func(*Registry) *Hero { return &Hero{name: "Bob"} }))

			registry := lifetime.MustGet[*Registry](root)
			hero, err := lifetime.Get[*Hero](registry.scope)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(hero.Announce()).To(Equal("Bob is our hero!"))
		})

		It("should not find services by uncomparable keys", func() {
			root := build(lifetime.Add(lifetime.Singleton, nameServiceConstructor))
			key := []string{"alice"}

			Expect(root.IsRegisteredKeyed(reflectType[NameService](), key)).To(BeFalse())

			service, ok, err := root.TryResolveKeyed(reflectType[NameService](), key)

			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(service).To(BeNil())

			_, err = lifetime.GetKeyed[NameService](root, key)

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ConstructorNotFoundError)))
		})
	})

	Context("disposal", func() {
		It("should close tracked services in reverse creation order", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, func() *Journal { return journal }, lifetime.ExternallyOwned()).
				Add(lifetime.PerScope, connectionConstructor(journal)).
				Add(lifetime.PerScope, func(j *Journal, _ *Connection) *Stream { return &Stream{journal: j} }).
				Add(lifetime.Transient, func(j *Journal, _ *Stream) *Flusher { return &Flusher{journal: j} }))
			scope := begin(root)

			_ = lifetime.MustGet[*Flusher](scope)

			Expect(scope.Close()).To(Succeed())
			Expect(journal.Entries()).To(Equal([]string{"flush", "close stream", "close connection"}))
		})

		It("should call cleanup instead of Close", func() {
			cleanups := 0
			root := build(lifetime.
				Add(lifetime.PerScope, func() (*Connection, lifetime.Cleanup, error) {
					return &Connection{journal: journal}, func() { cleanups++ }, nil
				}))
			scope := begin(root)

			connection := lifetime.MustGet[*Connection](scope)

			Expect(scope.Close()).To(Succeed())
			Expect(cleanups).To(Equal(1))
			Expect(connection.closed).To(BeZero())
		})

		It("should turn cleanup panic into error", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, nameServiceConstructorWithCleanup(func() { panic("oops") })))
			scope := begin(root)

			_ = lifetime.MustGet[NameService](scope)

			err := scope.Close()

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.DisposalError)))
			Expect(err.Error()).Should(ContainSubstring("oops"))
		})

		It("should be idempotent", func() {
			root := build(lifetime.Add(lifetime.PerScope, connectionConstructor(journal)))
			scope := begin(root)

			connection := lifetime.MustGet[*Connection](scope)

			Expect(scope.Close()).To(Succeed())
			Expect(scope.Close()).To(Succeed())
			Expect(scope.CloseAsync(context.Background())).To(Succeed())
			Expect(connection.closed).To(Equal(1))
			Expect(scope.Disposed()).To(BeTrue())
		})

		It("should not close externally owned services", func() {
			root := build(lifetime.Add(lifetime.Transient, connectionConstructor(journal), lifetime.ExternallyOwned()))

			connection := lifetime.MustGet[*Connection](root)

			Expect(root.Close()).To(Succeed())
			Expect(connection.closed).To(BeZero())
		})

		It("should close Singleton only with the scope that owns it", func() {
			root := build(lifetime.Add(lifetime.Singleton, connectionConstructor(journal)))
			scope := begin(root)

			connection := lifetime.MustGet[*Connection](scope)

			Expect(scope.Close()).To(Succeed())
			Expect(connection.closed).To(BeZero())
			Expect(root.Close()).To(Succeed())
			Expect(connection.closed).To(Equal(1))
		})

		It("should close nested scopes with their parent", func() {
			root := build(lifetime.Add(lifetime.PerScope, connectionConstructor(journal)))
			scope := begin(root)
			nested := begin(scope)

			connection := lifetime.MustGet[*Connection](nested)

			Expect(root.Close()).To(Succeed())
			Expect(scope.Disposed()).To(BeTrue())
			Expect(nested.Disposed()).To(BeTrue())
			Expect(connection.closed).To(Equal(1))
		})

		It("should aggregate disposal errors", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, func() BrokenConnection { return BrokenConnection{} }, lifetime.Keyed("a")).
				Add(lifetime.PerScope, func() BrokenConnection { return BrokenConnection{} }, lifetime.Keyed("b")))
			scope := begin(root)

			_, _ = lifetime.GetKeyed[BrokenConnection](scope, "a")
			_, _ = lifetime.GetKeyed[BrokenConnection](scope, "b")

			err := scope.Close()

			Expect(multierr.Errors(err)).To(HaveLen(2))
			Expect(err).Should(MatchError(errBrokenConnection))
		})

		It("should use only CloseAsync of async services on CloseAsync", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, func() *Stream { return &Stream{journal: journal} }).
				Add(lifetime.PerScope, connectionConstructor(journal)))
			scope := begin(root)

			stream := lifetime.MustGet[*Stream](scope)
			connection := lifetime.MustGet[*Connection](scope)

			Expect(scope.CloseAsync(context.Background())).To(Succeed())
			Expect(stream.closedAsync).To(Equal(1))
			Expect(stream.closed).To(BeZero())
			Expect(connection.closed).To(Equal(1))
		})

		It("should use Close of services that support both on Close", func() {
			root := build(lifetime.
				Add(lifetime.PerScope, func() *Stream { return &Stream{journal: journal} }).
				Add(lifetime.PerScope, func() *Flusher { return &Flusher{journal: journal} }))
			scope := begin(root)

			stream := lifetime.MustGet[*Stream](scope)
			flusher := lifetime.MustGet[*Flusher](scope)

			Expect(scope.Close()).To(Succeed())
			Expect(stream.closed).To(Equal(1))
			Expect(stream.closedAsync).To(BeZero())
			Expect(flusher.closedAsync).To(Equal(1))
		})
	})

	Context("disposed scope", func() {
		It("should refuse to resolve services", func() {
			root := build(lifetime.
				Add(lifetime.Singleton, nameServiceConstructor).
				Add(lifetime.PerScope, heroConstructor))
			scope := begin(root)

			Expect(scope.Close()).To(Succeed())

			_, err := lifetime.Get[NameService](scope)
			Expect(err).Should(MatchError(lifetime.ErrScopeDisposed))

			_, _, err = scope.TryResolve(reflectType[*Hero]())
			Expect(err).Should(MatchError(lifetime.ErrScopeDisposed))
		})

		It("should refuse to begin nested scopes", func() {
			root := build(lifetime.New())

			Expect(root.Close()).To(Succeed())

			_, err := root.BeginScope()

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.DisposedError)))
			Expect(err).Should(MatchError(lifetime.ErrScopeDisposed))
		})
	})

	Context("nested registrations", func() {
		It("should be visible only to the nested scope", func() {
			root := build(lifetime.Add(lifetime.Singleton, nameServiceConstructor))
			scope := begin(root, lifetime.WithRegistrations(func(b *lifetime.Builder) {
				b.Add(lifetime.PerScope, heroConstructor)
			}))

			Expect(lifetime.MustGet[*Hero](scope).Announce()).To(Equal("Bob is our hero!"))
			Expect(lifetime.MustGet[*Hero](begin(scope))).NotTo(BeNil())
			Expect(root.IsRegistered(reflectType[*Hero]())).To(BeFalse())
		})

		It("should override parent registrations", func() {
			root := build(lifetime.Add(lifetime.Singleton, nameServiceConstructor))
			scope := begin(root, lifetime.WithRegistrations(func(b *lifetime.Builder) {
				b.Add(lifetime.Singleton, func() NameService { return NameProvider("Alice") })
			}))

			Expect(lifetime.MustGet[NameService](scope).Name()).To(Equal("Alice"))
			Expect(lifetime.MustGet[NameService](root).Name()).To(Equal("Bob"))
		})

		It("should own Singletons registered for nested scope", func() {
			root := build(lifetime.New())
			scope := begin(root, lifetime.WithRegistrations(func(b *lifetime.Builder) {
				b.Add(lifetime.Singleton, connectionConstructor(journal))
			}))

			connection := lifetime.MustGet[*Connection](begin(scope))

			Expect(connection).To(BeIdenticalTo(lifetime.MustGet[*Connection](scope)))
			Expect(scope.Close()).To(Succeed())
			Expect(connection.closed).To(Equal(1))
		})

		It("should return registration errors", func() {
			root := build(lifetime.New())

			_, err := root.BeginScope(lifetime.WithRegistrations(func(b *lifetime.Builder) {
				b.Add(lifetime.Transient, heroConstructor)
			}))

			Expect(err).Should(BeAssignableToTypeOf(new(lifetime.ServiceBuilderError)))
		})
	})

	Context("context", func() {
		It("should close nested scope once context is done", func() {
			root := build(lifetime.Add(lifetime.PerScope, connectionConstructor(journal)))

			ctx, cancel := context.WithCancel(context.Background())
			scope := begin(root, lifetime.WithContext(ctx))

			connection := lifetime.MustGet[*Connection](scope)

			cancel()

			Eventually(journal.Entries).WithTimeout(time.Second).Should(ContainElement("close connection"))
			Expect(scope.Disposed()).To(BeTrue())
			Expect(connection.closed).To(Equal(1))
			Expect(root.Disposed()).To(BeFalse())
		})

		It("should close root scope once root context is done", func() {
			ctx, cancel := context.WithCancel(context.Background())
			root := build(lifetime.
				New(lifetime.WithRootContext(ctx)).
				Add(lifetime.Singleton, connectionConstructor(journal)))

			connection := lifetime.MustGet[*Connection](root)

			cancel()

			Eventually(journal.Entries).WithTimeout(time.Second).Should(ContainElement("close connection"))
			Expect(root.Disposed()).To(BeTrue())
			Expect(connection.closed).To(Equal(1))
		})

		It("should not leak goroutines", func() {
			root := build(lifetime.Add(lifetime.PerScope, connectionConstructor(journal)))

			for i := range 10 {
				ctx, cancel := context.WithCancel(context.Background())
				scope := begin(root, lifetime.WithContext(ctx))

				_ = lifetime.MustGet[*Connection](scope)

				if i%2 == 0 {
					Expect(scope.Close()).To(Succeed())
				}

				cancel()
			}

			Eventually(func() int { return len(journal.Entries()) }).WithTimeout(time.Second).Should(Equal(10))
			Expect(root.Close()).To(Succeed())

			err := goleak.Find(
				goleak.IgnoreTopFunction("github.com/onsi/ginkgo/v2/internal.(*Suite).runNode"),
				goleak.IgnoreTopFunction(
					"github.com/onsi/ginkgo/v2/internal/interrupt_handler.(*InterruptHandler).registerForInterrupts.func2",
				),
				goleak.IgnoreAnyFunction("github.com/onsi/ginkgo/v2/internal.RegisterForProgressSignal.func1"),
			)

			Expect(err).ShouldNot(HaveOccurred())
		})
	})
})
