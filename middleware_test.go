package scopebridge_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andriiyaremenko/scopebridge"
	"github.com/andriiyaremenko/scopebridge/di"
)

type failingScopeFactory struct{}

func (failingScopeFactory) CreateScope() (di.ServiceScope, error) {
	return nil, errors.New("no scopes today")
}

type brokenResource struct{}

func (brokenResource) Close() error { return errors.New("broken resource") }

var _ = Describe("Middleware", func() {
	var (
		sp       di.ServiceProvider
		created  []*UnitOfWork
		services *di.ServiceCollection
	)

	BeforeEach(func() {
		created = nil

		services = di.NewServiceCollection()
		di.AddSingleton[Clock](services, func() Clock { return fixedClock("noon") })
		di.AddScoped[*UnitOfWork](services, func(clock Clock) *UnitOfWork {
			uow := newUnitOfWork(clock)
			created = append(created, uow)

			return uow
		})
		di.AddScoped[brokenResource](services, func() brokenResource { return brokenResource{} })

		var err error

		sp, err = createServiceProvider(services)
		Expect(err).ShouldNot(HaveOccurred())

		DeferCleanup(sp.(io.Closer).Close)
	})

	router := func(factory di.ServiceScopeFactory, opts ...scopebridge.Option) http.Handler {
		r := chi.NewRouter()
		r.Use(scopebridge.Middleware(factory, opts...))
		r.Get("/time", func(w http.ResponseWriter, r *http.Request) {
			requestServices, ok := di.RequestServices(r.Context())
			if !ok {
				http.Error(w, "no request services", http.StatusInternalServerError)
				return
			}

			first, err := di.GetRequiredService[*UnitOfWork](requestServices)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			second, _ := di.GetRequiredService[*UnitOfWork](requestServices)

			fmt.Fprintf(w, "%s %t", first.Clock.Now(), first == second)
		})
		r.Get("/broken", func(w http.ResponseWriter, r *http.Request) {
			requestServices, _ := di.RequestServices(r.Context())
			_, _ = di.GetRequiredService[brokenResource](requestServices)

			w.WriteHeader(http.StatusNoContent)
		})

		return r
	}

	scopeFactory := func() di.ServiceScopeFactory {
		factory, err := di.GetRequiredService[di.ServiceScopeFactory](sp)
		Expect(err).ShouldNot(HaveOccurred())

		return factory
	}

	It("should share scoped services within a request", func() {
		rec := httptest.NewRecorder()
		router(scopeFactory()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/time", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("noon true"))
	})

	It("should create a scope per request and close it afterwards", func() {
		handler := router(scopeFactory())

		for range 3 {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/time", nil))
		}

		Expect(created).To(HaveLen(3))

		for _, uow := range created {
			Expect(uow.Closes()).To(Equal(1))
		}
	})

	It("should log disposal errors", func() {
		core, logs := observer.New(zapcore.ErrorLevel)

		rec := httptest.NewRecorder()
		router(scopeFactory(), scopebridge.WithLogger(zap.New(core))).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(logs.FilterMessage("cannot dispose request scope").Len()).To(Equal(1))
	})

	It("should fail request if scope cannot be created", func() {
		core, logs := observer.New(zapcore.ErrorLevel)

		rec := httptest.NewRecorder()
		router(failingScopeFactory{}, scopebridge.WithLogger(zap.New(core))).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/time", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(logs.FilterMessage("cannot create request scope").Len()).To(Equal(1))
	})
})
